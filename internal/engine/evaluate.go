package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/regimerisk/internal/pnl"
	"github.com/wonny/regimerisk/internal/risk"
	"github.com/wonny/regimerisk/internal/scenario"
	"github.com/wonny/regimerisk/internal/store"
	"github.com/wonny/regimerisk/pkg/redis"
)

// ErrReportNotFound is returned by Report for unknown or expired run IDs
var ErrReportNotFound = errors.New("report not found")

// EvaluateRequest holds the inputs of one simulation run
type EvaluateRequest struct {
	Regime        string                `json:"regime"`
	HorizonMonths float64               `json:"horizon_months"`
	Trials        int                   `json:"trials"`
	Steps         int                   `json:"steps,omitempty"`
	Seed          *int64                `json:"seed,omitempty"`
	Positions     []pnl.Position        `json:"positions"`
	Assumptions   *scenario.Assumptions `json:"assumptions,omitempty"`
	Limits        *risk.Limits          `json:"limits,omitempty"`
}

// Report is the full result of a run
type Report struct {
	RunID           string               `json:"run_id"`
	CreatedAt       time.Time            `json:"created_at"`
	Resolution      *store.Resolution    `json:"resolution"`
	Fallback        bool                 `json:"fallback"`
	AssumptionsKey  string               `json:"assumptions_key"`
	AssumptionsHash string               `json:"assumptions_hash"`
	Assumptions     scenario.Assumptions `json:"assumptions"`
	Seed            int64                `json:"seed"`
	Trials          int                  `json:"trials"`
	HorizonMonths   float64              `json:"horizon_months"`
	Steps           int                  `json:"steps"`
	MixingRepaired  bool                 `json:"mixing_repaired"`
	Factors         scenario.Summary     `json:"factors"`
	FactorOnly      bool                 `json:"factor_only"`
	Notional        float64              `json:"notional,omitempty"`
	PnL             *risk.Summary        `json:"pnl,omitempty"`
	Extremes        *pnl.Extremes        `json:"extremes,omitempty"`
	Tail            *pnl.TailAttribution `json:"tail,omitempty"`
	Limits          *risk.LimitCheck     `json:"limits,omitempty"`
	Currency        *CurrencyView        `json:"currency,omitempty"`
	Duration        time.Duration        `json:"duration_ns"`
}

// Evaluate resolves the regime matrix, generates the ensemble and attributes P&L
// Fallbacks are reported in Report.Resolution, never raised as errors.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (*Report, error) {
	start := time.Now()
	if req.Trials == 0 {
		req.Trials = e.cfg.DefaultTrials
	}
	if req.HorizonMonths == 0 {
		req.HorizonMonths = e.cfg.DefaultHorizon
	}

	runID := uuid.New().String()
	log := e.logger.WithRun(runID)

	res, err := e.resolver.Resolve(ctx, req.Regime)
	if err != nil {
		log.WithError(err).Error("correlation resolution failed")
		return nil, err
	}

	ens, err := e.generator.Generate(ctx, scenario.Request{
		Regime:        res.Requested,
		Matrix:        res.Matrix,
		HorizonMonths: req.HorizonMonths,
		Trials:        req.Trials,
		Steps:         req.Steps,
		Seed:          req.Seed,
		Assumptions:   req.Assumptions,
		Roles:         e.cfg.Roles,
	})
	if err != nil {
		e.recorder.ObserveSimulation(res.Requested, req.Trials, time.Since(start), err)
		log.WithError(err).Error("scenario generation failed")
		return nil, err
	}

	hash, err := ens.Assumptions.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash assumptions: %w", err)
	}

	report := &Report{
		RunID:           runID,
		CreatedAt:       start.UTC(),
		Resolution:      res,
		Fallback:        res.FellBack(),
		AssumptionsKey:  ens.AssumptionsKey,
		AssumptionsHash: hash,
		Assumptions:     ens.Assumptions,
		Seed:            ens.Seed,
		Trials:          ens.Trials,
		HorizonMonths:   ens.HorizonMonths,
		Steps:           ens.Steps,
		MixingRepaired:  ens.MixingRepaired,
		Factors:         scenario.Summarize(ens),
	}

	dist, err := e.attributor.Attribute(ens, req.Positions)
	if err != nil {
		e.recorder.ObserveSimulation(res.Requested, req.Trials, time.Since(start), err)
		return nil, err
	}
	report.FactorOnly = dist.FactorOnly

	if !dist.FactorOnly {
		limits := e.cfg.Limits
		if req.Limits != nil {
			limits = *req.Limits
		}

		sum := risk.Summarize(dist.Totals)
		ext := pnl.Rank(ens, dist, e.cfg.TopN)
		tail := pnl.Tail(dist, e.cfg.TailQuantile)
		check := risk.CheckLimits(sum, limits)
		cur := NewCurrencyView(dist.Notional, sum)

		report.Notional = dist.Notional
		report.PnL = &sum
		report.Extremes = &ext
		report.Tail = &tail
		report.Limits = &check
		report.Currency = &cur
	}

	report.Duration = time.Since(start)
	e.recorder.ObserveSimulation(res.Requested, req.Trials, report.Duration, nil)

	fields := map[string]interface{}{
		"requested": res.Requested,
		"used":      res.Used,
		"source":    string(res.Source),
		"reason":    string(res.Reason),
		"trials":    report.Trials,
		"horizon":   report.HorizonMonths,
		"seed":      report.Seed,
		"duration":  report.Duration.String(),
		"positions": len(req.Positions),
	}
	if report.PnL != nil {
		fields["mean"] = report.PnL.Mean
		fields["median"] = report.PnL.Median
		fields["var_95"] = report.PnL.VaR95
		fields["limits_passed"] = report.Limits.Passed
	}
	log.WithFields(fields).Info("evaluation completed")

	if e.reports != nil {
		if err := e.reports.Set(ctx, redis.ReportKey(runID), report, redis.TTLReport); err != nil && !errors.Is(err, redis.ErrDisabled) {
			log.WithError(err).Warn("report cache write failed")
		}
	}

	return report, nil
}

// Report fetches a cached report by run ID
func (e *Engine) Report(ctx context.Context, runID string) (*Report, error) {
	if e.reports == nil {
		return nil, ErrReportNotFound
	}
	var report Report
	found, err := e.reports.Get(ctx, redis.ReportKey(runID), &report)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
	}
	return &report, nil
}
