package engine

import (
	"context"
	"time"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/metrics"
	"github.com/wonny/regimerisk/internal/pnl"
	"github.com/wonny/regimerisk/internal/risk"
	"github.com/wonny/regimerisk/internal/scenario"
	"github.com/wonny/regimerisk/internal/store"
	"github.com/wonny/regimerisk/pkg/config"
	"github.com/wonny/regimerisk/pkg/logger"
)

// Config engine settings
type Config struct {
	MinObservations  int
	Regimes          []string // nil = correlation.DefaultRegimes
	Workers          int
	DefaultTrials    int
	DefaultHorizon   float64 // months
	TopN             int
	TailQuantile     float64
	Limits           risk.Limits
	BoundLongOptions bool
	Roles            scenario.Roles
	Table            *scenario.Table
}

// ConfigFrom maps application config onto engine settings
func ConfigFrom(cfg *config.Config, table *scenario.Table) Config {
	return Config{
		MinObservations:  cfg.Risk.MinObservations,
		Workers:          cfg.Risk.Workers,
		DefaultTrials:    cfg.Risk.DefaultTrials,
		DefaultHorizon:   cfg.Risk.DefaultHorizon,
		TopN:             cfg.Risk.TopN,
		Limits:           risk.DefaultLimits(),
		BoundLongOptions: cfg.Risk.BoundOptions,
		Table:            table,
	}
}

// ReportCache keeps finished reports for later lookup (pkg/redis.Cache satisfies it)
type ReportCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Engine wires resolve -> generate -> attribute -> summarize and retraining
// ⭐ SSOT: 상관행렬 조회/시뮬레이션/손익 귀속 조율은 여기서만
type Engine struct {
	store      store.Store
	resolver   *store.Resolver
	trainer    *correlation.Trainer
	generator  *scenario.Generator
	attributor *pnl.Attributor
	recorder   metrics.Recorder
	reports    ReportCache
	cfg        Config
	logger     *logger.Logger
}

// New creates an engine over the given store. recorder may be nil.
func New(st store.Store, cfg Config, recorder metrics.Recorder, log *logger.Logger) *Engine {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Roles == (scenario.Roles{}) {
		cfg.Roles = scenario.DefaultRoles()
	}
	if cfg.Table == nil {
		cfg.Table = scenario.DefaultTable()
	}
	if cfg.DefaultTrials <= 0 {
		cfg.DefaultTrials = 10000
	}
	if cfg.DefaultHorizon <= 0 {
		cfg.DefaultHorizon = 3
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if cfg.TailQuantile <= 0 {
		cfg.TailQuantile = pnl.DefaultTailQuantile
	}

	return &Engine{
		store: st,
		resolver: store.NewResolver(st, store.ResolverConfig{
			RequiredFactors: cfg.Roles.Names(),
		}, recorder, log.Component("store.resolver")),
		trainer: correlation.NewTrainer(correlation.TrainerConfig{
			MinObservations: cfg.MinObservations,
			Regimes:         cfg.Regimes,
		}, st, log.Component("correlation.trainer")),
		generator:  scenario.NewGenerator(cfg.Table, cfg.Workers, recorder, log.Component("scenario.generator")),
		attributor: pnl.NewAttributor(pnl.Config{BoundLongOptions: cfg.BoundLongOptions}, log.Component("pnl.attributor")),
		recorder:   recorder,
		cfg:        cfg,
		logger:     log,
	}
}

// WithReportCache enables report caching
func (e *Engine) WithReportCache(c ReportCache) *Engine {
	e.reports = c
	return e
}

// Store returns the underlying correlation store
func (e *Engine) Store() store.Store { return e.store }

// Table returns the active assumptions table
func (e *Engine) Table() *scenario.Table { return e.cfg.Table }

// MinObservations returns the trainer threshold in effect
func (e *Engine) MinObservations() int { return e.trainer.MinObservations() }

// Train fits regime matrices from the series and persists them
func (e *Engine) Train(ctx context.Context, s *factors.Series, start time.Time) (*correlation.TrainResult, error) {
	res, err := e.trainer.Train(ctx, s, start)
	if res != nil {
		for _, m := range res.Matrices {
			e.recorder.ObserveTraining(m.Regime, m.Valid, m.SampleSize)
			if m.Repaired {
				e.recorder.ObserveRepair("train")
			}
		}
	}
	if err != nil {
		e.logger.WithError(err).Error("correlation training failed")
		return res, err
	}

	e.logger.WithFields(map[string]interface{}{
		"start":    start.Format("2006-01-02"),
		"rows":     res.Rows,
		"matrices": len(res.Matrices),
		"regimes":  s.Regimes(),
	}).Info("correlation matrices trained")
	return res, nil
}

// Validate scores train-period matrices against the holdout period
func (e *Engine) Validate(s *factors.Series, start, split time.Time) (*correlation.HoldoutReport, error) {
	return e.trainer.Validate(s, start, split)
}

// Resolve returns the matrix a simulation of regime would use
func (e *Engine) Resolve(ctx context.Context, regime string) (*store.Resolution, error) {
	return e.resolver.Resolve(ctx, regime)
}

// Correlations lists stored matrices (ALL first)
func (e *Engine) Correlations(ctx context.Context) ([]*correlation.Matrix, error) {
	return e.store.List(ctx)
}
