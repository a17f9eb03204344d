package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/scheduler"
	"github.com/wonny/regimerisk/pkg/logger"
)

// DriftCheckJob scores the trained structure against the most recent window
// and warns when a regime drifts
type DriftCheckJob struct {
	engine   *engine.Engine
	source   factors.Source
	start    time.Time
	holdout  time.Duration
	schedule string
	logger   *logger.Logger

	mu   sync.RWMutex
	last *correlation.HoldoutReport
}

// NewDriftCheckJob creates a new drift check job. holdout is the trailing test window.
func NewDriftCheckJob(e *engine.Engine, src factors.Source, start time.Time, holdout time.Duration, schedule string, log *logger.Logger) *DriftCheckJob {
	return &DriftCheckJob{
		engine:   e,
		source:   src,
		start:    start,
		holdout:  holdout,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *DriftCheckJob) Name() string {
	return "correlation_drift_check"
}

// Schedule returns the cron schedule
func (j *DriftCheckJob) Schedule() string {
	return j.schedule
}

// Last returns the most recent holdout report
func (j *DriftCheckJob) Last() *correlation.HoldoutReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// Run splits the series at last date - holdout and logs drifting regimes.
// Invalid or insufficient data is not retried.
func (j *DriftCheckJob) Run(ctx context.Context) error {
	series, err := j.source.Load(ctx)
	if err != nil {
		if isDataError(err) {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("load factor series: %w", err)
	}
	if err := series.Validate(); err != nil {
		return scheduler.Permanent(err)
	}

	split := series.Last().Add(-j.holdout)
	report, err := j.engine.Validate(series, j.start, split)
	if err != nil {
		if isDataError(err) {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("holdout validation: %w", err)
	}

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()

	for _, row := range report.Rows {
		if !row.Scored || row.Stability == correlation.StabilityStable {
			continue
		}
		j.logger.WithFields(map[string]interface{}{
			"regime":    row.Regime,
			"mae":       row.MAE,
			"stability": string(row.Stability),
			"train":     row.TrainSize,
			"test":      row.TestSize,
		}).Warn("Correlation drift detected")
	}

	j.logger.WithFields(map[string]interface{}{
		"split": split.Format("2006-01-02"),
		"rows":  len(report.Rows),
	}).Info("Correlation drift check completed")
	return nil
}

// 재시도해도 결과가 같은 데이터 오류
func isDataError(err error) bool {
	return errors.Is(err, factors.ErrInvalidSeries) || errors.Is(err, factors.ErrDataInsufficient)
}
