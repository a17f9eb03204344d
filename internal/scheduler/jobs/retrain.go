package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/scheduler"
	"github.com/wonny/regimerisk/pkg/logger"
)

// RetrainJob reloads the factor series and retrains all regime matrices
// ⭐ SSOT: 상관행렬 재학습 스케줄은 이 Job에서만
type RetrainJob struct {
	engine   *engine.Engine
	source   factors.Source
	start    time.Time
	schedule string
	logger   *logger.Logger
}

// NewRetrainJob creates a new retrain job
func NewRetrainJob(e *engine.Engine, src factors.Source, start time.Time, schedule string, log *logger.Logger) *RetrainJob {
	return &RetrainJob{
		engine:   e,
		source:   src,
		start:    start,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "correlation_retrain"
}

// Schedule returns the cron schedule
func (j *RetrainJob) Schedule() string {
	return j.schedule
}

// Run loads the series and trains. Insufficient data is not retried.
func (j *RetrainJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled correlation retrain")

	series, err := j.source.Load(ctx)
	if err != nil {
		if errors.Is(err, factors.ErrInvalidSeries) || errors.Is(err, factors.ErrDataInsufficient) {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("load factor series: %w", err)
	}

	res, err := j.engine.Train(ctx, series, j.start)
	if err != nil {
		if errors.Is(err, factors.ErrDataInsufficient) {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("train: %w", err)
	}

	valid := 0
	for _, m := range res.Matrices {
		if m.Valid {
			valid++
		}
	}
	j.logger.WithFields(map[string]interface{}{
		"rows":     res.Rows,
		"matrices": len(res.Matrices),
		"valid":    valid,
		"through":  series.Last().Format("2006-01-02"),
	}).Info("Scheduled correlation retrain completed")

	return nil
}
