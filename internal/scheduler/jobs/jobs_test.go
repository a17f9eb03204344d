package jobs

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/scheduler"
	"github.com/wonny/regimerisk/internal/store"
	"github.com/wonny/regimerisk/pkg/logger"
)

var day0 = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

type funcSource func(ctx context.Context) (*factors.Series, error)

func (f funcSource) Load(ctx context.Context) (*factors.Series, error) { return f(ctx) }

func series(n int) *factors.Series {
	rng := rand.New(rand.NewPCG(1, 2))
	s := &factors.Series{Factors: []factors.Factor{
		{Name: factors.VIX, Change: factors.ChangeDiff},
		{Name: factors.SPX, Change: factors.ChangeDiff},
		{Name: factors.UST10Y, Change: factors.ChangeDiff},
	}}
	level := []float64{20, 100, 3}
	for i := 0; i <= n; i++ {
		if i > 0 {
			z := rng.NormFloat64()
			level[0] += -0.5*z + rng.NormFloat64()
			level[1] += z
			level[2] += 0.1 * rng.NormFloat64()
		}
		s.Observations = append(s.Observations, factors.Observation{
			Date: day0.AddDate(0, 0, i), Regime: "GOLDILOCKS", Values: append([]float64(nil), level...),
		})
	}
	return s
}

func TestRetrainJob(t *testing.T) {
	st := store.NewMemoryStore()
	e := engine.New(st, engine.Config{}, nil, logger.Nop())
	job := NewRetrainJob(e, funcSource(func(context.Context) (*factors.Series, error) {
		return series(150), nil
	}), day0, "0 30 6 * * 1-5", logger.Nop())

	s := scheduler.New(logger.Nop(), scheduler.WithRetry(1, 0))
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow("correlation_retrain")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	all, err := st.Get(context.Background(), correlation.AllRegimes)
	require.NoError(t, err)
	assert.True(t, all.Valid)
	assert.Equal(t, 150, all.SampleSize)
	assert.Equal(t, day0.AddDate(0, 0, 150), all.TrainedThrough)

	gold, err := st.Get(context.Background(), "GOLDILOCKS")
	require.NoError(t, err)
	assert.True(t, gold.Valid)
}

func TestRetrainJob_InsufficientIsPermanent(t *testing.T) {
	e := engine.New(store.NewMemoryStore(), engine.Config{}, nil, logger.Nop())
	job := NewRetrainJob(e, funcSource(func(context.Context) (*factors.Series, error) {
		return &factors.Series{}, nil
	}), day0, "@daily", logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, scheduler.IsPermanent(err))
	assert.ErrorIs(t, err, factors.ErrDataInsufficient)
}

func TestDriftCheckJob(t *testing.T) {
	e := engine.New(store.NewMemoryStore(), engine.Config{}, nil, logger.Nop())
	job := NewDriftCheckJob(e, funcSource(func(context.Context) (*factors.Series, error) {
		return series(300), nil
	}), day0, 100*24*time.Hour, "@weekly", logger.Nop())

	assert.Equal(t, "correlation_drift_check", job.Name())
	assert.Equal(t, "@weekly", job.Schedule())
	require.NoError(t, job.Run(context.Background()))

	rep := job.Last()
	require.NotNil(t, rep)
	assert.Equal(t, day0.AddDate(0, 0, 200), rep.Split)
	require.NotEmpty(t, rep.Rows)
	assert.Equal(t, correlation.AllRegimes, rep.Rows[0].Regime)
	assert.True(t, rep.Rows[0].Scored)
}

func TestDriftCheckJob_DataErrorsArePermanent(t *testing.T) {
	e := engine.New(store.NewMemoryStore(), engine.Config{}, nil, logger.Nop())

	tests := []struct {
		name    string
		load    func(context.Context) (*factors.Series, error)
		holdout time.Duration
		want    error
	}{
		{
			name:    "empty series",
			load:    func(context.Context) (*factors.Series, error) { return &factors.Series{}, nil },
			holdout: 100 * 24 * time.Hour,
			want:    factors.ErrDataInsufficient,
		},
		{
			name: "invalid series from source",
			load: func(context.Context) (*factors.Series, error) {
				return nil, fmt.Errorf("read csv: %w", factors.ErrInvalidSeries)
			},
			holdout: 100 * 24 * time.Hour,
			want:    factors.ErrInvalidSeries,
		},
		{
			// 분할일이 첫 변화 행보다 앞서 학습 구간이 비는 경우
			name:    "split leaves no train rows",
			load:    func(context.Context) (*factors.Series, error) { return series(300), nil },
			holdout: 300*24*time.Hour - 12*time.Hour,
			want:    factors.ErrDataInsufficient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewDriftCheckJob(e, funcSource(tt.load), day0, tt.holdout, "@weekly", logger.Nop())

			err := job.Run(context.Background())
			require.Error(t, err)
			assert.True(t, scheduler.IsPermanent(err))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, job.Last())
		})
	}
}

func TestDriftCheckJob_SourceErrorIsRetried(t *testing.T) {
	e := engine.New(store.NewMemoryStore(), engine.Config{}, nil, logger.Nop())
	job := NewDriftCheckJob(e, funcSource(func(context.Context) (*factors.Series, error) {
		return nil, fmt.Errorf("connection refused")
	}), day0, 100*24*time.Hour, "@weekly", logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.False(t, scheduler.IsPermanent(err))
}

func TestDriftCheckJob_ConcurrentLast(t *testing.T) {
	e := engine.New(store.NewMemoryStore(), engine.Config{}, nil, logger.Nop())
	s := series(300)
	job := NewDriftCheckJob(e, funcSource(func(context.Context) (*factors.Series, error) {
		return s, nil
	}), day0, 100*24*time.Hour, "@weekly", logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, job.Run(context.Background()))
		}()
		go func() {
			defer wg.Done()
			_ = job.Last()
		}()
	}
	wg.Wait()

	require.NotNil(t, job.Last())
	assert.Equal(t, day0.AddDate(0, 0, 200), job.Last().Split)
}
