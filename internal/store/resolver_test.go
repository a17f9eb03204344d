package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/metrics"
)

var required = []string{factors.SPX, factors.VIX, factors.UST10Y}

func newResolver(t *testing.T, s Store, cfg ResolverConfig) (*Resolver, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	if cfg.RequiredFactors == nil {
		cfg.RequiredFactors = required
	}
	return NewResolver(s, cfg, nil, zerolog.New(buf)), buf
}

func TestResolve_RegimeSpecific(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, trained("GOLDILOCKS", true)))
	require.NoError(t, s.Put(ctx, trained(correlation.AllRegimes, true)))

	r, _ := newResolver(t, s, ResolverConfig{})
	res, err := r.Resolve(ctx, "goldilocks")
	require.NoError(t, err)

	assert.Equal(t, "GOLDILOCKS", res.Requested)
	assert.Equal(t, "GOLDILOCKS", res.Used)
	assert.Equal(t, SourceRegime, res.Source)
	assert.Equal(t, correlation.ReasonNone, res.Reason)
	assert.Empty(t, res.Steps)
	assert.False(t, res.FellBack())
	assert.Equal(t, "requested=GOLDILOCKS, used=GOLDILOCKS, reason=none", res.String())
}

func TestResolve_InsufficientFallsBackToAll(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	stag := trained("STAGFLATION", false)
	stag.SampleSize = 0
	require.NoError(t, s.Put(ctx, stag))
	require.NoError(t, s.Put(ctx, trained(correlation.AllRegimes, true)))

	r, logs := newResolver(t, s, ResolverConfig{})
	res, err := r.Resolve(ctx, "STAGFLATION")
	require.NoError(t, err)

	assert.Equal(t, correlation.AllRegimes, res.Used)
	assert.Equal(t, SourceAggregate, res.Source)
	assert.Equal(t, correlation.ReasonInsufficientData, res.Reason)
	assert.Equal(t, "requested=STAGFLATION, used=ALL, reason=insufficient_data", res.String())
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "STAGFLATION", res.Steps[0].Candidate)
	assert.True(t, res.Matrix.Valid)
	assert.Equal(t, correlation.AllRegimes, res.Matrix.Regime)
	assert.Contains(t, logs.String(), `"message":"correlation fallback"`)

	// deterministic: same inputs, same answer
	again, err := r.Resolve(ctx, "STAGFLATION")
	require.NoError(t, err)
	assert.Equal(t, res.String(), again.String())
	assert.Equal(t, res.Matrix.Values, again.Matrix.Values)
}

func TestResolve_Heuristic(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s Store)
		regime     string
		wantReason correlation.Reason
		wantSteps  int
	}{
		{
			name:       "empty store",
			setup:      func(Store) {},
			regime:     "STAGFLATION",
			wantReason: ReasonNotTrained,
			wantSteps:  2,
		},
		{
			name: "all invalid",
			setup: func(s Store) {
				_ = s.Put(context.Background(), trained(correlation.AllRegimes, false))
			},
			regime:     "ALL",
			wantReason: correlation.ReasonInsufficientData,
			wantSteps:  1,
		},
		{
			name: "missing required factors",
			setup: func(s Store) {
				m := trained("GOLDILOCKS", true)
				m.Factors[1] = "NDX"
				_ = s.Put(context.Background(), m)
			},
			regime:     "GOLDILOCKS",
			wantReason: ReasonMissingFactors,
			wantSteps:  2,
		},
		{
			name: "valid flag but not PSD",
			setup: func(s Store) {
				m := &correlation.Matrix{
					Regime:  "GOLDILOCKS",
					Factors: required,
					Values:  [][]float64{{1, 0.9, -0.9}, {0.9, 1, 0.9}, {-0.9, 0.9, 1}},
					Valid:   true,
				}
				_ = s.Put(context.Background(), m)
			},
			regime:     "GOLDILOCKS",
			wantReason: correlation.ReasonNotPSD,
			wantSteps:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			tt.setup(s)

			r, _ := newResolver(t, s, ResolverConfig{})
			res, err := r.Resolve(context.Background(), tt.regime)
			require.NoError(t, err)

			assert.Equal(t, HeuristicLabel, res.Used)
			assert.Equal(t, SourceHeuristic, res.Source)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Len(t, res.Steps, tt.wantSteps)
			assert.True(t, res.Matrix.Usable())
		})
	}
}

func TestResolve_StoreErrorIsFallback(t *testing.T) {
	r, _ := newResolver(t, failingStore{}, ResolverConfig{})
	res, err := r.Resolve(context.Background(), "GOLDILOCKS")
	require.NoError(t, err)

	assert.Equal(t, SourceHeuristic, res.Source)
	assert.Equal(t, ReasonStoreError, res.Reason)
	assert.Contains(t, res.Steps[0].Detail, "connection refused")
}

func TestResolve_Exhausted(t *testing.T) {
	r, _ := newResolver(t, NewMemoryStore(), ResolverConfig{DisableHeuristic: true})
	_, err := r.Resolve(context.Background(), "GOLDILOCKS")
	assert.ErrorIs(t, err, ErrFallbackExhausted)

	r, _ = newResolver(t, NewMemoryStore(), ResolverConfig{
		Heuristic: func(string) *correlation.Matrix { return nil },
	})
	_, err = r.Resolve(context.Background(), "GOLDILOCKS")
	assert.ErrorIs(t, err, ErrFallbackExhausted)

	r, _ = newResolver(t, NewMemoryStore(), ResolverConfig{RequiredFactors: []string{"NDX"}})
	_, err = r.Resolve(context.Background(), "GOLDILOCKS")
	assert.ErrorIs(t, err, ErrFallbackExhausted)
}

func TestResolve_RecordsMetrics(t *testing.T) {
	p := metrics.NewPrometheus()
	r := NewResolver(NewMemoryStore(), ResolverConfig{RequiredFactors: required}, p, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(p.Registry(), "regimerisk_correlation_resolutions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ALL", Normalize(""))
	assert.Equal(t, "STAGFLATION", Normalize(" stagflation "))
}
