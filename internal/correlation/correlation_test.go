package correlation

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/regimerisk/internal/factors"
)

var base = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type segment struct {
	regime string
	n      int
	rho    float64
}

// synthSeries builds level series A, B, C whose changes have corr(A,B)=rho per segment
func synthSeries(seed uint64, segments ...segment) *factors.Series {
	rng := rand.New(rand.NewPCG(seed, 7))
	s := &factors.Series{Factors: []factors.Factor{
		{Name: "A", Change: factors.ChangeDiff},
		{Name: "B", Change: factors.ChangeDiff},
		{Name: "C", Change: factors.ChangeDiff},
	}}

	level := []float64{100, 100, 100}
	day := 0
	s.Observations = append(s.Observations, factors.Observation{
		Date: base, Regime: segments[0].regime, Values: append([]float64(nil), level...),
	})
	for _, seg := range segments {
		for i := 0; i < seg.n; i++ {
			z1, z2, z3 := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
			level[0] += z1
			level[1] += seg.rho*z1 + math.Sqrt(1-seg.rho*seg.rho)*z2
			level[2] += z3
			day++
			s.Observations = append(s.Observations, factors.Observation{
				Date:   base.AddDate(0, 0, day),
				Regime: seg.regime,
				Values: append([]float64(nil), level...),
			})
		}
	}
	return s
}

type mapWriter map[string]*Matrix

func (w mapWriter) Put(_ context.Context, m *Matrix) error {
	w[m.Regime] = m
	return nil
}

func assertWellFormed(t *testing.T, m *Matrix) {
	t.Helper()
	require.NoError(t, m.CheckShape())
	if m.Valid {
		assert.True(t, IsPSD(m.Values), "%s valid but not PSD", m.Regime)
	}
}

func TestTrain(t *testing.T) {
	s := synthSeries(1,
		segment{"GOLDILOCKS", 300, 0.6},
		segment{"INFLATIONARY", 30, -0.5},
		segment{"GOLDILOCKS", 100, 0.6},
	)

	w := mapWriter{}
	trainer := NewTrainer(TrainerConfig{}, w, zerolog.Nop())
	assert.Equal(t, DefaultMinObservations, trainer.MinObservations())

	result, err := trainer.Train(context.Background(), s, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, AllRegimes, result.Matrices[0].Regime)
	assert.Len(t, result.Matrices, 5)
	assert.Len(t, w, 5)

	for _, m := range result.Matrices {
		assertWellFormed(t, m)
	}

	all := result.Get(AllRegimes)
	assert.True(t, all.Valid)
	assert.Equal(t, 430, all.SampleSize)
	assert.Equal(t, base.AddDate(0, 0, 430), all.TrainedThrough)

	gold := result.Get("GOLDILOCKS")
	require.NotNil(t, gold)
	assert.True(t, gold.Valid)
	ab, ok := gold.At("A", "B")
	require.True(t, ok)
	assert.InDelta(t, 0.6, ab, 0.1)

	infl := result.Get("INFLATIONARY")
	assert.False(t, infl.Valid)
	assert.Equal(t, ReasonInsufficientData, infl.InvalidReason)
	assert.Equal(t, 30, infl.SampleSize)

	stag := result.Get("STAGFLATION")
	require.NotNil(t, stag, "expected regimes are kept even without observations")
	assert.False(t, stag.Valid)
	assert.Equal(t, 0, stag.SampleSize)
	assert.Equal(t, ReasonInsufficientData, stag.InvalidReason)
	assert.Equal(t, Identity(3), stag.Values)
}

func TestTrain_DegenerateFactor(t *testing.T) {
	s := synthSeries(2, segment{"GOLDILOCKS", 100, 0.3})
	for i := range s.Observations {
		s.Observations[i].Values[2] = 5
	}

	result, err := NewTrainer(TrainerConfig{MinObservations: 20}, nil, zerolog.Nop()).
		Train(context.Background(), s, time.Time{})
	require.NoError(t, err)

	all := result.Get(AllRegimes)
	assert.False(t, all.Valid)
	assert.Equal(t, ReasonDegenerateFactor, all.InvalidReason)
	assertWellFormed(t, all)
	v, _ := all.At("A", "C")
	assert.Equal(t, 0.0, v)
}

func TestTrain_Errors(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{}, nil, zerolog.Nop())

	single := &factors.Series{
		Factors:      []factors.Factor{{Name: "A", Change: factors.ChangeDiff}},
		Observations: []factors.Observation{{Date: base, Regime: "X", Values: []float64{1}}},
	}
	_, err := trainer.Train(context.Background(), single, time.Time{})
	assert.ErrorIs(t, err, ErrDataInsufficient)

	empty := &factors.Series{Factors: synthSeries(1, segment{"X", 1, 0}).Factors}
	_, err = trainer.Train(context.Background(), empty, time.Time{})
	assert.ErrorIs(t, err, ErrDataInsufficient)

	s := synthSeries(3, segment{"X", 10, 0})
	_, err = trainer.Train(context.Background(), s, base.AddDate(1, 0, 0))
	assert.ErrorIs(t, err, ErrDataInsufficient)
}

func TestRepair(t *testing.T) {
	bad := [][]float64{
		{1, 0.9, -0.9},
		{0.9, 1, 0.9},
		{-0.9, 0.9, 1},
	}
	require.False(t, IsPSD(bad))

	fixed, err := Repair(bad)
	require.NoError(t, err)
	assert.True(t, IsPSD(fixed))

	m := &Matrix{Regime: "X", Factors: []string{"a", "b", "c"}, Values: fixed, Valid: true}
	assert.NoError(t, m.CheckShape())
	assert.True(t, m.Usable())

	good := Identity(3)
	same, err := Repair(good)
	require.NoError(t, err)
	for i := range good {
		for j := range good {
			assert.InDelta(t, good[i][j], same[i][j], 1e-6)
		}
	}
}

func TestHeuristic(t *testing.T) {
	for _, regime := range []string{"STAGFLATION", "inflationary", "GOLDILOCKS", "ALL", "UNKNOWN"} {
		t.Run(regime, func(t *testing.T) {
			m := Heuristic(regime)
			assert.True(t, m.Usable())
			assert.Equal(t, SourceHeuristic, m.Source)
			assert.Greater(t, MinEigenvalue(m.Values), 0.0)
			assert.True(t, m.HasFactors(factors.VIX, factors.SPX, factors.UST10Y))
		})
	}

	stag, _ := Heuristic("STAGFLATION").At(factors.VIX, factors.UST10Y)
	norm, _ := Heuristic("GOLDILOCKS").At(factors.VIX, factors.UST10Y)
	assert.Equal(t, 0.20, stag)
	assert.Equal(t, -0.40, norm)

	// copies are independent
	a := Heuristic("ALL")
	a.Values[0][1] = 0
	assert.Equal(t, -0.75, Heuristic("ALL").Values[0][1])
}

func TestMatrixClone(t *testing.T) {
	m := Heuristic("ALL")
	c := m.Clone()
	c.Values[1][0] = 0.5
	c.Factors[0] = "X"
	assert.Equal(t, -0.75, m.Values[1][0])
	assert.Equal(t, factors.VIX, m.Factors[0])
}

func TestValidateHoldout(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{MinObservations: 60, Regimes: []string{}}, nil, zerolog.Nop())
	split := base.AddDate(0, 0, 400)

	t.Run("stable", func(t *testing.T) {
		s := synthSeries(4, segment{"GOLDILOCKS", 800, 0.5})
		report, err := trainer.Validate(s, time.Time{}, split)
		require.NoError(t, err)

		require.Len(t, report.Rows, 2)
		all := report.Rows[0]
		assert.Equal(t, AllRegimes, all.Regime)
		assert.True(t, all.Scored)
		assert.Equal(t, 3, all.Pairs)
		assert.Equal(t, StabilityStable, all.Stability)
		assert.Equal(t, 399, all.TrainSize)
		assert.Equal(t, 401, all.TestSize)
	})

	t.Run("regime shift", func(t *testing.T) {
		s := synthSeries(5, segment{"GOLDILOCKS", 400, 0.9}, segment{"GOLDILOCKS", 400, -0.9})
		report, err := trainer.Validate(s, time.Time{}, split)
		require.NoError(t, err)
		assert.Equal(t, StabilityShift, report.Rows[0].Stability)
		assert.Greater(t, report.Rows[0].MAE, 0.25)
	})

	t.Run("unscored regime", func(t *testing.T) {
		s := synthSeries(6, segment{"GOLDILOCKS", 450, 0.2}, segment{"STAGFLATION", 350, 0.2})
		report, err := trainer.Validate(s, time.Time{}, split)
		require.NoError(t, err)

		var stag *HoldoutScore
		for i := range report.Rows {
			if report.Rows[i].Regime == "STAGFLATION" {
				stag = &report.Rows[i]
			}
		}
		require.NotNil(t, stag)
		assert.False(t, stag.Scored)
		assert.Equal(t, 0, stag.TrainSize)
		assert.Contains(t, stag.Note, "insufficient_data")
	})

	t.Run("bad split", func(t *testing.T) {
		s := synthSeries(7, segment{"GOLDILOCKS", 100, 0.2})
		_, err := trainer.Validate(s, base.AddDate(0, 0, 10), base)
		assert.Error(t, err)

		_, err = trainer.Validate(s, time.Time{}, base.AddDate(5, 0, 0))
		assert.ErrorIs(t, err, ErrDataInsufficient)
	})
}

func TestCompareAndClassify(t *testing.T) {
	a := [][]float64{{1, 0.5, 0.2}, {0.5, 1, 0.1}, {0.2, 0.1, 1}}
	b := [][]float64{{1, 0.3, 0.2}, {0.3, 1, 0.4}, {0.2, 0.4, 1}}

	mae, mse, pairs := Compare(a, b)
	assert.Equal(t, 3, pairs)
	assert.InDelta(t, (0.2+0+0.3)/3, mae, 1e-12)
	assert.InDelta(t, (0.04+0+0.09)/3, mse, 1e-12)

	assert.Equal(t, StabilityStable, Classify(0.1))
	assert.Equal(t, StabilityModerate, Classify(0.2))
	assert.Equal(t, StabilityShift, Classify(0.25))
}
