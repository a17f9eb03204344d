package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniform -0.495 .. 0.495 (100개)
func uniform() []float64 {
	out := make([]float64, 100)
	for i := range out {
		out[i] = (float64(i) - 49.5) / 100
	}
	return out
}

func TestCalculateVaR(t *testing.T) {
	values := uniform()
	// 입력 순서와 무관
	values[0], values[99] = values[99], values[0]

	r := CalculateVaR(values, 0.95)
	assert.Equal(t, 0.95, r.Confidence)
	assert.InDelta(t, 0.445, r.VaR, 1e-12) // sorted[5]
	// tail: sorted[0..5] 평균
	assert.InDelta(t, 0.47, r.CVaR, 1e-12)
	assert.GreaterOrEqual(t, r.CVaR, r.VaR)

	r99 := CalculateVaR(values, 0.99)
	assert.InDelta(t, 0.485, r99.VaR, 1e-12)
	assert.Greater(t, r99.VaR, r.VaR)

	assert.Equal(t, 0.0, CalculateVaR(nil, 0.95).VaR)
	assert.Equal(t, 0.0, CalculateVaR([]float64{0.1, 0.2, 0.3}, 0.95).VaR, "no loss")
}

func TestCalculateCVaR(t *testing.T) {
	sorted := []float64{-0.3, -0.1, 0.5}
	assert.InDelta(t, 0.2, CalculateCVaR(sorted, 1), 1e-12)
	assert.InDelta(t, 0.3, CalculateCVaR(sorted, 0), 1e-12)
	assert.Equal(t, 0.0, CalculateCVaR(sorted, 2))
	assert.Equal(t, 0.0, CalculateCVaR(sorted, -1))
	assert.Equal(t, 0.0, CalculateCVaR(nil, 0))
}

func TestCalculateParametricVaR(t *testing.T) {
	r := CalculateParametricVaR(0, 0.10, 0.95)
	assert.InDelta(t, 0.1645, r.VaR, 1e-3)
	assert.InDelta(t, 0.2063, r.CVaR, 1e-3)

	assert.Zero(t, CalculateParametricVaR(0, 0, 0.95).VaR)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{90, 4.6},
		{100, 5},
		{150, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 1e-12, "p=%v", tt.p)
	}
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestSummarize(t *testing.T) {
	sum := Summarize(uniform())

	assert.Equal(t, 100, sum.Count)
	assert.InDelta(t, 0, sum.Mean, 1e-12)
	assert.InDelta(t, 0, sum.Median, 1e-12)
	assert.InDelta(t, 0, sum.Skew, 1e-9)
	assert.Equal(t, -0.495, sum.Min)
	assert.Equal(t, 0.495, sum.Max)
	assert.InDelta(t, 0.445, sum.VaR95, 1e-12)
	assert.InDelta(t, 0.485, sum.VaR99, 1e-12)
	assert.Equal(t, 0.5, sum.ProbGain)
	// -0.495 .. -0.105 → 40개
	assert.Equal(t, 0.40, sum.ProbLoss10)
	assert.Equal(t, 0.30, sum.ProbLoss20)
	require.Len(t, sum.Percentiles, len(SummaryPercentiles))
	assert.InDelta(t, sum.Median, sum.Percentiles[50], 1e-12)
	assert.Less(t, sum.Percentiles[5], sum.Percentiles[95])
}

func TestSummarize_PositiveSkew(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = -0.01
	}
	for i := 0; i < 50; i++ {
		values[i] = 0.5
	}

	sum := Summarize(values)
	assert.Greater(t, sum.Skew, 0.0)
	assert.Greater(t, sum.Mean, sum.Median)

	// 양의 왜도: 정규 가정 VaR 이 경험적 VaR 과 다름
	assert.InDelta(t, CalculateParametricVaR(sum.Mean, sum.StdDev, 0.95).VaR, sum.ParametricVaR95, 1e-12)
	assert.NotEqual(t, sum.VaR95, sum.ParametricVaR95)
	assert.InDelta(t, 0.05, sum.ProbGain, 1e-12)
}

func TestSummarize_Degenerate(t *testing.T) {
	empty := Summarize(nil)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Percentiles)

	one := Summarize([]float64{-0.02})
	assert.Equal(t, -0.02, one.Mean)
	assert.Zero(t, one.StdDev)
	assert.Zero(t, one.Skew)
	assert.InDelta(t, 0.02, one.VaR95, 1e-12)
	assert.False(t, math.IsNaN(one.Skew))
}

func TestCheckLimits(t *testing.T) {
	sum := Summary{VaR95: 0.06, CVaR95: 0.05, ProbLoss10: 0.2}

	res := CheckLimits(sum, DefaultLimits())
	assert.False(t, res.Passed)
	assert.Len(t, res.Violations, 2)
	assert.Contains(t, res.Violations[0], "VaR95")
	assert.Contains(t, res.Violations[1], "P(loss>10%)")

	res = CheckLimits(sum, Limits{})
	assert.True(t, res.Passed)
	assert.Empty(t, res.Violations)
}
