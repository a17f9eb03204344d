package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summarize 손익 분포 요약
func Summarize(values []float64) Summary {
	sum := Summary{Count: len(values), Percentiles: make(map[int]float64, len(SummaryPercentiles))}
	if len(values) == 0 {
		return sum
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		sum.StdDev = stat.StdDev(sorted, nil)
	}
	if sum.StdDev > 0 && len(sorted) > 2 {
		sum.Skew = stat.Skew(sorted, nil)
	}
	sum.Median = Percentile(sorted, 50)
	sum.Min = sorted[0]
	sum.Max = sorted[len(sorted)-1]
	for _, p := range SummaryPercentiles {
		sum.Percentiles[p] = Percentile(sorted, float64(p))
	}

	v95 := varFromSorted(sorted, 0.95)
	v99 := varFromSorted(sorted, 0.99)
	sum.VaR95, sum.CVaR95 = v95.VaR, v95.CVaR
	sum.VaR99, sum.CVaR99 = v99.VaR, v99.CVaR
	sum.ParametricVaR95 = CalculateParametricVaR(sum.Mean, sum.StdDev, 0.95).VaR

	n := float64(len(sorted))
	sum.ProbGain = float64(len(sorted)-sort.SearchFloat64s(sorted, math.Nextafter(0, 1))) / n
	sum.ProbLoss10 = float64(sort.SearchFloat64s(sorted, -0.10)) / n
	sum.ProbLoss20 = float64(sort.SearchFloat64s(sorted, -0.20)) / n

	return sum
}
