package scenario

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FactorStats 팩터 충격 분포 요약
type FactorStats struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	P5   float64 `json:"p5"`
	P95  float64 `json:"p95"`
}

// Summary 앙상블 팩터 요약
type Summary struct {
	Trials        int           `json:"trials"`
	JumpFrequency float64       `json:"jump_frequency"`
	Return        FactorStats   `json:"equity_return"`
	IVChange      FactorStats   `json:"iv_change"`
	RateChange    FactorStats   `json:"rate_change_bps"`
	Factors       []FactorStats `json:"factors"`
}

// Summarize 앙상블 요약 통계
func Summarize(e *Ensemble) Summary {
	n := len(e.Scenarios)
	sum := Summary{Trials: n}
	if n == 0 {
		return sum
	}

	ret := make([]float64, n)
	iv := make([]float64, n)
	rate := make([]float64, n)
	jumps := 0
	for i, s := range e.Scenarios {
		ret[i], iv[i], rate[i] = s.Return, s.IVChange, s.RateChange
		if s.Jump {
			jumps++
		}
	}
	sum.JumpFrequency = float64(jumps) / float64(n)
	sum.Return = describe("equity_return", ret)
	sum.IVChange = describe("iv_change", iv)
	sum.RateChange = describe("rate_change_bps", rate)

	col := make([]float64, n)
	for j, name := range e.Factors {
		for i, s := range e.Scenarios {
			col[i] = s.Shocks[j]
		}
		sum.Factors = append(sum.Factors, describe(name, col))
	}
	return sum
}

func describe(name string, xs []float64) FactorStats {
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return FactorStats{
		Name: name,
		Mean: mean,
		Std:  std,
		P5:   stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}
