package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// CalculateVaR 시나리오 손익 분포 기반 VaR (Historical Simulation)
// values: 시나리오별 손익 (양수=이익, 음수=손실), 정렬 불필요
// confidence: 신뢰수준 (예: 0.95, 0.99)
func CalculateVaR(values []float64, confidence float64) VaRResult {
	if len(values) == 0 {
		return VaRResult{Confidence: confidence}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return varFromSorted(sorted, confidence)
}

func varFromSorted(sorted []float64, confidence float64) VaRResult {
	// 예: 95% VaR = 하위 5% 백분위수
	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	var varValue float64
	if sorted[idx] < 0 {
		varValue = -sorted[idx]
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall)
// sorted: 오름차순 정렬된 손익, varIdx 이하가 tail
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}

	var sum float64
	for i := 0; i <= varIdx; i++ {
		sum += sorted[i]
	}
	avg := sum / float64(varIdx+1)

	if avg < 0 {
		return -avg
	}
	return 0
}

// CalculateParametricVaR 정규분포 가정 VaR. Summary.ParametricVaR95 로 경험적 VaR 옆에 보고
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	if stdDev <= 0 || confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence}
	}
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	z := norm.Quantile(confidence)

	varValue := math.Max(0, z*stdDev-mean)
	cvar := math.Max(0, stdDev*norm.Prob(z)/(1-confidence)-mean)

	return VaRResult{Confidence: confidence, VaR: varValue, CVaR: cvar}
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// Percentile 백분위수 (선형 보간). sorted 는 오름차순, p 는 0..100
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
