package correlation

import (
	"strings"

	"github.com/wonny/regimerisk/internal/factors"
)

// =============================================================================
// Heuristic Defaults
// =============================================================================
// 학습 행렬이 전혀 없을 때 마지막 폴백. 팩터 순서: VIX, SPX, UST10Y, UST2Y, HY_OAS, CPI
//
// 인플레이션형: 금리-인플레이션 양의 상관, 주식-금리 음의 상관 약화
// 일반형: 금리 하락 = 위험회피 (VIX-금리 음의 상관), 신용 스프레드-VIX 강한 양의 상관

var heuristicFactors = []string{
	factors.VIX, factors.SPX, factors.UST10Y, factors.UST2Y, factors.HYOAS, factors.CPI,
}

var inflationaryDefault = [][]float64{
	{1.00, -0.65, 0.20, 0.15, 0.70, 0.30},
	{-0.65, 1.00, -0.15, -0.10, -0.50, -0.20},
	{0.20, -0.15, 1.00, 0.85, 0.40, 0.60},
	{0.15, -0.10, 0.85, 1.00, 0.35, 0.50},
	{0.70, -0.50, 0.40, 0.35, 1.00, 0.25},
	{0.30, -0.20, 0.60, 0.50, 0.25, 1.00},
}

var normalDefault = [][]float64{
	{1.00, -0.75, -0.40, -0.35, 0.75, 0.15},
	{-0.75, 1.00, 0.30, 0.25, -0.60, -0.10},
	{-0.40, 0.30, 1.00, 0.85, -0.20, 0.40},
	{-0.35, 0.25, 0.85, 1.00, -0.15, 0.30},
	{0.75, -0.60, -0.20, -0.15, 1.00, 0.10},
	{0.15, -0.10, 0.40, 0.30, 0.10, 1.00},
}

// Heuristic 레짐에 맞는 기본 상관행렬 (항상 Valid)
func Heuristic(regime string) *Matrix {
	values := normalDefault
	switch strings.ToUpper(regime) {
	case "STAGFLATION", "INFLATIONARY":
		values = inflationaryDefault
	}

	m := &Matrix{
		Regime:  strings.ToUpper(regime),
		Factors: append([]string(nil), heuristicFactors...),
		Valid:   true,
		Source:  SourceHeuristic,
	}
	m.Values = make([][]float64, len(values))
	for i, row := range values {
		m.Values[i] = append([]float64(nil), row...)
	}
	return m
}
