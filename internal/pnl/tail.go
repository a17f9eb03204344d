package pnl

import (
	"math"
	"sort"
)

// DefaultTailQuantile 하위 5% 시나리오
const DefaultTailQuantile = 0.05

// TailShare 꼬리 구간 포지션별 손익 기여
type TailShare struct {
	InstrumentID string  `json:"instrument_id"`
	MeanPnL      float64 `json:"mean_pnl"`
	Share        float64 `json:"share"` // 꼬리 평균 손익 대비 비중
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Vega         float64 `json:"vega"`
	Theta        float64 `json:"theta"`
	Bound        float64 `json:"bound,omitempty"`
}

// TailAttribution 하위 q 분위 시나리오의 평균 분해
type TailAttribution struct {
	Quantile  float64     `json:"quantile"`
	Scenarios int         `json:"scenarios"`
	MeanPct   float64     `json:"mean_pct"`
	MeanValue float64     `json:"mean_value"`
	Positions []TailShare `json:"positions"`
}

// Tail 손실이 가장 큰 q 비율 시나리오에서 포지션별 평균 기여 계산
// 최소 1개 시나리오 포함
func Tail(dist *Distribution, q float64) TailAttribution {
	if q <= 0 || q > 1 {
		q = DefaultTailQuantile
	}
	out := TailAttribution{Quantile: q}
	if dist == nil || len(dist.Records) == 0 {
		return out
	}

	order := make([]int, len(dist.Records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist.Records[order[a]].Pct < dist.Records[order[b]].Pct
	})

	k := int(math.Ceil(q * float64(len(order))))
	if k < 1 {
		k = 1
	}
	out.Scenarios = k

	npos := len(dist.Records[0].Positions)
	shares := make([]TailShare, npos)
	for _, i := range order[:k] {
		rec := dist.Records[i]
		out.MeanPct += rec.Pct
		out.MeanValue += rec.Value
		for j, c := range rec.Positions {
			s := &shares[j]
			s.InstrumentID = c.InstrumentID
			s.MeanPnL += c.Total
			s.Delta += c.Delta
			s.Gamma += c.Gamma
			s.Vega += c.Vega
			s.Theta += c.Theta
			s.Bound += c.Bound
		}
	}

	n := float64(k)
	out.MeanPct /= n
	out.MeanValue /= n
	for j := range shares {
		s := &shares[j]
		s.MeanPnL /= n
		s.Delta /= n
		s.Gamma /= n
		s.Vega /= n
		s.Theta /= n
		s.Bound /= n
		if out.MeanValue != 0 {
			s.Share = s.MeanPnL / out.MeanValue
		}
	}
	out.Positions = shares
	return out
}
