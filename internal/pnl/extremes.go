package pnl

import (
	"sort"

	"github.com/wonny/regimerisk/internal/scenario"
)

// Shock 팩터 충격 하나
type Shock struct {
	Factor string  `json:"factor"`
	Value  float64 `json:"value"`
}

// Extreme 상/하위 시나리오와 그 원인
type Extreme struct {
	Rank       int            `json:"rank"`
	Trial      int            `json:"trial"`
	Pct        float64        `json:"total_pct"`
	Value      float64        `json:"value"`
	Driver     Driver         `json:"driver"`
	Return     float64        `json:"equity_return"`
	IVChange   float64        `json:"iv_change"`
	RateChange float64        `json:"rate_change_bps"`
	Jump       bool           `json:"jump"`
	Shocks     []Shock        `json:"shocks"`
	Positions  []Contribution `json:"positions"`
}

// Extremes 상위 N (best) / 하위 N (worst)
type Extremes struct {
	Best  []Extreme `json:"best"`
	Worst []Extreme `json:"worst"`
}

// Rank 총 손익 기준 상/하위 N 개 시나리오 추출 (동률은 trial 순)
func Rank(ens *scenario.Ensemble, dist *Distribution, n int) Extremes {
	if dist == nil || len(dist.Records) == 0 || n <= 0 {
		return Extremes{}
	}

	worst := rankOrder(dist, func(a, b float64) bool { return a < b })
	best := rankOrder(dist, func(a, b float64) bool { return a > b })

	if n > len(worst) {
		n = len(worst)
	}

	out := Extremes{
		Best:  make([]Extreme, 0, n),
		Worst: make([]Extreme, 0, n),
	}
	for k := 0; k < n; k++ {
		out.Worst = append(out.Worst, extreme(ens, dist, worst[k], k+1))
		out.Best = append(out.Best, extreme(ens, dist, best[k], k+1))
	}
	return out
}

// 안정 정렬이므로 동률은 원래 trial 순서 유지
func rankOrder(dist *Distribution, less func(a, b float64) bool) []int {
	order := make([]int, len(dist.Records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return less(dist.Records[order[a]].Pct, dist.Records[order[b]].Pct)
	})
	return order
}

func extreme(ens *scenario.Ensemble, dist *Distribution, i, rank int) Extreme {
	rec := dist.Records[i]
	sc := ens.Scenarios[i]

	shocks := make([]Shock, len(ens.Factors))
	for j, name := range ens.Factors {
		shocks[j] = Shock{Factor: name, Value: sc.Shocks[j]}
	}
	return Extreme{
		Rank:       rank,
		Trial:      rec.Trial,
		Pct:        rec.Pct,
		Value:      rec.Value,
		Driver:     rec.Driver,
		Return:     sc.Return,
		IVChange:   sc.IVChange,
		RateChange: sc.RateChange,
		Jump:       sc.Jump,
		Shocks:     shocks,
		Positions:  rec.Positions,
	}
}
