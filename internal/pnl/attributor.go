package pnl

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/regimerisk/internal/scenario"
)

// =============================================================================
// Types
// =============================================================================

// DaysPerMonth 호라이즌 개월 → 경과일
const DaysPerMonth = 30

// Driver 시나리오 손익의 주 요인
type Driver string

const (
	DriverDelta Driver = "delta"
	DriverGamma Driver = "gamma"
	DriverVega  Driver = "vega"
	DriverTheta Driver = "theta"
	DriverBound Driver = "bound"
)

// Contribution 포지션 하나의 Taylor 분해
// Delta + Gamma + Vega + Theta + Bound == Total
type Contribution struct {
	InstrumentID string  `json:"instrument_id"`
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Vega         float64 `json:"vega"`
	Theta        float64 `json:"theta"`
	Bound        float64 `json:"bound,omitempty"`
	Total        float64 `json:"total"`
}

// Record 시나리오 하나의 포트폴리오 손익 + 분해
type Record struct {
	Trial          int            `json:"trial"`
	Value          float64        `json:"value"`     // Σ 포지션 손익 (통화 단위)
	Pct            float64        `json:"total_pct"` // Value / Σ|notional|
	Positions      []Contribution `json:"positions"`
	TopContributor string         `json:"top_contributor"`
	TopDetractor   string         `json:"top_detractor"`
	Driver         Driver         `json:"driver"`
}

// Distribution 앙상블 전체의 손익 분포. Totals[i] == Records[i].Pct
type Distribution struct {
	Notional    float64   `json:"notional"`
	ElapsedDays float64   `json:"elapsed_days"`
	Totals      []float64 `json:"-"`
	Records     []Record  `json:"-"`
	FactorOnly  bool      `json:"factor_only"`
}

// =============================================================================
// Attributor
// =============================================================================

// Config 손익 계산 설정
type Config struct {
	// BoundLongOptions 매수 옵션 손익을 [-Notional, 10 x Notional] 로 제한 (Bound 항목으로 기록)
	BoundLongOptions bool
}

// Attributor 시나리오 → 포지션/포트폴리오 손익
type Attributor struct {
	cfg Config
	log zerolog.Logger
}

// NewAttributor 생성
func NewAttributor(cfg Config, log zerolog.Logger) *Attributor {
	return &Attributor{cfg: cfg, log: log}
}

// Attribute 모든 시나리오에 대해 포지션 손익 계산
// positions 가 비어 있으면 FactorOnly 분포 반환 (손익 없음)
func (a *Attributor) Attribute(ens *scenario.Ensemble, positions []Position) (*Distribution, error) {
	elapsed := ens.HorizonMonths * DaysPerMonth
	dist := &Distribution{ElapsedDays: elapsed}
	if len(positions) == 0 {
		dist.FactorOnly = true
		return dist, nil
	}

	for _, p := range positions {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	dist.Notional = TotalNotional(positions)
	if dist.Notional == 0 {
		return nil, fmt.Errorf("%w: total notional is zero", ErrInvalidPortfolio)
	}

	dist.Totals = make([]float64, len(ens.Scenarios))
	dist.Records = make([]Record, len(ens.Scenarios))
	for i := range ens.Scenarios {
		rec := a.record(&ens.Scenarios[i], positions, elapsed)
		rec.Pct = rec.Value / dist.Notional
		dist.Records[i] = rec
		dist.Totals[i] = rec.Pct
	}

	a.log.Debug().
		Int("scenarios", len(dist.Records)).
		Int("positions", len(positions)).
		Float64("notional", dist.Notional).
		Msg("pnl attributed")

	return dist, nil
}

func (a *Attributor) record(sc *scenario.Scenario, positions []Position, elapsed float64) Record {
	rec := Record{Trial: sc.Trial, Positions: make([]Contribution, len(positions))}

	var sums [5]float64 // delta, gamma, vega, theta, bound
	best, worst := math.Inf(-1), math.Inf(1)
	for j, p := range positions {
		c := a.Expand(p, sc, elapsed)
		rec.Positions[j] = c
		rec.Value += c.Total

		sums[0] += c.Delta
		sums[1] += c.Gamma
		sums[2] += c.Vega
		sums[3] += c.Theta
		sums[4] += c.Bound

		if c.Total > best {
			best, rec.TopContributor = c.Total, p.InstrumentID
		}
		if c.Total < worst {
			worst, rec.TopDetractor = c.Total, p.InstrumentID
		}
	}

	drivers := [5]Driver{DriverDelta, DriverGamma, DriverVega, DriverTheta, DriverBound}
	idx := 0
	for k := range sums {
		if math.Abs(sums[k]) > math.Abs(sums[idx]) {
			idx = k
		}
	}
	rec.Driver = drivers[idx]
	return rec
}

// Expand 2차 Taylor 전개: delta·ΔS + ½·gamma·ΔS² + vega·Δσ − theta·Δt (모두 수량 배수)
// ΔS = 수익률 x beta x 기초자산 가격, Δt = min(경과일, 잔존일)
// 매도 포지션(수량 < 0)은 세타를 수취
func (a *Attributor) Expand(p Position, sc *scenario.Scenario, elapsedDays float64) Contribution {
	q := p.units()
	dS := sc.Return * p.beta() * p.price()

	days := elapsedDays
	if p.DaysToExpiry > 0 && p.DaysToExpiry < days {
		days = p.DaysToExpiry
	}

	c := Contribution{
		InstrumentID: p.InstrumentID,
		Delta:        q * p.Delta * dS,
		Gamma:        0.5 * q * p.Gamma * dS * dS,
		Vega:         q * p.Vega * sc.IVChange,
		Theta:        -q * p.Theta * days,
	}
	raw := c.Delta + c.Gamma + c.Vega + c.Theta
	c.Total = raw

	if a.cfg.BoundLongOptions && p.Kind == KindOption && q > 0 && p.Notional > 0 {
		lo, hi := -p.Notional, 10*p.Notional
		bounded := math.Max(lo, math.Min(hi, raw))
		c.Bound = bounded - raw
		c.Total = bounded
	}
	return c
}
