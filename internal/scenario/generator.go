package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/metrics"
)

// =============================================================================
// Types
// =============================================================================

// Roles 시나리오 필드 ↔ 상관행렬 팩터 매핑
type Roles struct {
	Equity string `json:"equity"`
	Vol    string `json:"vol"`
	Rate   string `json:"rate"`
}

// DefaultRoles SPX / VIX / UST10Y
func DefaultRoles() Roles {
	return Roles{Equity: factors.SPX, Vol: factors.VIX, Rate: factors.UST10Y}
}

// Names 역할 팩터 이름
func (r Roles) Names() []string {
	return []string{r.Equity, r.Vol, r.Rate}
}

// Request 생성 요청
type Request struct {
	Regime        string              // 가정 조회 키 (비우면 Matrix.Regime)
	Matrix        *correlation.Matrix // 해석된 유효 행렬
	HorizonMonths float64
	Trials        int
	Steps         int    // 호라이즌 분할 수 (기본 1)
	Seed          *int64 // nil 이면 무작위 시드 (결과에 기록)
	Assumptions   *Assumptions
	Roles         Roles
}

// Scenario 한 번의 Monte Carlo 시행 (호라이즌 누적 충격)
type Scenario struct {
	Trial         int     `json:"trial"`
	Return        float64 `json:"delta_underlying_return"`
	IVChange      float64 `json:"delta_implied_vol"` // 소수 vol (0.05 = +5 pts)
	RateChange    float64 `json:"delta_rate_bps"`
	Jump          bool    `json:"jump_flag"`
	JumpMagnitude float64 `json:"jump_magnitude"` // 주식 점프 수익률
	JumpIVSpike   float64 `json:"jump_iv_spike"`  // 클리핑 후 실제 IV 점프
	// Shocks 행렬 팩터 순서의 누적 충격. 역할 팩터는 위 필드와 동일
	Shocks []float64 `json:"shocks"`
}

// Ensemble 생성 결과. 시행은 버리지 않음 (len(Scenarios) == Trials)
type Ensemble struct {
	Regime         string      `json:"regime"`
	AssumptionsKey string      `json:"assumptions_key"`
	Factors        []string    `json:"factors"`
	Roles          Roles       `json:"roles"`
	HorizonMonths  float64     `json:"horizon_months"`
	Steps          int         `json:"steps"`
	Trials         int         `json:"trials"`
	Seed           int64       `json:"seed"`
	MixingRepaired bool        `json:"mixing_repaired"`
	Assumptions    Assumptions `json:"assumptions"`
	Scenarios      []Scenario  `json:"-"`
}

// =============================================================================
// Generator
// =============================================================================

// Generator 상관 시나리오 생성기
type Generator struct {
	table    *Table
	workers  int
	recorder metrics.Recorder
	log      zerolog.Logger
}

// NewGenerator 생성. workers <= 0 이면 GOMAXPROCS
func NewGenerator(table *Table, workers int, recorder metrics.Recorder, log zerolog.Logger) *Generator {
	if table == nil {
		table = DefaultTable()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Generator{
		table:    table,
		workers:  workers,
		recorder: recorder,
		log:      log,
	}
}

// Table 사용 중인 가정표
func (g *Generator) Table() *Table {
	return g.table
}

// plan 시행 간 공유되는 읽기 전용 상태
type plan struct {
	a       Assumptions
	mix     *Mixing
	seed    uint64
	steps   int
	dt      float64
	sqdt    float64
	eq      int
	vol     int
	rate    int
	factorV []float64 // 역할 없는 팩터 변동성, 역할 팩터는 0
}

// Generate 앙상블 생성
// 시행 i 는 (seed, i) 로 시드된 독립 PCG 스트림을 쓰므로 worker 수와 무관하게 결과가 동일
func (g *Generator) Generate(ctx context.Context, req Request) (*Ensemble, error) {
	p, ens, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	ens.Scenarios = make([]Scenario, req.Trials)
	workers := g.workers
	if workers > req.Trials {
		workers = req.Trials
	}
	chunk := (req.Trials + workers - 1) / workers

	eg, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < req.Trials; lo += chunk {
		lo, hi := lo, min(lo+chunk, req.Trials)
		eg.Go(func() error {
			k := len(ens.Factors)
			z := make([]float64, k)
			c := make([]float64, k)
			for i := lo; i < hi; i++ {
				if (i-lo)%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				p.trial(i, z, c, &ens.Scenarios[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.log.Debug().
		Str("regime", ens.Regime).
		Int("trials", ens.Trials).
		Int64("seed", ens.Seed).
		Float64("horizon_months", ens.HorizonMonths).
		Msg("scenarios generated")

	return ens, nil
}

func (g *Generator) prepare(req Request) (*plan, *Ensemble, error) {
	m := req.Matrix
	switch {
	case m == nil:
		return nil, nil, fmt.Errorf("%w: no correlation matrix", ErrInvalidConfig)
	case !m.Valid:
		return nil, nil, fmt.Errorf("%w: matrix %s is not valid (%s)", ErrInvalidConfig, m.Regime, m.InvalidReason)
	case req.HorizonMonths <= 0:
		return nil, nil, fmt.Errorf("%w: horizon must be > 0 months", ErrInvalidConfig)
	case req.Trials <= 0:
		return nil, nil, fmt.Errorf("%w: trials must be > 0", ErrInvalidConfig)
	case req.Steps < 0:
		return nil, nil, fmt.Errorf("%w: steps must be >= 0", ErrInvalidConfig)
	}
	if err := m.CheckShape(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	roles := req.Roles
	if roles == (Roles{}) {
		roles = DefaultRoles()
	}
	if !m.HasFactors(roles.Names()...) {
		return nil, nil, fmt.Errorf("%w: matrix %s lacks role factors %v", ErrInvalidConfig, m.Regime, roles.Names())
	}

	regime := req.Regime
	if regime == "" {
		regime = m.Regime
	}
	var (
		a   Assumptions
		key string
	)
	if req.Assumptions != nil {
		a, key = *req.Assumptions, "custom"
	} else {
		a, key = g.table.For(regime)
	}
	if err := a.Validate(); err != nil {
		return nil, nil, err
	}

	mix, err := NewMixing(m.Values)
	if err != nil {
		g.log.Error().Err(err).Str("regime", m.Regime).Msg("mixing matrix unavailable")
		return nil, nil, err
	}
	if mix.Repaired {
		g.recorder.ObserveRepair("generate")
		g.log.Warn().Str("regime", m.Regime).Msg("correlation matrix repaired before cholesky")
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		seed = int64(rand.Uint64() >> 1)
	}

	steps := req.Steps
	if steps == 0 {
		steps = 1
	}
	t := req.HorizonMonths / 12
	dt := t / float64(steps)

	p := &plan{
		a:     a,
		mix:   mix,
		seed:  uint64(seed),
		steps: steps,
		dt:    dt,
		sqdt:  math.Sqrt(dt),
		eq:    m.Index(roles.Equity),
		vol:   m.Index(roles.Vol),
		rate:  m.Index(roles.Rate),
	}
	p.factorV = make([]float64, len(m.Factors))
	for i, name := range m.Factors {
		if i == p.eq || i == p.vol || i == p.rate {
			continue
		}
		p.factorV[i] = a.FactorVols[name]
	}

	ens := &Ensemble{
		Regime:         m.Regime,
		AssumptionsKey: key,
		Factors:        append([]string(nil), m.Factors...),
		Roles:          roles,
		HorizonMonths:  req.HorizonMonths,
		Steps:          steps,
		Trials:         req.Trials,
		Seed:           seed,
		MixingRepaired: mix.Repaired,
		Assumptions:    a,
	}
	return p, ens, nil
}

func clipIV(v float64) float64 {
	return math.Max(MinIV, math.Min(MaxIV, v))
}

// trial 시행 i 생성. z, c 는 worker 별 버퍼
func (p *plan) trial(i int, z, c []float64, out *Scenario) {
	rng := rand.New(rand.NewPCG(p.seed, uint64(i)))
	a := p.a
	shocks := make([]float64, len(z))

	var ret, rate float64
	iv := a.IVStart
	for s := 0; s < p.steps; s++ {
		for j := range z {
			z[j] = rng.NormFloat64()
		}
		p.mix.Apply(z, c)

		ret += a.EquityDrift*p.dt + a.EquityVol*p.sqdt*c[p.eq]
		iv = clipIV(iv + a.IVMeanReversion*(a.IVMean-iv)*p.dt + iv*a.IVVolOfVol*p.sqdt*c[p.vol])
		rate += a.RateDriftBps*p.dt + a.RateVolBps*p.sqdt*c[p.rate]
		for j, v := range p.factorV {
			if v != 0 {
				shocks[j] += v * p.sqdt * c[j]
			}
		}
	}

	// 점프: 시행당 Bernoulli 1회, 주식/IV 에만 추가
	u, jz1, jz2 := rng.Float64(), rng.NormFloat64(), rng.NormFloat64()
	var jump bool
	var mag, spike float64
	if u < a.JumpProbability {
		jump = true
		mag = a.JumpMean + a.JumpStd*jz1
		ret += mag
		before := iv
		iv = clipIV(iv + a.JumpIVSpike + a.JumpIVSpikeStd*jz2)
		spike = iv - before
	}

	ivChange := iv - a.IVStart
	shocks[p.eq] = ret
	shocks[p.vol] = ivChange
	shocks[p.rate] = rate

	*out = Scenario{
		Trial:         i,
		Return:        ret,
		IVChange:      ivChange,
		RateChange:    rate,
		Jump:          jump,
		JumpMagnitude: mag,
		JumpIVSpike:   spike,
		Shocks:        shocks,
	}
}
