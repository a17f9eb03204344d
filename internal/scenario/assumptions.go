package scenario

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/regimerisk/internal/factors"
)

// =============================================================================
// Regime Assumptions
// =============================================================================

var (
	// ErrInvalidConfig 시나리오 요청/가정 오류
	ErrInvalidConfig = errors.New("invalid scenario config")
)

// Assumptions 레짐별 시나리오 파라미터 (연율)
// 변동성 단위: IV 는 소수 (0.20 = 20 vol pts), 금리는 bps
type Assumptions struct {
	EquityDrift     float64 `yaml:"equity_drift" json:"equity_drift"`
	EquityVol       float64 `yaml:"equity_vol" json:"equity_vol"`
	IVStart         float64 `yaml:"iv_start" json:"iv_start"`
	IVMean          float64 `yaml:"iv_mean" json:"iv_mean"`
	IVMeanReversion float64 `yaml:"iv_mean_reversion" json:"iv_mean_reversion"`
	IVVolOfVol      float64 `yaml:"iv_vol_of_vol" json:"iv_vol_of_vol"`
	RateDriftBps    float64 `yaml:"rate_drift_bps" json:"rate_drift_bps"`
	RateVolBps      float64 `yaml:"rate_vol_bps" json:"rate_vol_bps"`

	JumpProbability float64 `yaml:"jump_probability" json:"jump_probability"` // 호라이즌당 확률
	JumpMean        float64 `yaml:"jump_mean" json:"jump_mean"`               // 주식 수익률 (음수 = 하락)
	JumpStd         float64 `yaml:"jump_std" json:"jump_std"`
	JumpIVSpike     float64 `yaml:"jump_iv_spike" json:"jump_iv_spike"` // 소수 (0.10 = +10 pts)
	JumpIVSpikeStd  float64 `yaml:"jump_iv_spike_std" json:"jump_iv_spike_std"`

	// FactorVols 역할 없는 팩터의 연율 변동성 (변화량 단위)
	FactorVols map[string]float64 `yaml:"factor_vols" json:"factor_vols"`
}

// IV 경로 경계
const (
	MinIV = 0.05
	MaxIV = 1.50
)

func defaultFactorVols() map[string]float64 {
	return map[string]float64{
		factors.VIX:    0.40,
		factors.SPX:    0.15,
		factors.UST10Y: 60,
		factors.UST2Y:  80,
		factors.HYOAS:  1.00,
		factors.CPI:    0.005,
	}
}

func base(drift, vol, mr, vov, ivMean, jumpP, jumpMean, spikePts, rateDrift, rateVol float64) Assumptions {
	return Assumptions{
		EquityDrift:     drift,
		EquityVol:       vol,
		IVStart:         0.20,
		IVMean:          ivMean,
		IVMeanReversion: mr,
		IVVolOfVol:      vov,
		RateDriftBps:    rateDrift,
		RateVolBps:      rateVol,
		JumpProbability: jumpP,
		JumpMean:        jumpMean,
		JumpStd:         0.05,
		JumpIVSpike:     spikePts / 100,
		JumpIVSpikeStd:  0.02,
		FactorVols:      defaultFactorVols(),
	}
}

// Table 레짐 → 가정 + 별칭
type Table struct {
	Regimes map[string]Assumptions `json:"regimes"`
	Aliases map[string]string      `json:"aliases"`
}

// DefaultTable 기본 가정표
func DefaultTable() *Table {
	stag := base(-0.02, 0.22, 0.5, 0.80, 0.25, 0.10, -0.15, 10, 40, 90)
	gold := base(0.08, 0.15, 1.0, 0.50, 0.18, 0.03, -0.10, 5, 0, 60)

	return &Table{
		Regimes: map[string]Assumptions{
			"STAGFLATION":     stag,
			"INFLATIONARY":    stag,
			"GOLDILOCKS":      gold,
			"DISINFLATIONARY": gold,
			"RISK_OFF":        base(-0.25, 0.35, 0.2, 1.20, 0.40, 0.25, -0.20, 15, -120, 140),
			"RATES_SHOCK":     base(-0.10, 0.24, 0.6, 0.70, 0.22, 0.08, -0.12, 8, 150, 130),
			"CREDIT_STRESS":   base(-0.15, 0.28, 0.4, 0.90, 0.30, 0.15, -0.18, 12, -60, 110),
			"SLOW_BLEED":      base(-0.08, 0.16, 0.9, 0.45, 0.19, 0.02, -0.08, 4, -20, 70),
			"VOL_CRUSH":       base(0.10, 0.12, 1.5, 0.35, 0.14, 0.01, -0.06, 3, 0, 50),
			"ALL":             base(0.05, 0.18, 0.75, 0.65, 0.20, 0.05, -0.12, 7.5, 0, 80),
		},
		Aliases: map[string]string{
			"CRASH":        "RISK_OFF",
			"BEAR":         "RISK_OFF",
			"RATES":        "RATES_SHOCK",
			"CREDIT":       "CREDIT_STRESS",
			"BULL":         "GOLDILOCKS",
			"BASE":         "ALL",
			"DEFLATIONARY": "DISINFLATIONARY",
		},
	}
}

// For 레짐 가정 조회 (별칭 → 정식 이름, 없으면 ALL). 사용된 키를 함께 반환
func (t *Table) For(regime string) (Assumptions, string) {
	key := strings.ToUpper(strings.TrimSpace(regime))
	if alias, ok := t.Aliases[key]; ok {
		key = alias
	}
	if a, ok := t.Regimes[key]; ok {
		return a, key
	}
	return t.Regimes["ALL"], "ALL"
}

// Validate 파라미터 범위 확인
func (a Assumptions) Validate() error {
	switch {
	case a.EquityVol < 0 || a.IVVolOfVol < 0 || a.RateVolBps < 0 || a.JumpStd < 0 || a.JumpIVSpikeStd < 0:
		return fmt.Errorf("%w: volatilities must be >= 0", ErrInvalidConfig)
	case a.JumpProbability < 0 || a.JumpProbability > 1:
		return fmt.Errorf("%w: jump_probability %g outside [0,1]", ErrInvalidConfig, a.JumpProbability)
	case a.IVStart < MinIV || a.IVStart > MaxIV:
		return fmt.Errorf("%w: iv_start %g outside [%g,%g]", ErrInvalidConfig, a.IVStart, MinIV, MaxIV)
	case a.IVMeanReversion < 0:
		return fmt.Errorf("%w: iv_mean_reversion must be >= 0", ErrInvalidConfig)
	}
	for name, v := range a.FactorVols {
		if v < 0 {
			return fmt.Errorf("%w: factor_vols[%s] must be >= 0", ErrInvalidConfig, name)
		}
	}
	return nil
}

// LoadTable YAML 오버라이드를 기본 가정표 위에 적용
// 레짐 항목은 부분 지정 가능 (지정한 필드만 덮어씀). KnownFields(true) 로 오타 즉시 실패
//
//	regimes:
//	  STAGFLATION:
//	    jump_probability: 0.12
//	aliases:
//	  WAR: RISK_OFF
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assumptions: %w", err)
	}
	return ParseTable(data)
}

// ParseTable LoadTable 의 바이트 버전
func ParseTable(data []byte) (*Table, error) {
	var raw struct {
		Regimes map[string]yaml.Node `yaml:"regimes"`
		Aliases map[string]string    `yaml:"aliases"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	table := DefaultTable()
	for name, node := range raw.Regimes {
		key := strings.ToUpper(name)
		a, _ := table.For(key)
		a.FactorVols = copyVols(a.FactorVols)

		body, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("%w: regime %s: %v", ErrInvalidConfig, name, err)
		}
		rdec := yaml.NewDecoder(bytes.NewReader(body))
		rdec.KnownFields(true)
		if err := rdec.Decode(&a); err != nil {
			return nil, fmt.Errorf("%w: regime %s: %v", ErrInvalidConfig, name, err)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("regime %s: %w", name, err)
		}
		table.Regimes[key] = a
	}
	for alias, target := range raw.Aliases {
		target = strings.ToUpper(target)
		if _, ok := table.Regimes[target]; !ok {
			return nil, fmt.Errorf("%w: alias %s points to unknown regime %s", ErrInvalidConfig, alias, target)
		}
		table.Aliases[strings.ToUpper(alias)] = target
	}

	return table, nil
}

func copyVols(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Hash 가정표 SHA256 (canonical JSON, map 키 정렬)
func (t *Table) Hash() (string, error) {
	return hashJSON(t)
}

// Hash 단일 레짐 가정 SHA256. 실행 리포트에 기록
func (a Assumptions) Hash() (string, error) {
	return hashJSON(a)
}

func hashJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
