package factors

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidSeries 시계열 구조 오류 (날짜 역순, 중복, 폭 불일치)
	ErrInvalidSeries = errors.New("invalid factor series")
	// ErrDataInsufficient 팩터 < 2 개 또는 관측치 0 개
	ErrDataInsufficient = errors.New("insufficient data")
)

// =============================================================================
// Factor Catalog
// =============================================================================

// ChangeKind 기간 변화량 계산 방식
type ChangeKind string

const (
	ChangePct     ChangeKind = "pct"      // (x1 - x0) / x0
	ChangeDiffBps ChangeKind = "diff_bps" // (x1 - x0) * 100 (퍼센트 단위 금리 → bps)
	ChangeDiff    ChangeKind = "diff"     // x1 - x0
)

// Factor 추적 팩터 정의
type Factor struct {
	Name   string     `json:"name"`
	Change ChangeKind `json:"change"`
}

// 기본 팩터 이름
const (
	VIX    = "VIX"
	SPX    = "SPX"
	UST10Y = "UST10Y"
	UST2Y  = "UST2Y"
	HYOAS  = "HY_OAS"
	CPI    = "CPI"
)

// DefaultCatalog 기본 팩터 카탈로그
// ⭐ SSOT: 상관행렬 팩터 순서는 이 카탈로그 순서를 따름
func DefaultCatalog() []Factor {
	return []Factor{
		{Name: VIX, Change: ChangePct},
		{Name: SPX, Change: ChangePct},
		{Name: UST10Y, Change: ChangeDiffBps},
		{Name: UST2Y, Change: ChangeDiffBps},
		{Name: HYOAS, Change: ChangeDiff},
		{Name: CPI, Change: ChangePct},
	}
}

// Lookup returns the catalog entry for name; unknown names default to pct changes
func Lookup(name string) Factor {
	for _, f := range DefaultCatalog() {
		if f.Name == name {
			return f
		}
	}
	return Factor{Name: name, Change: ChangePct}
}

// Names 팩터 이름 목록
func Names(fs []Factor) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// =============================================================================
// Series
// =============================================================================

// Observation 한 날짜의 팩터 관측치
// Values 는 Series.Factors 순서, NaN = 결측
type Observation struct {
	Date   time.Time `json:"date"`
	Regime string    `json:"regime"`
	Values []float64 `json:"values"`
}

// Series 날짜 정렬된 다중 팩터 시계열 + 레짐 라벨
type Series struct {
	Factors      []Factor      `json:"factors"`
	Observations []Observation `json:"observations"`
}

// Missing marks an absent value
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v marks an absent value
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Validate 시계열 불변식 검증
func (s *Series) Validate() error {
	if len(s.Factors) < 2 {
		return fmt.Errorf("%w: need at least 2 factors, got %d", ErrDataInsufficient, len(s.Factors))
	}
	if len(s.Observations) == 0 {
		return fmt.Errorf("%w: series has no rows", ErrDataInsufficient)
	}

	seen := make(map[string]bool, len(s.Factors))
	for _, f := range s.Factors {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("%w: duplicate or empty factor name %q", ErrInvalidSeries, f.Name)
		}
		seen[f.Name] = true
	}

	for i, obs := range s.Observations {
		if len(obs.Values) != len(s.Factors) {
			return fmt.Errorf("%w: row %s has %d values, want %d",
				ErrInvalidSeries, obs.Date.Format("2006-01-02"), len(obs.Values), len(s.Factors))
		}
		if obs.Regime == "" {
			return fmt.Errorf("%w: row %s has no regime label", ErrInvalidSeries, obs.Date.Format("2006-01-02"))
		}
		if i > 0 && !obs.Date.After(s.Observations[i-1].Date) {
			return fmt.Errorf("%w: dates not strictly increasing at %s",
				ErrInvalidSeries, obs.Date.Format("2006-01-02"))
		}
	}

	return nil
}

// Index 팩터 위치 (없으면 -1)
func (s *Series) Index(name string) int {
	for i, f := range s.Factors {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Regimes 시계열에 등장한 레짐 라벨 (등장 순서)
func (s *Series) Regimes() []string {
	var out []string
	seen := map[string]bool{}
	for _, obs := range s.Observations {
		if !seen[obs.Regime] {
			seen[obs.Regime] = true
			out = append(out, obs.Regime)
		}
	}
	return out
}

// Last 마지막 관측일
func (s *Series) Last() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[len(s.Observations)-1].Date
}
