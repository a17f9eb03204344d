package correlation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/regimerisk/internal/factors"
)

// =============================================================================
// Trainer
// =============================================================================

// DefaultMinObservations 레짐별 최소 관측치 (약 3개월 거래일)
const DefaultMinObservations = 60

// DefaultRegimes 관측치가 없어도 항상 결과에 포함되는 레짐
func DefaultRegimes() []string {
	return []string{"DISINFLATIONARY", "INFLATIONARY", "STAGFLATION", "GOLDILOCKS"}
}

// Writer 학습 결과 저장소 (store.Store 가 구현)
type Writer interface {
	Put(ctx context.Context, m *Matrix) error
}

// TrainerConfig 학습 설정
type TrainerConfig struct {
	MinObservations int      // 기본 60
	Regimes         []string // 기본 DefaultRegimes()
}

// Trainer 레짐 조건부 상관행렬 학습기
type Trainer struct {
	cfg    TrainerConfig
	writer Writer
	log    zerolog.Logger
}

// NewTrainer 생성. writer 가 nil 이면 저장 생략
func NewTrainer(cfg TrainerConfig, writer Writer, log zerolog.Logger) *Trainer {
	if cfg.MinObservations <= 1 {
		cfg.MinObservations = DefaultMinObservations
	}
	if cfg.Regimes == nil {
		cfg.Regimes = DefaultRegimes()
	}
	return &Trainer{
		cfg:    cfg,
		writer: writer,
		log:    log,
	}
}

// MinObservations 적용 중인 최소 관측치
func (t *Trainer) MinObservations() int {
	return t.cfg.MinObservations
}

// TrainResult 학습 결과 (ALL 먼저, 이후 레짐 순)
type TrainResult struct {
	Start    time.Time `json:"start"`
	Rows     int       `json:"rows"`
	Matrices []*Matrix `json:"matrices"`
}

// Get 레짐 행렬 조회
func (r *TrainResult) Get(regime string) *Matrix {
	for _, m := range r.Matrices {
		if m.Regime == regime {
			return m
		}
	}
	return nil
}

// Train start 이후 변화량으로 레짐별 + ALL 행렬 학습 후 저장
// 표본 부족 레짐은 Valid=false 로 기록 (에러 아님). 사용 가능한 변화량이 전혀 없을 때만 ErrDataInsufficient
func (t *Trainer) Train(ctx context.Context, s *factors.Series, start time.Time) (*TrainResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	rows := factors.Changes(s, start)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no period changes on or after %s", ErrDataInsufficient, start.Format("2006-01-02"))
	}

	names := factors.Names(s.Factors)
	result := &TrainResult{Start: start, Rows: len(rows)}

	all := t.Estimate(AllRegimes, names, rows)
	if all.SampleSize == 0 {
		return nil, fmt.Errorf("%w: some factor pair has no overlapping changes", ErrDataInsufficient)
	}
	result.Matrices = append(result.Matrices, all)

	for _, regime := range t.regimes(rows) {
		result.Matrices = append(result.Matrices, t.Estimate(regime, names, filter(rows, regime)))
	}

	for _, m := range result.Matrices {
		ev := t.log.Info()
		if !m.Valid {
			ev = t.log.Warn()
		}
		ev.Str("regime", m.Regime).
			Int("sample_size", m.SampleSize).
			Bool("valid", m.Valid).
			Str("reason", string(m.InvalidReason)).
			Bool("repaired", m.Repaired).
			Msg("correlation matrix trained")

		if t.writer == nil {
			continue
		}
		if err := t.writer.Put(ctx, m); err != nil {
			return result, fmt.Errorf("persist %s matrix: %w", m.Regime, err)
		}
	}

	return result, nil
}

// regimes 기본 레짐 + 데이터에 등장한 나머지 레짐 (정렬)
func (t *Trainer) regimes(rows []factors.ChangeRow) []string {
	seen := map[string]bool{AllRegimes: true}
	var out []string
	for _, r := range t.cfg.Regimes {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}

	var extra []string
	for _, row := range rows {
		if !seen[row.Regime] {
			seen[row.Regime] = true
			extra = append(extra, row.Regime)
		}
	}
	sort.Strings(extra)

	return append(out, extra...)
}

func filter(rows []factors.ChangeRow, regime string) []factors.ChangeRow {
	out := make([]factors.ChangeRow, 0, len(rows))
	for _, r := range rows {
		if r.Regime == regime {
			out = append(out, r)
		}
	}
	return out
}

// Estimate 변화량 행에서 pairwise Pearson 상관행렬 추정
// 쌍별로 두 값이 모두 있는 행만 사용. SampleSize = 쌍별 표본 수의 최소값
func (t *Trainer) Estimate(regime string, names []string, rows []factors.ChangeRow) *Matrix {
	n := len(names)
	m := &Matrix{
		Regime:  regime,
		Factors: append([]string(nil), names...),
		Values:  Identity(n),
		Source:  SourceTrained,
	}

	sample := math.MaxInt
	degenerate := false
	x := make([]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))

	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			x, y = x[:0], y[:0]
			for _, r := range rows {
				a, b := r.Values[i], r.Values[j]
				if factors.IsMissing(a) || factors.IsMissing(b) {
					continue
				}
				x = append(x, a)
				y = append(y, b)
			}
			if len(x) < sample {
				sample = len(x)
			}

			c := 0.0
			if len(x) >= 2 {
				c = stat.Correlation(x, y, nil)
			}
			if math.IsNaN(c) {
				c = 0
				degenerate = true
			}
			c = math.Max(-1, math.Min(1, c))
			m.Values[i][j] = c
			m.Values[j][i] = c
		}
	}
	if sample == math.MaxInt {
		sample = 0
	}
	m.SampleSize = sample

	if len(rows) > 0 {
		m.TrainedThrough = rows[len(rows)-1].Date
	}

	switch {
	case m.SampleSize < t.cfg.MinObservations:
		m.InvalidReason = ReasonInsufficientData
	case degenerate:
		m.InvalidReason = ReasonDegenerateFactor
	case !IsPSD(m.Values):
		repaired, err := Repair(m.Values)
		if err != nil || !IsPSD(repaired) {
			m.InvalidReason = ReasonNotPSD
			break
		}
		m.Values = repaired
		m.Repaired = true
	}
	m.Valid = m.InvalidReason == ReasonNone

	return m
}
