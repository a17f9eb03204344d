package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/internal/metrics"
)

// =============================================================================
// Fallback Resolution
// =============================================================================
// 순서: (1) 요청 레짐 행렬 (2) ALL 집계 행렬 (3) 내장 기본 행렬
// 모든 폴백 단계는 Resolution 에 기록됨 (로그만 남기고 조용히 대체하지 않음)

// Source 최종 사용된 행렬 종류
type Source string

const (
	SourceRegime    Source = "regime"
	SourceAggregate Source = "aggregate"
	SourceHeuristic Source = "heuristic"
)

// 해석 단계에서만 생기는 사유
const (
	ReasonNotTrained     correlation.Reason = "not_trained"
	ReasonMissingFactors correlation.Reason = "missing_factors"
	ReasonStoreError     correlation.Reason = "store_error"
)

// HeuristicLabel 기본 행렬 사용 시 Used 값
const HeuristicLabel = "HEURISTIC"

// Step 건너뛴 후보 한 개
type Step struct {
	Candidate string             `json:"candidate"`
	Reason    correlation.Reason `json:"reason"`
	Detail    string             `json:"detail,omitempty"`
}

// Resolution 해석 결과. Matrix 는 항상 사용 가능한 행렬
type Resolution struct {
	Requested string              `json:"requested"`
	Used      string              `json:"used"`
	Source    Source              `json:"source"`
	Reason    correlation.Reason  `json:"reason,omitempty"`
	Steps     []Step              `json:"steps,omitempty"`
	Matrix    *correlation.Matrix `json:"matrix"`
}

// FellBack 요청 레짐 외 행렬을 사용했는지
func (r *Resolution) FellBack() bool {
	return r.Source != SourceRegime
}

// String requested=X, used=Y, reason=Z
func (r *Resolution) String() string {
	reason := string(r.Reason)
	if reason == "" {
		reason = "none"
	}
	return fmt.Sprintf("requested=%s, used=%s, reason=%s", r.Requested, r.Used, reason)
}

// ResolverConfig 설정
type ResolverConfig struct {
	// RequiredFactors 시뮬레이터가 반드시 필요로 하는 팩터 (없는 행렬은 건너뜀)
	RequiredFactors []string
	// Heuristic 마지막 폴백. nil 이면 correlation.Heuristic
	Heuristic func(regime string) *correlation.Matrix
	// DisableHeuristic true 면 기본 행렬을 쓰지 않음
	DisableHeuristic bool
}

type candidate struct {
	key    string
	source Source
}

// Resolver 요청 레짐 → 사용 가능한 행렬
type Resolver struct {
	store    Store
	cfg      ResolverConfig
	recorder metrics.Recorder
	log      zerolog.Logger
}

// NewResolver 생성. recorder 가 nil 이면 metrics.Nop
func NewResolver(s Store, cfg ResolverConfig, recorder metrics.Recorder, log zerolog.Logger) *Resolver {
	if cfg.Heuristic == nil {
		cfg.Heuristic = correlation.Heuristic
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Resolver{
		store:    s,
		cfg:      cfg,
		recorder: recorder,
		log:      log,
	}
}

// Normalize 레짐 라벨 정규화
func Normalize(regime string) string {
	r := strings.ToUpper(strings.TrimSpace(regime))
	if r == "" {
		return correlation.AllRegimes
	}
	return r
}

// Resolve 폴백 순서대로 사용 가능한 행렬 탐색
// 레짐 누락은 에러가 아님. 기본 행렬까지 불가할 때만 ErrFallbackExhausted
func (r *Resolver) Resolve(ctx context.Context, regime string) (*Resolution, error) {
	requested := Normalize(regime)
	res := &Resolution{Requested: requested}

	candidates := []candidate{{requested, SourceRegime}}
	if requested == correlation.AllRegimes {
		candidates[0].source = SourceAggregate
	} else {
		candidates = append(candidates, candidate{correlation.AllRegimes, SourceAggregate})
	}

	for _, c := range candidates {
		m, step := r.try(ctx, c.key)
		if step == nil {
			res.Used = c.key
			res.Source = c.source
			res.Matrix = m
			r.finish(res)
			return res, nil
		}
		res.Steps = append(res.Steps, *step)
		if res.Reason == correlation.ReasonNone {
			res.Reason = step.Reason
		}
		r.log.Warn().
			Str("requested", requested).
			Str("candidate", step.Candidate).
			Str("reason", string(step.Reason)).
			Str("detail", step.Detail).
			Msg("correlation candidate skipped")
	}

	if !r.cfg.DisableHeuristic {
		m := r.cfg.Heuristic(requested)
		if m != nil && m.Usable() && m.HasFactors(r.cfg.RequiredFactors...) {
			res.Used = HeuristicLabel
			res.Source = SourceHeuristic
			res.Matrix = m
			r.finish(res)
			return res, nil
		}
	}

	r.log.Error().Str("requested", requested).Msg("no usable correlation matrix, heuristic default unavailable")
	return nil, fmt.Errorf("%w: requested=%s, tried=%d candidates", ErrFallbackExhausted, requested, len(res.Steps))
}

func (r *Resolver) finish(res *Resolution) {
	r.recorder.ObserveResolution(res.Requested, res.Used, string(res.Source), string(res.Reason))
	if res.FellBack() {
		r.log.Warn().
			Str("requested", res.Requested).
			Str("used", res.Used).
			Str("reason", string(res.Reason)).
			Msg("correlation fallback")
		return
	}
	r.log.Debug().Str("regime", res.Used).Msg("correlation resolved")
}

// try 후보 하나 검사. 사용 가능하면 step == nil
func (r *Resolver) try(ctx context.Context, key string) (*correlation.Matrix, *Step) {
	m, err := r.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &Step{Candidate: key, Reason: ReasonNotTrained}
	case err != nil:
		return nil, &Step{Candidate: key, Reason: ReasonStoreError, Detail: err.Error()}
	}

	if !m.Valid {
		reason := m.InvalidReason
		if reason == correlation.ReasonNone {
			reason = correlation.ReasonInsufficientData
		}
		return nil, &Step{Candidate: key, Reason: reason, Detail: fmt.Sprintf("sample_size=%d", m.SampleSize)}
	}
	if err := m.CheckShape(); err != nil {
		return nil, &Step{Candidate: key, Reason: correlation.ReasonNotPSD, Detail: err.Error()}
	}
	if !correlation.IsPSD(m.Values) {
		return nil, &Step{Candidate: key, Reason: correlation.ReasonNotPSD}
	}
	if !m.HasFactors(r.cfg.RequiredFactors...) {
		return nil, &Step{Candidate: key, Reason: ReasonMissingFactors}
	}

	return m, nil
}
