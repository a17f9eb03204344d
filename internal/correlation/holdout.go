package correlation

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/regimerisk/internal/factors"
)

// =============================================================================
// Holdout Validation
// =============================================================================

// Stability 학습/검증 구간 상관 안정성 등급
type Stability string

const (
	StabilityStable   Stability = "stable"         // MAE < 0.15
	StabilityModerate Stability = "moderate_drift" // MAE < 0.25
	StabilityShift    Stability = "regime_shift"
)

// 안정성 경계
const (
	stableMAE   = 0.15
	moderateMAE = 0.25
)

// HoldoutScore 레짐별 검증 결과
type HoldoutScore struct {
	Regime    string    `json:"regime"`
	TrainSize int       `json:"train_size"`
	TestSize  int       `json:"test_size"`
	Pairs     int       `json:"pairs"`
	MAE       float64   `json:"mae"`
	MSE       float64   `json:"mse"`
	Scored    bool      `json:"scored"`
	Stability Stability `json:"stability,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// HoldoutReport 검증 리포트. 진단용이며 학습을 막지 않음
type HoldoutReport struct {
	Start time.Time      `json:"start"`
	Split time.Time      `json:"split"`
	Train int            `json:"train_rows"`
	Test  int            `json:"test_rows"`
	Rows  []HoldoutScore `json:"scores"`
}

// Validate split 이전 구간으로 학습, 이후 구간 추정치와 비교 (MAE/MSE)
func (t *Trainer) Validate(s *factors.Series, start, split time.Time) (*HoldoutReport, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !split.After(start) {
		return nil, fmt.Errorf("split %s must be after start %s",
			split.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	rows := factors.Changes(s, start)
	train, test := factors.Split(rows, split)
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("%w: split leaves %d train / %d test rows", ErrDataInsufficient, len(train), len(test))
	}

	names := factors.Names(s.Factors)
	report := &HoldoutReport{Start: start, Split: split, Train: len(train), Test: len(test)}

	report.Rows = append(report.Rows, t.score(AllRegimes, names, train, test))
	for _, regime := range t.regimes(rows) {
		report.Rows = append(report.Rows, t.score(regime, names, filter(train, regime), filter(test, regime)))
	}

	for _, sc := range report.Rows {
		t.log.Info().
			Str("regime", sc.Regime).
			Bool("scored", sc.Scored).
			Float64("mae", sc.MAE).
			Str("stability", string(sc.Stability)).
			Msg("holdout scored")
	}

	return report, nil
}

func (t *Trainer) score(regime string, names []string, train, test []factors.ChangeRow) HoldoutScore {
	a := t.Estimate(regime, names, train)
	b := t.Estimate(regime, names, test)

	sc := HoldoutScore{Regime: regime, TrainSize: a.SampleSize, TestSize: b.SampleSize}
	if !a.Valid || !b.Valid {
		sc.Note = fmt.Sprintf("unscored: train=%s test=%s", reasonText(a), reasonText(b))
		return sc
	}

	mae, mse, pairs := Compare(a.Values, b.Values)
	sc.MAE, sc.MSE, sc.Pairs = mae, mse, pairs
	sc.Scored = true
	sc.Stability = Classify(mae)
	return sc
}

func reasonText(m *Matrix) string {
	if m.Valid {
		return "ok"
	}
	return string(m.InvalidReason)
}

// Compare 고유 비대각 쌍에 대한 평균 절대/제곱 오차
func Compare(a, b [][]float64) (mae, mse float64, pairs int) {
	for i := range a {
		for j := 0; j < i; j++ {
			d := a[i][j] - b[i][j]
			mae += math.Abs(d)
			mse += d * d
			pairs++
		}
	}
	if pairs == 0 {
		return 0, 0, 0
	}
	return mae / float64(pairs), mse / float64(pairs), pairs
}

// Classify MAE → 안정성 등급
func Classify(mae float64) Stability {
	switch {
	case mae < stableMAE:
		return StabilityStable
	case mae < moderateMAE:
		return StabilityModerate
	default:
		return StabilityShift
	}
}
