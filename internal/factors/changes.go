package factors

import "time"

// ChangeRow 연속 두 관측치 사이의 팩터 변화량
// Date/Regime 은 뒤쪽 관측치 기준, NaN = 계산 불가(결측)
type ChangeRow struct {
	Date   time.Time
	Regime string
	Values []float64
}

// Changes 기간별 변화량 계산
// start 이전 관측치는 제외. 결측 끝점이나 pct 기준값 <= 0 인 변화량은 NaN 으로 남김 (0 으로 채우지 않음)
func Changes(s *Series, start time.Time) []ChangeRow {
	var prev *Observation
	rows := make([]ChangeRow, 0, len(s.Observations))

	for i := range s.Observations {
		obs := &s.Observations[i]
		if obs.Date.Before(start) {
			continue
		}
		if prev == nil {
			prev = obs
			continue
		}

		values := make([]float64, len(s.Factors))
		for j, f := range s.Factors {
			values[j] = change(f.Change, prev.Values[j], obs.Values[j])
		}
		rows = append(rows, ChangeRow{Date: obs.Date, Regime: obs.Regime, Values: values})
		prev = obs
	}

	return rows
}

func change(kind ChangeKind, x0, x1 float64) float64 {
	if IsMissing(x0) || IsMissing(x1) {
		return Missing()
	}
	switch kind {
	case ChangeDiffBps:
		return (x1 - x0) * 100
	case ChangeDiff:
		return x1 - x0
	default:
		if x0 <= 0 {
			return Missing()
		}
		return (x1 - x0) / x0
	}
}

// Split 분할일 기준으로 학습(< split) / 검증(>= split) 구간 분리
func Split(rows []ChangeRow, split time.Time) (train, test []ChangeRow) {
	for _, r := range rows {
		if r.Date.Before(split) {
			train = append(train, r)
		} else {
			test = append(test, r)
		}
	}
	return train, test
}
