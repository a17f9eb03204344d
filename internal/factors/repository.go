package factors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/regimerisk/pkg/database"
)

// Repository macro.factor_observations 읽기/쓰기
type Repository struct {
	db database.Querier
}

// NewRepository 생성
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// Load 지정 팩터의 start 이후 관측치를 Series 로 조립
// (obs_date, factor) 단위 long 포맷을 날짜별 wide 포맷으로 피벗. 없는 셀은 결측
func (r *Repository) Load(ctx context.Context, names []string, start time.Time) (*Series, error) {
	query := `
		SELECT obs_date, regime, factor, value
		FROM macro.factor_observations
		WHERE obs_date >= $1 AND factor = ANY($2)
		ORDER BY obs_date, factor
	`

	rows, err := r.db.Query(ctx, query, start, names)
	if err != nil {
		return nil, fmt.Errorf("query factor observations: %w", err)
	}
	defer rows.Close()

	series := &Series{}
	for _, n := range names {
		series.Factors = append(series.Factors, Lookup(n))
	}

	byDate := map[time.Time]*Observation{}
	for rows.Next() {
		var (
			date   time.Time
			regime string
			factor string
			value  float64
		)
		if err := rows.Scan(&date, &regime, &factor, &value); err != nil {
			return nil, fmt.Errorf("scan factor observation: %w", err)
		}

		idx := series.Index(factor)
		if idx < 0 {
			continue
		}
		obs, ok := byDate[date]
		if !ok {
			obs = &Observation{Date: date, Regime: strings.ToUpper(regime), Values: make([]float64, len(names))}
			for i := range obs.Values {
				obs.Values[i] = Missing()
			}
			byDate[date] = obs
		}
		obs.Values[idx] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor observations: %w", err)
	}

	for _, obs := range byDate {
		series.Observations = append(series.Observations, *obs)
	}
	sort.Slice(series.Observations, func(i, j int) bool {
		return series.Observations[i].Date.Before(series.Observations[j].Date)
	})

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// Save 관측치 upsert (결측 셀은 건너뜀)
func (r *Repository) Save(ctx context.Context, s *Series) (int, error) {
	query := `
		INSERT INTO macro.factor_observations (obs_date, regime, factor, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (obs_date, factor) DO UPDATE SET
			regime = EXCLUDED.regime,
			value = EXCLUDED.value
	`

	saved := 0
	for _, obs := range s.Observations {
		for i, f := range s.Factors {
			if IsMissing(obs.Values[i]) {
				continue
			}
			if _, err := r.db.Exec(ctx, query, obs.Date, obs.Regime, f.Name, obs.Values[i]); err != nil {
				return saved, fmt.Errorf("upsert factor observation %s %s: %w",
					obs.Date.Format("2006-01-02"), f.Name, err)
			}
			saved++
		}
	}
	return saved, nil
}
