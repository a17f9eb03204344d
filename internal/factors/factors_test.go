package factors

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSeriesValidate(t *testing.T) {
	two := []Factor{{Name: VIX, Change: ChangePct}, {Name: SPX, Change: ChangePct}}

	tests := []struct {
		name    string
		series  Series
		wantErr error
	}{
		{
			name:    "single factor",
			series:  Series{Factors: two[:1], Observations: []Observation{{Date: day("2020-01-01"), Regime: "ALL", Values: []float64{1}}}},
			wantErr: ErrDataInsufficient,
		},
		{
			name:    "no rows",
			series:  Series{Factors: two},
			wantErr: ErrDataInsufficient,
		},
		{
			name: "duplicate date",
			series: Series{Factors: two, Observations: []Observation{
				{Date: day("2020-01-01"), Regime: "GOLDILOCKS", Values: []float64{1, 2}},
				{Date: day("2020-01-01"), Regime: "GOLDILOCKS", Values: []float64{1, 2}},
			}},
			wantErr: ErrInvalidSeries,
		},
		{
			name: "width mismatch",
			series: Series{Factors: two, Observations: []Observation{
				{Date: day("2020-01-01"), Regime: "GOLDILOCKS", Values: []float64{1}},
			}},
			wantErr: ErrInvalidSeries,
		},
		{
			name: "valid",
			series: Series{Factors: two, Observations: []Observation{
				{Date: day("2020-01-01"), Regime: "GOLDILOCKS", Values: []float64{1, 2}},
				{Date: day("2020-01-02"), Regime: "STAGFLATION", Values: []float64{1, Missing()}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChanges(t *testing.T) {
	s := &Series{
		Factors: []Factor{
			{Name: VIX, Change: ChangePct},
			{Name: UST10Y, Change: ChangeDiffBps},
			{Name: HYOAS, Change: ChangeDiff},
		},
		Observations: []Observation{
			{Date: day("2019-12-01"), Regime: "GOLDILOCKS", Values: []float64{10, 1.0, 3}},
			{Date: day("2020-01-01"), Regime: "GOLDILOCKS", Values: []float64{20, 2.0, 4}},
			{Date: day("2020-02-01"), Regime: "STAGFLATION", Values: []float64{25, 2.5, Missing()}},
			{Date: day("2020-03-01"), Regime: "STAGFLATION", Values: []float64{20, 2.25, 5}},
		},
	}

	rows := Changes(s, day("2020-01-01"))
	require.Len(t, rows, 2)

	assert.Equal(t, day("2020-02-01"), rows[0].Date)
	assert.Equal(t, "STAGFLATION", rows[0].Regime)
	assert.InDelta(t, 0.25, rows[0].Values[0], 1e-12)
	assert.InDelta(t, 50, rows[0].Values[1], 1e-9)
	assert.True(t, math.IsNaN(rows[0].Values[2]), "missing endpoint must not become zero")

	assert.InDelta(t, -0.2, rows[1].Values[0], 1e-12)
	assert.InDelta(t, -25, rows[1].Values[1], 1e-9)
	assert.True(t, math.IsNaN(rows[1].Values[2]))

	train, test := Split(rows, day("2020-03-01"))
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
}

func TestChanges_NonPositiveBase(t *testing.T) {
	s := &Series{
		Factors: []Factor{{Name: CPI, Change: ChangePct}, {Name: SPX, Change: ChangePct}},
		Observations: []Observation{
			{Date: day("2020-01-01"), Regime: "A", Values: []float64{0, 100}},
			{Date: day("2020-02-01"), Regime: "A", Values: []float64{1, 110}},
		},
	}

	rows := Changes(s, time.Time{})
	require.Len(t, rows, 1)
	assert.True(t, math.IsNaN(rows[0].Values[0]))
	assert.InDelta(t, 0.1, rows[0].Values[1], 1e-12)
}

func TestReadCSV(t *testing.T) {
	input := `date,regime,VIX,SPX,UST10Y
2020-01-01,goldilocks,14.0,3200,1.9
2020-01-02,GOLDILOCKS,,3210,1.88
2020-01-03,stagflation,18.5,3100,NaN
`
	s, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{VIX, SPX, UST10Y}, Names(s.Factors))
	assert.Equal(t, ChangeDiffBps, s.Factors[2].Change)
	require.Len(t, s.Observations, 3)
	assert.Equal(t, "GOLDILOCKS", s.Observations[0].Regime)
	assert.True(t, IsMissing(s.Observations[1].Values[0]))
	assert.True(t, IsMissing(s.Observations[2].Values[2]))
	assert.Equal(t, []string{"GOLDILOCKS", "STAGFLATION"}, s.Regimes())
	assert.Equal(t, day("2020-01-03"), s.Last())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"bad header": "day,regime,VIX\n",
		"bad date":   "date,regime,VIX,SPX\n2020/01/01,A,1,2\n",
		"bad value":  "date,regime,VIX,SPX\n2020-01-01,A,x,2\n",
		"unordered":  "date,regime,VIX,SPX\n2020-01-02,A,1,2\n2020-01-01,A,1,2\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrInvalidSeries)
		})
	}
}

func TestRepositoryLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"obs_date", "regime", "factor", "value"}).
		AddRow(day("2020-01-02"), "goldilocks", VIX, 14.0).
		AddRow(day("2020-01-01"), "goldilocks", SPX, 3200.0).
		AddRow(day("2020-01-01"), "goldilocks", VIX, 13.0).
		AddRow(day("2020-01-01"), "goldilocks", "UNTRACKED", 1.0)

	mock.ExpectQuery("FROM macro.factor_observations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	repo := NewRepository(mock)
	s, err := repo.Load(context.Background(), []string{VIX, SPX}, day("2020-01-01"))
	require.NoError(t, err)

	require.Len(t, s.Observations, 2)
	assert.Equal(t, day("2020-01-01"), s.Observations[0].Date)
	assert.Equal(t, []float64{13.0, 3200.0}, s.Observations[0].Values)
	assert.True(t, IsMissing(s.Observations[1].Values[1]))
	assert.Equal(t, "GOLDILOCKS", s.Observations[1].Regime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := &Series{
		Factors: []Factor{{Name: VIX, Change: ChangePct}, {Name: SPX, Change: ChangePct}},
		Observations: []Observation{
			{Date: day("2020-01-01"), Regime: "A", Values: []float64{13, Missing()}},
		},
	}

	mock.ExpectExec("INSERT INTO macro.factor_observations").
		WithArgs(day("2020-01-01"), "A", VIX, 13.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := NewRepository(mock).Save(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryLoad_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM macro.factor_observations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err = NewRepository(mock).Load(context.Background(), []string{VIX, SPX}, time.Time{})
	assert.ErrorContains(t, err, "connection reset")
}
