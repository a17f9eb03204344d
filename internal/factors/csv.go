package factors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadCSV 팩터 CSV 로드
// 형식: date,regime,<factor>,... (빈 셀 = 결측)
func ReadCSV(r io.Reader) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidSeries, err)
	}
	if len(header) < 3 ||
		!strings.EqualFold(header[0], "date") ||
		!strings.EqualFold(header[1], "regime") {
		return nil, fmt.Errorf("%w: header must start with date,regime", ErrInvalidSeries)
	}

	series := &Series{}
	for _, name := range header[2:] {
		series.Factors = append(series.Factors, Lookup(strings.TrimSpace(name)))
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSeries, line, err)
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad date %q", ErrInvalidSeries, line, record[0])
		}

		values := make([]float64, len(series.Factors))
		for i := range series.Factors {
			cell := strings.TrimSpace(record[i+2])
			if cell == "" || strings.EqualFold(cell, "nan") {
				values[i] = Missing()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad value %q for %s",
					ErrInvalidSeries, line, cell, series.Factors[i].Name)
			}
			values[i] = v
		}

		series.Observations = append(series.Observations, Observation{
			Date:   date,
			Regime: strings.ToUpper(strings.TrimSpace(record[1])),
			Values: values,
		})
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// LoadCSV 파일 경로에서 로드
func LoadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open factor csv: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}
