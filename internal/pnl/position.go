package pnl

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPortfolio 포지션 입력 오류 (총 명목금액 0 등)
var ErrInvalidPortfolio = errors.New("invalid portfolio")

// Kind 상품 종류
type Kind string

const (
	KindEquity Kind = "equity"
	KindOption Kind = "option"
)

// Position 외부에서 계산된 민감도를 가진 포지션 (실행 중 불변)
// Vega 는 IV 1.00 (소수) 변화당 손익, Theta 는 매수 1단위의 1일당 감가 (양수 = 시간가치 손실)
type Position struct {
	InstrumentID    string  `yaml:"instrument_id" json:"instrument_id"`
	Kind            Kind    `yaml:"kind" json:"kind"`
	Quantity        float64 `yaml:"quantity" json:"quantity"`
	Multiplier      float64 `yaml:"multiplier" json:"multiplier,omitempty"`
	Delta           float64 `yaml:"delta" json:"delta"`
	Gamma           float64 `yaml:"gamma" json:"gamma"`
	Vega            float64 `yaml:"vega" json:"vega"`
	Theta           float64 `yaml:"theta" json:"theta"`
	Notional        float64 `yaml:"notional" json:"notional"`
	UnderlyingPrice float64 `yaml:"underlying_price" json:"underlying_price,omitempty"`
	Beta            float64 `yaml:"beta" json:"beta,omitempty"`
	DaysToExpiry    float64 `yaml:"days_to_expiry" json:"days_to_expiry,omitempty"`
}

// units Quantity x Multiplier (기본 1)
func (p Position) units() float64 {
	m := p.Multiplier
	if m == 0 {
		m = 1
	}
	return p.Quantity * m
}

func (p Position) price() float64 {
	if p.UnderlyingPrice == 0 {
		return 1
	}
	return p.UnderlyingPrice
}

func (p Position) beta() float64 {
	if p.Beta == 0 {
		return 1
	}
	return p.Beta
}

// Validate 단일 포지션 검증
func (p Position) Validate() error {
	switch {
	case p.InstrumentID == "":
		return fmt.Errorf("%w: position without instrument_id", ErrInvalidPortfolio)
	case p.Kind != KindEquity && p.Kind != KindOption:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidPortfolio, p.InstrumentID, p.Kind)
	case p.Kind == KindEquity && (p.Gamma != 0 || p.Vega != 0 || p.Theta != 0):
		return fmt.Errorf("%w: equity %s cannot carry gamma/vega/theta", ErrInvalidPortfolio, p.InstrumentID)
	case p.UnderlyingPrice < 0 || p.DaysToExpiry < 0 || p.Multiplier < 0:
		return fmt.Errorf("%w: %s has negative price, multiplier or expiry", ErrInvalidPortfolio, p.InstrumentID)
	}
	return nil
}

// TotalNotional Σ|notional| (포트폴리오 % 정규화 분모)
func TotalNotional(positions []Position) float64 {
	total := 0.0
	for _, p := range positions {
		if p.Notional < 0 {
			total -= p.Notional
		} else {
			total += p.Notional
		}
	}
	return total
}

// LoadPositions YAML 포지션 파일 로드 (KnownFields)
//
//	positions:
//	  - instrument_id: SPY_P400
//	    kind: option
//	    quantity: 10
func LoadPositions(path string) ([]Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	return ParsePositions(data)
}

// ParsePositions LoadPositions 의 바이트 버전
func ParsePositions(data []byte) ([]Position, error) {
	var file struct {
		Positions []Position `yaml:"positions"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPortfolio, err)
	}

	seen := map[string]bool{}
	for _, p := range file.Positions {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.InstrumentID] {
			return nil, fmt.Errorf("%w: duplicate instrument %s", ErrInvalidPortfolio, p.InstrumentID)
		}
		seen[p.InstrumentID] = true
	}
	return file.Positions, nil
}
