package engine

import (
	"github.com/shopspring/decimal"

	"github.com/wonny/regimerisk/internal/risk"
)

// CurrencyView 포트폴리오 % 손익의 통화 환산 (소수 2자리)
// VaR/CVaR 는 손실 양수 규약 유지
type CurrencyView struct {
	Notional decimal.Decimal `json:"notional"`
	Mean     decimal.Decimal `json:"mean"`
	Median   decimal.Decimal `json:"median"`
	P5       decimal.Decimal `json:"p5"`
	P95      decimal.Decimal `json:"p95"`
	VaR95    decimal.Decimal `json:"var_95"`
	CVaR95   decimal.Decimal `json:"cvar_95"`
	VaR99    decimal.Decimal `json:"var_99"`
	CVaR99   decimal.Decimal `json:"cvar_99"`
	Best     decimal.Decimal `json:"best"`
	Worst    decimal.Decimal `json:"worst"`
}

// NewCurrencyView 요약 통계를 명목금액 기준 금액으로 변환
func NewCurrencyView(notional float64, s risk.Summary) CurrencyView {
	n := decimal.NewFromFloat(notional)
	amount := func(pct float64) decimal.Decimal {
		return n.Mul(decimal.NewFromFloat(pct)).Round(2)
	}

	return CurrencyView{
		Notional: n.Round(2),
		Mean:     amount(s.Mean),
		Median:   amount(s.Median),
		P5:       amount(s.Percentiles[5]),
		P95:      amount(s.Percentiles[95]),
		VaR95:    amount(s.VaR95),
		CVaR95:   amount(s.CVaR95),
		VaR99:    amount(s.VaR99),
		CVaR99:   amount(s.CVaR99),
		Best:     amount(s.Max),
		Worst:    amount(s.Min),
	}
}
