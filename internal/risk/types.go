package risk

// =============================================================================
// VaR Convention
// =============================================================================

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=0.05 → 5% 손실 가능)
const VaRConvention = "loss_positive"

// VaRResult VaR 계산 결과 (손실 양수)
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk (손실, 양수)
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall, 양수)
}

// =============================================================================
// Distribution Summary
// =============================================================================

// SummaryPercentiles 요약에 포함되는 백분위수
var SummaryPercentiles = []int{1, 5, 10, 25, 50, 75, 90, 95, 99}

// Summary 손익 분포 요약 (포트폴리오 % 단위)
// 앙상블 전체에서 경험적으로 계산 (정규 가정 없음)
type Summary struct {
	Count           int             `json:"count"`
	Mean            float64         `json:"mean"`
	Median          float64         `json:"median"`
	StdDev          float64         `json:"std_dev"`
	Skew            float64         `json:"skew"`
	Min             float64         `json:"min"`
	Max             float64         `json:"max"`
	Percentiles     map[int]float64 `json:"percentiles"`
	VaR95           float64         `json:"var_95"`
	CVaR95          float64         `json:"cvar_95"`
	VaR99           float64         `json:"var_99"`
	CVaR99          float64         `json:"cvar_99"`
	// ParametricVaR95 같은 평균/표준편차의 정규분포 VaR. VaR95 와의 차이가 꼬리 비정규성
	ParametricVaR95 float64         `json:"parametric_var_95"`
	ProbGain        float64         `json:"prob_gain"`
	ProbLoss10      float64         `json:"prob_loss_10"` // P(손실 > 10%)
	ProbLoss20      float64         `json:"prob_loss_20"` // P(손실 > 20%)
}

// =============================================================================
// Limits
// =============================================================================

// Limits 리스크 한도 (0 = 미적용)
type Limits struct {
	MaxVaR95      float64 `json:"max_var_95" yaml:"max_var_95"`             // 예: 0.05 = 5%
	MaxCVaR95     float64 `json:"max_cvar_95" yaml:"max_cvar_95"`           // 예: 0.07
	MaxProbLoss10 float64 `json:"max_prob_loss_10" yaml:"max_prob_loss_10"` // 예: 0.10
}

// DefaultLimits 기본 리스크 한도
func DefaultLimits() Limits {
	return Limits{
		MaxVaR95:      0.05,
		MaxCVaR95:     0.07,
		MaxProbLoss10: 0.10,
	}
}

// LimitCheck 한도 체크 결과
type LimitCheck struct {
	Passed     bool     `json:"passed"`
	Limits     Limits   `json:"limits"`
	Violations []string `json:"violations"`
}
