package risk

import "fmt"

// CheckLimits 분포 요약을 한도와 비교 (0 인 한도는 건너뜀)
func CheckLimits(sum Summary, limits Limits) LimitCheck {
	result := LimitCheck{
		Passed:     true,
		Limits:     limits,
		Violations: make([]string, 0),
	}

	if limits.MaxVaR95 > 0 && sum.VaR95 > limits.MaxVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", sum.VaR95, limits.MaxVaR95))
	}

	if limits.MaxCVaR95 > 0 && sum.CVaR95 > limits.MaxCVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", sum.CVaR95, limits.MaxCVaR95))
	}

	if limits.MaxProbLoss10 > 0 && sum.ProbLoss10 > limits.MaxProbLoss10 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("P(loss>10%%) %.4f exceeds limit %.4f", sum.ProbLoss10, limits.MaxProbLoss10))
	}

	return result
}
