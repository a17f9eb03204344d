package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/internal/pnl"
	"github.com/wonny/regimerisk/internal/risk"
	"github.com/wonny/regimerisk/pkg/config"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "레짐 조건부 시나리오 생성 + 손익 귀속",
	Long: `해석된 상관행렬과 레짐 가정으로 몬테카를로 시나리오를 생성하고,
포지션 파일(YAML)이 있으면 델타/감마/베가/세타 손익 분해와 극단 시나리오를 계산합니다.

포지션 파일이 없으면 팩터 분포만 출력합니다.

Example:
  go run ./cmd/quant simulate --regime STAGFLATION --horizon 3 --trials 20000
  go run ./cmd/quant simulate --regime CRISIS --positions book.yaml --seed 42 --json`,
	RunE: runSimulate,
}

var (
	simRegime    string
	simHorizon   float64
	simTrials    int
	simSteps     int
	simSeed      int64
	simPositions string
	simBound     bool
	simMaxVaR95  float64
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simRegime, "regime", "ALL", "시장 레짐")
	simulateCmd.Flags().Float64Var(&simHorizon, "horizon", 0, "기간 (개월, 기본 RISK_DEFAULT_HORIZON_MONTHS)")
	simulateCmd.Flags().IntVar(&simTrials, "trials", 0, "시나리오 수 (기본 RISK_DEFAULT_TRIALS)")
	simulateCmd.Flags().IntVar(&simSteps, "steps", 0, "경로 스텝 수 (0 = 호라이즌 전체를 1스텝)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "난수 시드 (미지정 시 무작위, 리포트에 기록)")
	simulateCmd.Flags().StringVar(&simPositions, "positions", "", "포지션 YAML 경로")
	simulateCmd.Flags().BoolVar(&simBound, "bound", false, "매수 옵션 손익 범위 제한")
	simulateCmd.Flags().Float64Var(&simMaxVaR95, "max-var95", 0, "VaR95 한도 (0 = 기본 한도)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, func(cfg *config.Config) {
		if simBound {
			cfg.Risk.BoundOptions = true
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	req := engine.EvaluateRequest{
		Regime:        simRegime,
		HorizonMonths: simHorizon,
		Trials:        simTrials,
		Steps:         simSteps,
	}
	if cmd.Flags().Changed("seed") {
		seed := simSeed
		req.Seed = &seed
	}
	if simPositions != "" {
		req.Positions, err = pnl.LoadPositions(simPositions)
		if err != nil {
			return err
		}
	}
	if simMaxVaR95 > 0 {
		limits := risk.DefaultLimits()
		limits.MaxVaR95 = simMaxVaR95
		req.Limits = &limits
	}

	report, err := a.engine.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	if jsonOut {
		return PrintJSON(report)
	}

	printReport(report)
	return nil
}

// printReport 시뮬레이션 리포트 요약 출력
func printReport(r *engine.Report) {
	PrintHeader("Regime Risk Simulation", map[string]string{
		"Run":         r.RunID,
		"Regime":      r.Resolution.Requested,
		"Matrix":      fmt.Sprintf("%s (%s)", r.Resolution.Used, r.Resolution.Source),
		"Assumptions": r.AssumptionsKey,
		"Horizon":     fmt.Sprintf("%.1f months", r.HorizonMonths),
		"Trials":      fmt.Sprintf("%d", r.Trials),
		"Seed":        fmt.Sprintf("%d", r.Seed),
		"Elapsed":     r.Duration.Round(time.Millisecond).String(),
	}, "Run", "Regime", "Matrix", "Assumptions", "Horizon", "Trials", "Seed", "Elapsed")

	if r.Fallback {
		PrintWarning(fmt.Sprintf("correlation fallback: %s", r.Resolution.String()))
	}
	if r.MixingRepaired {
		PrintWarning("mixing matrix repaired to nearest PSD")
	}

	fmt.Println()
	fmt.Println("📈 Factor Shocks")
	widths := []int{14, 10, 10, 10, 10}
	PrintTableHeader([]string{"FACTOR", "MEAN", "STD", "P5", "P95"}, widths)
	for _, f := range r.Factors.Factors {
		PrintTableRow([]string{
			f.Name,
			fmt.Sprintf("%+.4f", f.Mean),
			fmt.Sprintf("%.4f", f.Std),
			fmt.Sprintf("%+.4f", f.P5),
			fmt.Sprintf("%+.4f", f.P95),
		}, widths)
	}
	PrintKeyValue("Jump frequency", fmt.Sprintf("%.2f%%", r.Factors.JumpFrequency*100), 16)

	if r.FactorOnly || r.PnL == nil {
		fmt.Println()
		PrintInfo("no positions supplied; factor distribution only")
		return
	}

	s := r.PnL
	fmt.Println()
	fmt.Println("💰 Portfolio P&L")
	PrintKeyValue("Notional", r.Currency.Notional.StringFixed(2), 16)
	PrintKeyValue("Mean", fmt.Sprintf("%s (%s)", pct(s.Mean), r.Currency.Mean.StringFixed(2)), 16)
	PrintKeyValue("Median", pct(s.Median), 16)
	PrintKeyValue("Std Dev", fmt.Sprintf("%.2f%%", s.StdDev*100), 16)
	PrintKeyValue("Skew", fmt.Sprintf("%+.3f", s.Skew), 16)
	PrintKeyValue("VaR 95", fmt.Sprintf("%.2f%% (%s)", s.VaR95*100, r.Currency.VaR95.StringFixed(2)), 16)
	PrintKeyValue("CVaR 95", fmt.Sprintf("%.2f%% (%s)", s.CVaR95*100, r.Currency.CVaR95.StringFixed(2)), 16)
	PrintKeyValue("VaR 95 (normal)", fmt.Sprintf("%.2f%%", s.ParametricVaR95*100), 16)
	PrintKeyValue("VaR 99", fmt.Sprintf("%.2f%%", s.VaR99*100), 16)
	PrintKeyValue("P(gain)", fmt.Sprintf("%.1f%%", s.ProbGain*100), 16)
	PrintKeyValue("P(loss>10%)", fmt.Sprintf("%.1f%%", s.ProbLoss10*100), 16)

	fmt.Println()
	fmt.Println("📉 Worst Scenarios")
	printExtremes(r.Extremes.Worst)
	fmt.Println()
	fmt.Println("🚀 Best Scenarios")
	printExtremes(r.Extremes.Best)

	if r.Tail != nil && len(r.Tail.Positions) > 0 {
		fmt.Println()
		fmt.Printf("🔻 Tail Attribution (worst %.0f%%, %d scenarios, mean %s)\n",
			r.Tail.Quantile*100, r.Tail.Scenarios, pct(r.Tail.MeanPct))
		tw := []int{14, 12, 8, 10, 10, 10, 10}
		PrintTableHeader([]string{"INSTRUMENT", "MEAN P&L", "SHARE", "DELTA", "GAMMA", "VEGA", "THETA"}, tw)
		shares := append([]pnl.TailShare(nil), r.Tail.Positions...)
		sort.SliceStable(shares, func(i, j int) bool { return shares[i].MeanPnL < shares[j].MeanPnL })
		for _, p := range shares {
			PrintTableRow([]string{
				p.InstrumentID,
				fmt.Sprintf("%.2f", p.MeanPnL),
				fmt.Sprintf("%.1f%%", p.Share*100),
				fmt.Sprintf("%.2f", p.Delta),
				fmt.Sprintf("%.2f", p.Gamma),
				fmt.Sprintf("%.2f", p.Vega),
				fmt.Sprintf("%.2f", p.Theta),
			}, tw)
		}
	}

	if r.Limits != nil {
		fmt.Println()
		if r.Limits.Passed {
			PrintSuccess("risk limits passed")
		} else {
			for _, v := range r.Limits.Violations {
				PrintWarning("limit breach: " + v)
			}
		}
	}
}

func printExtremes(xs []pnl.Extreme) {
	widths := []int{4, 9, 10, 10, 10, 5, 8}
	PrintTableHeader([]string{"#", "P&L", "EQUITY", "IV", "RATE bp", "JUMP", "DRIVER"}, widths)
	for _, x := range xs {
		jump := ""
		if x.Jump {
			jump = "yes"
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", x.Rank),
			pct(x.Pct),
			pct(x.Return),
			fmt.Sprintf("%+.3f", x.IVChange),
			fmt.Sprintf("%+.1f", x.RateChange),
			jump,
			string(x.Driver),
		}, widths)
	}
}
