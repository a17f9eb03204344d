package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/regimerisk/internal/store"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve [regime]",
	Short: "레짐 상관행렬 폴백 해석",
	Long: `요청 레짐 → ALL 집계 → 내장 기본 행렬 순으로 사용할 상관행렬을 결정합니다.

Example:
  go run ./cmd/quant resolve STAGFLATION
  go run ./cmd/quant resolve CRISIS --matrix`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var resolveShowMatrix bool

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveShowMatrix, "matrix", false, "행렬 값 출력")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.Resolve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}

	if jsonOut {
		return PrintJSON(res)
	}

	meta := map[string]string{
		"Requested": res.Requested,
		"Used":      res.Used,
		"Source":    string(res.Source),
		"Reason":    string(res.Reason),
	}
	PrintHeader("Correlation Resolution", meta, "Requested", "Used", "Source", "Reason")

	if res.FellBack() {
		PrintWarning(fmt.Sprintf("fallback: %s", res.String()))
		for _, step := range res.Steps {
			detail := ""
			if step.Detail != "" {
				detail = " (" + step.Detail + ")"
			}
			fmt.Printf("   skipped %-14s %s%s\n", step.Candidate, step.Reason, detail)
		}
	} else {
		PrintSuccess(fmt.Sprintf("%s matrix used (n=%d)", res.Used, res.Matrix.SampleSize))
	}

	if resolveShowMatrix {
		fmt.Println()
		printMatrix(res.Matrix)
	}
	return nil
}

// correlationsCmd represents the correlations command
var correlationsCmd = &cobra.Command{
	Use:   "correlations [regime]",
	Short: "저장된 상관행렬 조회",
	Long: `저장소의 상관행렬 메타데이터를 나열하거나 특정 레짐 행렬 값을 출력합니다.

Example:
  go run ./cmd/quant correlations
  go run ./cmd/quant correlations ALL`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCorrelations,
}

func init() {
	rootCmd.AddCommand(correlationsCmd)
}

func runCorrelations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		m, err := a.engine.Store().Get(ctx, store.Normalize(args[0]))
		if err != nil {
			return fmt.Errorf("get %s: %w", args[0], err)
		}
		if jsonOut {
			return PrintJSON(m)
		}
		PrintHeader(fmt.Sprintf("Correlation %s (n=%d, valid=%t)", m.Regime, m.SampleSize, m.Valid), nil)
		printMatrix(m)
		return nil
	}

	ms, err := a.engine.Correlations(ctx)
	if err != nil {
		return fmt.Errorf("list correlations: %w", err)
	}
	if jsonOut {
		return PrintJSON(ms)
	}
	if len(ms) == 0 {
		PrintInfo("no trained matrices; run `quant train` first")
		return nil
	}

	PrintHeader("Stored Correlations", map[string]string{
		"Store": a.cfg.Store.Backend,
		"Count": fmt.Sprintf("%d", len(ms)),
	}, "Store", "Count")
	printMatrixTable(ms)
	return nil
}
