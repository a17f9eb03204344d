package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "상관행렬 홀드아웃 검증",
	Long: `split 이전 구간으로 학습한 행렬과 이후 구간 추정치를 비교합니다 (MAE/MSE).
결과는 진단용이며 저장소를 변경하지 않습니다.

Example:
  go run ./cmd/quant validate --split 2022-01-01`,
	RunE: runValidate,
}

var (
	validateCSV   string
	validateStart string
	validateSplit string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateCSV, "csv", "", "팩터 CSV 경로 (기본 RISK_FACTOR_SOURCE)")
	validateCmd.Flags().StringVar(&validateStart, "start", "", "학습 시작일 YYYY-MM-DD (기본 RISK_TRAIN_START)")
	validateCmd.Flags().StringVar(&validateSplit, "split", "", "검증 분할일 YYYY-MM-DD")
	_ = validateCmd.MarkFlagRequired("split")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	start, err := parseDate(validateStart, a.cfg.Risk.TrainStart)
	if err != nil {
		return err
	}
	split, err := parseDate(validateSplit, start)
	if err != nil {
		return err
	}

	src, err := a.factorSource(validateCSV, start)
	if err != nil {
		return err
	}
	series, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load factor series: %w", err)
	}

	report, err := a.engine.Validate(series, start, split)
	if err != nil {
		return fmt.Errorf("holdout validation: %w", err)
	}

	if jsonOut {
		return PrintJSON(report)
	}

	PrintHeader("Holdout Validation", map[string]string{
		"Start": report.Start.Format("2006-01-02"),
		"Split": report.Split.Format("2006-01-02"),
		"Train": fmt.Sprintf("%d rows", report.Train),
		"Test":  fmt.Sprintf("%d rows", report.Test),
	}, "Start", "Split", "Train", "Test")

	widths := []int{14, 7, 7, 6, 8, 8, 10}
	PrintTableHeader([]string{"REGIME", "TRAIN", "TEST", "PAIRS", "MAE", "MSE", "STABILITY"}, widths)
	for _, row := range report.Rows {
		if !row.Scored {
			PrintTableRow([]string{row.Regime, fmt.Sprintf("%d", row.TrainSize), fmt.Sprintf("%d", row.TestSize), "-", "-", "-", row.Note}, widths)
			continue
		}
		PrintTableRow([]string{
			row.Regime,
			fmt.Sprintf("%d", row.TrainSize),
			fmt.Sprintf("%d", row.TestSize),
			fmt.Sprintf("%d", row.Pairs),
			fmt.Sprintf("%.3f", row.MAE),
			fmt.Sprintf("%.4f", row.MSE),
			string(row.Stability),
		}, widths)
	}
	return nil
}
