package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/regimerisk/internal/correlation"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "레짐별 상관행렬 학습",
	Long: `팩터 시계열(일별 레벨 + 레짐 라벨)로 레짐별 상관행렬과 ALL 집계 행렬을 학습하고 저장합니다.

표본이 부족한 레짐도 Valid=false 로 저장되어 폴백 해석에 사용됩니다.

Example:
  go run ./cmd/quant train --csv data/factors.csv
  go run ./cmd/quant train --start 2015-01-01`,
	RunE: runTrain,
}

var (
	trainCSV   string
	trainStart string
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainCSV, "csv", "", "팩터 CSV 경로 (기본 RISK_FACTOR_SOURCE)")
	trainCmd.Flags().StringVar(&trainStart, "start", "", "학습 시작일 YYYY-MM-DD (기본 RISK_TRAIN_START)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	start, err := parseDate(trainStart, a.cfg.Risk.TrainStart)
	if err != nil {
		return err
	}

	src, err := a.factorSource(trainCSV, start)
	if err != nil {
		return err
	}

	series, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load factor series: %w", err)
	}

	result, err := a.engine.Train(ctx, series, start)
	if err != nil {
		return fmt.Errorf("train correlations: %w", err)
	}

	if jsonOut {
		return PrintJSON(result)
	}

	PrintHeader("Correlation Training", map[string]string{
		"Start":   start.Format("2006-01-02"),
		"Rows":    fmt.Sprintf("%d", result.Rows),
		"Store":   a.cfg.Store.Backend,
		"Min Obs": fmt.Sprintf("%d", a.engine.MinObservations()),
	}, "Start", "Rows", "Store", "Min Obs")

	printMatrixTable(result.Matrices)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d matrices stored", len(result.Matrices)))
	return nil
}

// printMatrixTable 행렬 메타데이터 테이블 출력
func printMatrixTable(ms []*correlation.Matrix) {
	widths := []int{14, 8, 8, 10, 20, 12}
	PrintTableHeader([]string{"REGIME", "N", "VALID", "REPAIRED", "REASON", "THROUGH"}, widths)
	for _, m := range ms {
		through := "-"
		if !m.TrainedThrough.IsZero() {
			through = m.TrainedThrough.Format("2006-01-02")
		}
		reason := string(m.InvalidReason)
		if reason == "" {
			reason = "-"
		}
		PrintTableRow([]string{
			m.Regime,
			fmt.Sprintf("%d", m.SampleSize),
			fmt.Sprintf("%t", m.Valid),
			fmt.Sprintf("%t", m.Repaired),
			reason,
			through,
		}, widths)
	}
}

// printMatrix 상관행렬 값 출력
func printMatrix(m *correlation.Matrix) {
	widths := make([]int, len(m.Factors)+1)
	for i := range widths {
		widths[i] = 10
	}
	PrintTableHeader(append([]string{""}, m.Factors...), widths)
	for i, name := range m.Factors {
		row := []string{name}
		for j := range m.Factors {
			row = append(row, fmt.Sprintf("%+.3f", m.Values[i][j]))
		}
		PrintTableRow(row, widths)
	}
}

