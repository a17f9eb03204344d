package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	jsonOut    bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "regimerisk - 레짐 조건부 몬테카를로 리스크 엔진",
	Long: `regimerisk Unified CLI

레짐별 상관행렬 학습, 폴백 해석, 시나리오 생성, 손익 귀속.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant train --csv data/factors.csv
  go run ./cmd/quant resolve STAGFLATION
  go run ./cmd/quant simulate --regime STAGFLATION --positions book.yaml --seed 42
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file to load before the environment (default .env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
