package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/regimerisk/internal/api"
	"github.com/wonny/regimerisk/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                              - Health check
  GET  /metrics                             - Prometheus metrics (METRICS_ENABLED)
  GET  /api/correlations                    - 저장된 상관행렬 목록
  GET  /api/correlations/{regime}/resolve   - 폴백 해석 결과
  POST /api/simulate                        - 시뮬레이션 + 손익 귀속
  GET  /api/reports/{id}                    - 캐시된 리포트 조회 (Redis)

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본 PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	opts := api.RouterOptions{SimulateLimit: a.cfg.APIRateLimit}
	if a.metrics != nil {
		opts.Metrics = a.metrics.Handler()
	}

	riskHandler := handlers.NewRiskHandler(a.engine, a.log)
	router := api.NewRouter(riskHandler, opts, a.log)
	server := api.New(a.cfg, a.log, router)

	a.log.WithFields(map[string]interface{}{
		"port":       a.cfg.Port,
		"env":        a.cfg.Env,
		"store":      a.cfg.Store.Backend,
		"rate_limit": a.cfg.APIRateLimit,
	}).Info("Initializing API server")

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}
