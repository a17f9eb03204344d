package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 리스크 엔진 관측 지표 수집
type Recorder interface {
	ObserveResolution(requested, used, source, reason string)
	ObserveSimulation(regime string, trials int, elapsed time.Duration, err error)
	ObserveTraining(regime string, valid bool, sampleSize int)
	ObserveRepair(stage string)
}

// Nop 아무것도 기록하지 않음
type Nop struct{}

func (Nop) ObserveResolution(string, string, string, string) {}
func (Nop) ObserveSimulation(string, int, time.Duration, error) {}
func (Nop) ObserveTraining(string, bool, int) {}
func (Nop) ObserveRepair(string) {}

// Prometheus 전용 Registry 에 등록되는 수집기
type Prometheus struct {
	registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	simulations *prometheus.CounterVec
	simDuration *prometheus.HistogramVec
	trials      *prometheus.CounterVec
	sampleSize  *prometheus.GaugeVec
	matrixValid *prometheus.GaugeVec
	repairs     *prometheus.CounterVec
}

// NewPrometheus 생성 + 등록
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regimerisk_correlation_resolutions_total",
			Help: "Correlation resolutions by requested regime, used matrix and fallback reason.",
		}, []string{"requested", "used", "source", "reason"}),
		simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regimerisk_simulations_total",
			Help: "Monte Carlo runs by regime and outcome.",
		}, []string{"regime", "status"}),
		simDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regimerisk_simulation_duration_seconds",
			Help:    "Wall time of a full evaluate run.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"regime"}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regimerisk_simulated_trials_total",
			Help: "Scenario trials generated.",
		}, []string{"regime"}),
		sampleSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "regimerisk_correlation_sample_size",
			Help: "Observations behind the last trained matrix per regime.",
		}, []string{"regime"}),
		matrixValid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "regimerisk_correlation_valid",
			Help: "1 when the last trained matrix for the regime is usable.",
		}, []string{"regime"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regimerisk_matrix_repairs_total",
			Help: "Eigenvalue-clipping repairs by stage (train, generate).",
		}, []string{"stage"}),
	}

	p.registry.MustRegister(
		p.resolutions, p.simulations, p.simDuration, p.trials,
		p.sampleSize, p.matrixValid, p.repairs,
		prometheus.NewGoCollector(),
	)
	return p
}

// ObserveResolution 폴백 해석 기록
func (p *Prometheus) ObserveResolution(requested, used, source, reason string) {
	if reason == "" {
		reason = "none"
	}
	p.resolutions.WithLabelValues(requested, used, source, reason).Inc()
}

// ObserveSimulation 실행 결과 기록
func (p *Prometheus) ObserveSimulation(regime string, trials int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.simulations.WithLabelValues(regime, status).Inc()
	if err == nil {
		p.simDuration.WithLabelValues(regime).Observe(elapsed.Seconds())
		p.trials.WithLabelValues(regime).Add(float64(trials))
	}
}

// ObserveTraining 학습 결과 기록
func (p *Prometheus) ObserveTraining(regime string, valid bool, sampleSize int) {
	p.sampleSize.WithLabelValues(regime).Set(float64(sampleSize))
	v := 0.0
	if valid {
		v = 1
	}
	p.matrixValid.WithLabelValues(regime).Set(v)
}

// ObserveRepair 행렬 보정 기록
func (p *Prometheus) ObserveRepair(stage string) {
	p.repairs.WithLabelValues(stage).Inc()
}

// Registry 테스트/외부 노출용
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler /metrics 핸들러
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
