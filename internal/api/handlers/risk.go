package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/pkg/logger"
)

// Per-request work caps for /api/simulate
const (
	MaxTrials = 200000
	MaxSteps  = 360 // 일 단위 경로 1년치
	// MaxDraws caps trials x steps (path draws per request)
	MaxDraws = 20000000
)

// maxBody limits simulate request bodies (1 MiB)
const maxBody = 1 << 20

// RiskHandler handles correlation and simulation endpoints
// ⭐ SSOT: 리스크 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(e *engine.Engine, log *logger.Logger) *RiskHandler {
	return &RiskHandler{
		engine: e,
		logger: log,
	}
}

// matrixInfo is the list view of a stored matrix
type matrixInfo struct {
	Regime         string   `json:"regime"`
	Factors        []string `json:"factors"`
	SampleSize     int      `json:"sample_size"`
	TrainedThrough string   `json:"trained_through_date,omitempty"`
	Valid          bool     `json:"valid"`
	InvalidReason  string   `json:"invalid_reason,omitempty"`
	Repaired       bool     `json:"repaired"`
}

// ListCorrelations returns stored matrices without their values
// GET /api/correlations
func (h *RiskHandler) ListCorrelations(w http.ResponseWriter, r *http.Request) {
	matrices, err := h.engine.Correlations(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list correlation matrices")
		respondError(w, http.StatusInternalServerError, "failed to list correlation matrices")
		return
	}

	out := make([]matrixInfo, 0, len(matrices))
	for _, m := range matrices {
		info := matrixInfo{
			Regime:        m.Regime,
			Factors:       m.Factors,
			SampleSize:    m.SampleSize,
			Valid:         m.Valid,
			InvalidReason: string(m.InvalidReason),
			Repaired:      m.Repaired,
		}
		if !m.TrainedThrough.IsZero() {
			info.TrainedThrough = m.TrainedThrough.Format("2006-01-02")
		}
		out = append(out, info)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"min_observations": h.engine.MinObservations(),
		"matrices":         out,
	})
}

// ResolveCorrelation shows which matrix a simulation of the regime would use
// GET /api/correlations/{regime}/resolve
func (h *RiskHandler) ResolveCorrelation(w http.ResponseWriter, r *http.Request) {
	regime := mux.Vars(r)["regime"]

	res, err := h.engine.Resolve(r.Context(), regime)
	if err != nil {
		h.logger.WithError(err).WithField("regime", regime).Error("Failed to resolve correlation")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// Simulate runs a full evaluation
// POST /api/simulate
func (h *RiskHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req engine.EvaluateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Trials > MaxTrials {
		respondError(w, http.StatusBadRequest, "trials exceeds limit")
		return
	}
	if req.Steps > MaxSteps {
		respondError(w, http.StatusBadRequest, "steps exceeds limit")
		return
	}
	if req.Steps > 1 && req.Trials*req.Steps > MaxDraws {
		respondError(w, http.StatusBadRequest, "trials x steps exceeds limit")
		return
	}

	report, err := h.engine.Evaluate(r.Context(), req)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetReport returns a cached report
// GET /api/reports/{id}
func (h *RiskHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	report, err := h.engine.Report(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
