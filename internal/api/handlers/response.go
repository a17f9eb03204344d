package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/internal/pnl"
	"github.com/wonny/regimerisk/internal/scenario"
	"github.com/wonny/regimerisk/internal/store"
)

// errorBody 에러 응답 형식
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message, Code: codeFor(status)})
}

// RespondError writes the {error, code} body. Router middleware shares it with the handlers.
func RespondError(w http.ResponseWriter, status int, message string) {
	respondError(w, status, message)
}

// respondEngineError 엔진 sentinel 에러를 HTTP 상태로 변환
func respondEngineError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scenario.ErrInvalidConfig), errors.Is(err, pnl.ErrInvalidPortfolio):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, scenario.ErrNumericalInstability):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrFallbackExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "numerical_instability"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "correlation_unavailable"
	default:
		return "internal"
	}
}
