package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/seat-inventory/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidStartsAt      = "invalid_starts_at"
	codeInvalidQuery         = "invalid_query"
	codeInvalidID            = "invalid_id"
	codeInvalidSeats         = "invalid_seats"
	codeInvalidCapacity      = "invalid_capacity"
	codeInvalidPrice         = "invalid_price"
	codeInvalidMetrics       = "invalid_metrics"
	codeInsufficientCapacity = "insufficient_capacity"
	codeConcurrentUpdate     = "concurrent_update"
	codeEventNotFound        = "event_not_found"
	codeReleaseUnknownEvent  = "release_unknown_event"
	codeEventAlreadyExists   = "event_already_exists"
	codeEventHasBookings     = "event_has_bookings"
	codeAnalyticsNotFound    = "analytics_not_found"
	codeRateLimited          = "rate_limited"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors onto status codes. Capacity exhaustion
// stays a 400 like validation but keeps its own code; a lost optimistic race
// is a 409 the caller may retry.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSeats):
		writeError(w, http.StatusBadRequest, codeInvalidSeats, err.Error())
	case errors.Is(err, domain.ErrMissingField):
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, err.Error())
	case errors.Is(err, domain.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, codeInvalidCapacity, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case errors.Is(err, domain.ErrInvalidMetrics):
		writeError(w, http.StatusBadRequest, codeInvalidMetrics, err.Error())
	case errors.Is(err, domain.ErrInsufficientCapacity):
		writeError(w, http.StatusBadRequest, codeInsufficientCapacity, err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, codeConcurrentUpdate, err.Error())
	case errors.Is(err, domain.ErrEventAlreadyExists):
		writeError(w, http.StatusConflict, codeEventAlreadyExists, err.Error())
	case errors.Is(err, domain.ErrEventHasBookings):
		writeError(w, http.StatusConflict, codeEventHasBookings, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrEventNotFound):
		writeError(w, http.StatusNotFound, codeEventNotFound, err.Error())
	case errors.Is(err, domain.ErrAnalyticsNotFound):
		writeError(w, http.StatusNotFound, codeAnalyticsNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
