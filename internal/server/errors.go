package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

// Errors raised by the HTTP layer itself.
var (
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrRouteNotFound    = errors.New("route not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// retryAfter is advertised when a calculation could not be stored.
const retryAfter = 5 * time.Second

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// classify maps an error to its HTTP status and error class.
func classify(err error) (status int, class string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request_too_large"
	case errors.Is(err, efficiency.ErrInvalidPeriodData):
		return http.StatusBadRequest, "invalid_period_data"
	case errors.Is(err, efficiency.ErrEmptyPeriodSet):
		return http.StatusBadRequest, "empty_period_set"
	case errors.Is(err, efficiency.ErrMalformedIdentifier):
		return http.StatusBadRequest, "malformed_identifier"
	case errors.Is(err, efficiency.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, efficiency.ErrNotFound), errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, ErrRateLimit):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, efficiency.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError replies with the JSON error body for err. Details of server-side
// failures are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, class := classify(err)
	detail := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		detail = "the calculation could not be stored; retry later"
	case http.StatusInternalServerError:
		detail = "internal server error"
	default:
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "[writeError] Request failed",
			"path", r.URL.Path, "status", status, errorKey, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := ErrorResponse{Error: class, Detail: detail, Timestamp: time.Now().UTC()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(r.Context(), "[writeError] Error encoding response", errorKey, err)
	}
}
