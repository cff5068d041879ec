package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"scoutgw/internal/domain"
)

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFromError maps domain errors to HTTP status codes. Audit write
// failures map to 500 even when they wrap a successful execution: a result
// that cannot be audited is not reported as a success.
func statusFromError(err error) int {
	var auditErr *domain.AuditWriteError
	var validation *domain.ValidationError
	var rateLimit *domain.RateLimitError
	var execution *domain.ExecutionError
	var notFound *domain.NotFoundError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &auditErr):
		return http.StatusInternalServerError
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests
	case errors.As(err, &execution):
		switch execution.Kind {
		case domain.ExecUnauthorized:
			return http.StatusUnauthorized
		case domain.ExecTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the generic error body. Rate-limit errors also carry a
// Retry-After header rounded up so clients never retry early.
func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)

	var rateLimit *domain.RateLimitError
	if errors.As(err, &rateLimit) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rateLimit.RetryAfter)))
	}

	writeJSON(w, status, errorBody{Code: status, Message: err.Error()})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
