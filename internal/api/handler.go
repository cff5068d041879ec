// Package api provides the HTTP surface of the query gateway: the public
// submit and capability endpoints, the authenticated execute endpoint, and
// the admin-only audit trail.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"scoutgw/internal/domain"
	"scoutgw/internal/metrics"
	"scoutgw/internal/service/audit"
	"scoutgw/internal/service/gateway"
	"scoutgw/internal/service/template"
)

// Handler holds the services behind the HTTP surface. Templates may be nil
// when the template surface is disabled.
type Handler struct {
	gateway   *gateway.Service
	audit     *audit.Service
	templates *template.Engine
	logger    *slog.Logger
}

func NewHandler(gw *gateway.Service, auditSvc *audit.Service, templates *template.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		gateway:   gw,
		audit:     auditSvc,
		templates: templates,
		logger:    logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON rejects unknown fields so typos in request bodies fail loudly
// instead of silently submitting an empty query.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// recordOutcome publishes request metrics keyed by the terminal status the
// audit trail recorded for the same request.
func recordOutcome(surface string, err error, start time.Time) {
	metrics.RecordRequest(surface, outcomeStatus(surface, err), time.Since(start))

	var verr *domain.ValidationError
	var rerr *domain.RateLimitError
	switch {
	case errors.As(err, &verr):
		metrics.RecordRejection(string(verr.Kind))
	case errors.As(err, &rerr):
		metrics.RecordRateLimited()
	}
	var aerr *domain.AuditWriteError
	if errors.As(err, &aerr) {
		metrics.RecordAuditWriteFailure()
	}
}

func outcomeStatus(surface string, err error) string {
	if err == nil {
		if surface == "execute" {
			return string(domain.AuditExecuted)
		}
		return string(domain.AuditApproved)
	}

	var verr *domain.ValidationError
	var rerr *domain.RateLimitError
	var eerr *domain.ExecutionError
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr):
		return string(domain.AuditRejected)
	case errors.As(err, &eerr):
		if eerr.Kind == domain.ExecTimeout {
			return string(domain.AuditTimedOut)
		}
		if eerr.Kind == domain.ExecUnauthorized {
			return string(domain.AuditRejected)
		}
		return string(domain.AuditFailed)
	default:
		return string(domain.AuditFailed)
	}
}
