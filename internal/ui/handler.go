// Package ui serves the operator console: a read-only browser view over
// the audit trail, the active catalog capabilities, and the query
// templates. Pages render server-side with gomponents; datastar signals
// drive client-side table filtering only.
package ui

import (
	"context"
	"net/http"
	"strconv"

	gomponents "maragu.dev/gomponents"

	"scoutgw/internal/domain"
	"scoutgw/internal/service/audit"
	"scoutgw/internal/service/gateway"
	"scoutgw/internal/service/template"
)

type Handler struct {
	Gateway    *gateway.Service
	Audit      *audit.Service
	Templates  *template.Engine
	Production bool
}

func NewHandler(gatewaySvc *gateway.Service, auditSvc *audit.Service, templates *template.Engine, production bool) *Handler {
	return &Handler{
		Gateway:    gatewaySvc,
		Audit:      auditSvc,
		Templates:  templates,
		Production: production,
	}
}

func pageFromRequest(r *http.Request, defaultPageSize int) domain.PageRequest {
	maxResults := defaultPageSize
	if maxResults <= 0 {
		maxResults = 25
	}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			maxResults = parsed
		}
	}
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 200 {
		maxResults = 200
	}
	return domain.PageRequest{
		MaxResults: maxResults,
		PageToken:  r.URL.Query().Get("page_token"),
	}
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func principalFromContext(ctx context.Context) domain.ContextPrincipal {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return domain.ContextPrincipal{Name: "unknown"}
	}
	return p
}
