package ui

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scoutgw/internal/domain"
	"scoutgw/internal/service/template"
)

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	renderHTML(w, http.StatusOK, overviewPage(p, []overviewCardData{
		{Title: "Audit Trail", Description: "Every submission and its terminal outcome, newest first.", Href: "/ui/audit", LinkLabel: "Open audit trail ->"},
		{Title: "Capabilities", Description: "The active allow-list, row caps, and query length ceiling.", Href: "/ui/capabilities", LinkLabel: "Open capabilities ->"},
		{Title: "Templates", Description: "Pre-approved query templates available on the submit surface.", Href: "/ui/templates", LinkLabel: "Open templates ->"},
		{Title: "API Docs", Description: "The OpenAPI reference for the gateway endpoints.", Href: "/docs", LinkLabel: "Open docs ->"},
	}))
}

func (h *Handler) AuditList(w http.ResponseWriter, r *http.Request) {
	pageReq := pageFromRequest(r, 30)
	filter := domain.AuditFilter{Page: pageReq}
	activeStatus := r.URL.Query().Get("status")
	if activeStatus != "" {
		filter.Status = &activeStatus
	}

	records, total, err := h.Audit.List(r.Context(), filter)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	rows := make([]auditListRowData, 0, len(records))
	for i := range records {
		rec := records[i]
		rows = append(rows, auditListRowData{
			Filter:      rec.ExecutionID + " " + rec.ClientID + " " + string(rec.Status),
			ExecutionID: rec.ExecutionID,
			URL:         "/ui/audit/" + rec.ExecutionID,
			ClientID:    rec.ClientID,
			Status:      rec.Status,
			Violation:   stringPtr(rec.ViolationKind),
			Rows:        int64Ptr(rec.RowCount),
			Duration:    durationMs(rec.DurationMs),
			Created:     formatTime(rec.CreatedAt),
		})
	}

	p := principalFromContext(r.Context())
	renderHTML(w, http.StatusOK, auditListPage(p, rows, activeStatus, pageReq, total))
}

func (h *Handler) AuditDetail(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Audit.Get(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	p := principalFromContext(r.Context())
	renderHTML(w, http.StatusOK, auditDetailPage(auditDetailPageData{
		Principal:    p,
		ExecutionID:  rec.ExecutionID,
		ClientID:     rec.ClientID,
		Status:       rec.Status,
		QueryText:    rec.QueryText,
		Violation:    stringPtr(rec.ViolationKind),
		ErrorMessage: stringPtr(rec.ErrorMessage),
		Rows:         int64Ptr(rec.RowCount),
		Duration:     durationMs(rec.DurationMs),
		Created:      formatTime(rec.CreatedAt),
		Closed:       formatTimePtr(rec.ClosedAt),
	}))
}

func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	renderHTML(w, http.StatusOK, capabilitiesPage(p, h.Gateway.Capabilities()))
}

func (h *Handler) TemplatesList(w http.ResponseWriter, r *http.Request) {
	var defs []template.Definition
	if h.Templates != nil {
		defs = h.Templates.List()
	}

	rows := make([]templateRowData, 0, len(defs))
	for i := range defs {
		d := defs[i]
		rows = append(rows, templateRowData{
			Filter: d.Name,
			Name:   d.Name,
			Params: joinParams(d.Params),
		})
	}

	p := principalFromContext(r.Context())
	renderHTML(w, http.StatusOK, templatesPage(p, rows))
}

// requireAdmin renders the console's access-denied page instead of the
// API middleware's JSON 403.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := domain.PrincipalFromContext(r.Context())
		if !ok || !p.IsAdmin {
			renderHTML(w, http.StatusForbidden, errorPage("Access Denied", "The audit trail requires an admin token."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	title := "Unexpected Error"
	message := "An unexpected error occurred while loading this page."

	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	if errors.As(err, &notFound) {
		status = http.StatusNotFound
		title = "Not Found"
		message = notFound.Error()
	} else if errors.As(err, &validation) {
		status = http.StatusBadRequest
		title = "Invalid Request"
		message = validation.Error()
	}

	_ = r
	renderHTML(w, status, errorPage(title, message))
}

func durationMs(v *int64) string {
	if v == nil {
		return "-"
	}
	return int64Ptr(v) + " ms"
}
