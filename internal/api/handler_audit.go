package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"scoutgw/internal/domain"
)

type auditRecordBody struct {
	ExecutionID   string     `json:"execution_id"`
	ClientID      string     `json:"client_id"`
	QueryText     string     `json:"query_text"`
	Status        string     `json:"status"`
	ViolationKind *string    `json:"violation_kind,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	RowCount      *int64     `json:"row_count,omitempty"`
	DurationMs    *int64     `json:"duration_ms,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

type auditListResponse struct {
	Records       []auditRecordBody `json:"records"`
	TotalCount    int64             `json:"total_count"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// ListAuditRecords handles GET /v1/audit/records for the compliance surface.
func (h *Handler) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	records, total, err := h.audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := auditListResponse{
		Records:       make([]auditRecordBody, 0, len(records)),
		TotalCount:    total,
		NextPageToken: domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total),
	}
	for i := range records {
		resp.Records = append(resp.Records, auditRecordToAPI(&records[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAuditRecord handles GET /v1/audit/records/{executionID}.
func (h *Handler) GetAuditRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.audit.Get(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auditRecordToAPI(rec))
}

func auditRecordToAPI(rec *domain.AuditRecord) auditRecordBody {
	return auditRecordBody{
		ExecutionID:   rec.ExecutionID,
		ClientID:      rec.ClientID,
		QueryText:     rec.QueryText,
		Status:        string(rec.Status),
		ViolationKind: rec.ViolationKind,
		ErrorMessage:  rec.ErrorMessage,
		RowCount:      rec.RowCount,
		DurationMs:    rec.DurationMs,
		CreatedAt:     rec.CreatedAt,
		ClosedAt:      rec.ClosedAt,
	}
}

func auditFilterFromQuery(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		Page: domain.PageRequest{PageToken: q.Get("page_token")},
	}

	if v := q.Get("client_id"); v != "" {
		filter.ClientID = &v
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("since must be RFC 3339, got %q", v)
		}
		filter.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("until must be RFC 3339, got %q", v)
		}
		filter.Until = &t
	}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("max_results must be an integer, got %q", v)
		}
		filter.Page.MaxResults = n
	}
	return filter, nil
}
