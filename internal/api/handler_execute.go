package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"scoutgw/internal/domain"
	"scoutgw/internal/middleware"
	"scoutgw/internal/service/gateway"
)

// executeRequest carries the statement the dashboard wants dispatched, plus
// the agent-pipeline context it sends alongside. Only generatedSQL is
// validated and executed; the context fields are logged, never trusted.
type executeRequest struct {
	GeneratedSQL         string          `json:"generatedSQL"`
	NaturalLanguageQuery string          `json:"naturalLanguageQuery,omitempty"`
	QueryIntent          string          `json:"queryIntent,omitempty"`
	PipelineMetadata     json.RawMessage `json:"pipelineMetadata,omitempty"`
	Filename             string          `json:"filename,omitempty"`
}

type executeResponse struct {
	ExecutionID     string                  `json:"executionId"`
	Status          string                  `json:"status"`
	Columns         []string                `json:"columns"`
	RowCount        int                     `json:"rowCount"`
	ExecutionTimeMs int64                   `json:"executionTimeMs"`
	Data            [][]interface{}         `json:"data"`
	Metadata        gateway.ExecuteMetadata `json:"metadata"`
}

type executeErrorResponse struct {
	ExecutionID string `json:"executionId,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

// Execute handles POST /v1/queries/execute on the authenticated surface.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: "invalid request body: " + err.Error()})
		return
	}

	if req.QueryIntent != "" || req.NaturalLanguageQuery != "" {
		h.logger.Debug("execute context",
			"intent", req.QueryIntent,
			"question", req.NaturalLanguageQuery,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
	}

	principal, _ := domain.PrincipalFromContext(r.Context())
	result, err := h.gateway.Execute(r.Context(), domain.QueryRequest{
		RawText:     req.GeneratedSQL,
		ClientID:    middleware.ClientKeyFromContext(r.Context()),
		CallerRole:  principal.Role,
		Filename:    req.Filename,
		Description: req.NaturalLanguageQuery,
	})
	recordOutcome("execute", err, start)
	if err != nil {
		h.writeExecuteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		ExecutionID:     result.ExecutionID,
		Status:          string(result.Status),
		Columns:         result.Columns,
		RowCount:        result.RowCount,
		ExecutionTimeMs: result.Duration.Milliseconds(),
		Data:            result.Rows,
		Metadata:        result.Metadata,
	})
}

// writeExecuteError keeps the execute error shape self-describing: the
// terminal status string plus the execution id when one was assigned.
func (h *Handler) writeExecuteError(w http.ResponseWriter, err error) {
	var rerr *domain.RateLimitError
	if errors.As(err, &rerr) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rerr.RetryAfter)))
	}

	writeJSON(w, statusFromError(err), executeErrorResponse{
		ExecutionID: executionIDFromError(err),
		Status:      outcomeStatus("execute", err),
		Error:       err.Error(),
	})
}

func executionIDFromError(err error) string {
	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.ExecutionID
	}
	var auditErr *domain.AuditWriteError
	if errors.As(err, &auditErr) {
		return auditErr.ExecutionID
	}
	return ""
}
