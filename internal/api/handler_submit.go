package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"scoutgw/internal/domain"
	"scoutgw/internal/middleware"
	"scoutgw/internal/service/gateway"
)

// submitRequest is the public submission body. Either sql or template must
// be set, never both; args feed the named template.
type submitRequest struct {
	SQL         string                 `json:"sql,omitempty"`
	Template    string                 `json:"template,omitempty"`
	Args        map[string]interface{} `json:"args,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	Description string                 `json:"description,omitempty"`
}

type submitResponse struct {
	OK          bool                    `json:"ok"`
	ExecutionID string                  `json:"execution_id"`
	SQL         string                  `json:"sql"`
	Filename    string                  `json:"filename"`
	RowBound    int                     `json:"row_bound"`
	Audit       submitAudit             `json:"audit"`
	Validation  domain.ValidationResult `json:"validation"`
}

// submitAudit echoes the projection the audit record kept. The camelCase
// keys are the dashboard's wire contract.
type submitAudit struct {
	RequestedAt      time.Time `json:"requestedAt"`
	TablesReferenced []string  `json:"tablesReferenced"`
	SQLLength        int       `json:"sqlLength"`
}

// rejectionResponse tells the dashboard why a query was refused and what
// would be accepted instead.
type rejectionResponse struct {
	OK         bool                 `json:"ok"`
	Error      string               `json:"error"`
	Validation rejectionDetail      `json:"validation"`
	Help       gateway.Capabilities `json:"help"`
}

type rejectionDetail struct {
	Passed bool   `json:"passed"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

type rateLimitResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// Submit handles POST /v1/queries/submit. The surface is anonymous: the
// caller role comes from the bearer principal when one is present, and the
// rate-limit key falls back to the peer address.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: "invalid request body: " + err.Error()})
		return
	}

	text, err := h.resolveQueryText(req)
	if err != nil {
		// Expansion failed before any query text existed, so there is no
		// audit record to close; the caller still gets the full rejection.
		h.writeDomainError(w, err)
		recordOutcome("submit", err, start)
		return
	}

	result, err := h.gateway.Submit(r.Context(), domain.QueryRequest{
		RawText:     text,
		ClientID:    middleware.ClientKeyFromContext(r.Context()),
		CallerRole:  roleFromRequest(r),
		Filename:    req.Filename,
		Description: req.Description,
	})
	recordOutcome("submit", err, start)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		OK:          true,
		ExecutionID: result.ExecutionID,
		SQL:         result.SQL,
		Filename:    result.Filename,
		RowBound:    result.RowBound,
		Audit: submitAudit{
			RequestedAt:      result.RequestedAt,
			TablesReferenced: result.TablesReferenced,
			SQLLength:        len(result.SQL),
		},
		Validation: result.Validation,
	})
}

// resolveQueryText returns the SQL to validate: either the raw sql field or
// the expansion of a named template.
func (h *Handler) resolveQueryText(req submitRequest) (string, error) {
	if req.Template == "" {
		return req.SQL, nil
	}
	if req.SQL != "" {
		return "", domain.ErrValidation(domain.ViolationInvalidTemplate, "provide sql or template, not both")
	}
	if h.templates == nil {
		return "", domain.ErrValidation(domain.ViolationInvalidTemplate, "query templates are not configured")
	}
	return h.templates.Expand(req.Template, req.Args)
}

// writeDomainError renders rejections with the capability help block and
// rate limits with retry guidance; everything else gets the generic body.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, rejectionResponse{
			OK:    false,
			Error: verr.Message,
			Validation: rejectionDetail{
				Passed: false,
				Kind:   string(verr.Kind),
				Error:  verr.Message,
			},
			Help: h.gateway.Capabilities(),
		})
		return
	}

	var rerr *domain.RateLimitError
	if errors.As(err, &rerr) {
		secs := retryAfterSeconds(rerr.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{
			OK:                false,
			Error:             rerr.Message,
			RetryAfterSeconds: secs,
		})
		return
	}

	writeError(w, err)
}

// roleFromRequest reads the caller role from the bearer principal when the
// optional authentication middleware resolved one.
func roleFromRequest(r *http.Request) domain.Role {
	if p, ok := domain.PrincipalFromContext(r.Context()); ok {
		return p.Role
	}
	return ""
}
