// Package gate implements the validation stages that stand between untrusted
// query text and the warehouse: request normalization, syntactic
// sanitization, allow-list validation, row bound injection, and role caps.
//
// Every stage is heuristic text matching, not SQL parsing. The gateway is a
// defense-in-depth filter in front of a read-only warehouse principal; the
// matching rules accept false positives over false negatives.
package gate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"scoutgw/internal/domain"
)

var filenameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

const maxFilenameLen = 128

// Normalize trims and validates an inbound submission, stamps the execution
// ID and receipt time, and freezes the request for the rest of the pipeline.
// The execution ID and client fallback are assigned before any validation,
// so a rejected request still carries everything its audit record needs.
// The query text itself is not rewritten; case is preserved for the audit
// record.
func Normalize(req domain.QueryRequest, now time.Time) (domain.QueryRequest, error) {
	req.RawText = strings.TrimSpace(req.RawText)
	if req.ClientID == "" {
		req.ClientID = "anonymous"
	}
	if req.ExecutionID == "" {
		req.ExecutionID = domain.NewID()
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = now.UTC()
	}

	if req.RawText == "" {
		return req, domain.ErrValidation(domain.ViolationMissingQueryText, "query text is required")
	}

	if req.Filename == "" {
		req.Filename = fmt.Sprintf("adhoc_%s.sql", now.UTC().Format("20060102T150405"))
	} else {
		if len(req.Filename) > maxFilenameLen {
			return req, domain.ErrValidation(domain.ViolationInvalidFilename, "filename exceeds %d characters", maxFilenameLen)
		}
		if !filenameRe.MatchString(req.Filename) {
			return req, domain.ErrValidation(domain.ViolationInvalidFilename, "filename may only contain letters, digits, dots, underscores, and hyphens")
		}
		if !strings.HasSuffix(strings.ToLower(req.Filename), ".sql") {
			return req, domain.ErrValidation(domain.ViolationInvalidFilename, "filename must end in .sql")
		}
	}

	return req, nil
}
