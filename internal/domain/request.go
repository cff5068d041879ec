package domain

import (
	"fmt"
	"time"
)

// QueryRequest is an inbound ad-hoc query after normalization. Immutable once
// normalized; only its audit projection outlives the request.
type QueryRequest struct {
	ExecutionID string
	RawText     string
	ClientID    string
	CallerRole  Role
	Filename    string
	Description string
	ReceivedAt  time.Time
}

// Violation describes why a validation stage rejected a request.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// ValidationResult is the outcome of the validation stages for one request.
// It is fully determined by the query text and the active catalog: no clock,
// no I/O, no shared state.
type ValidationResult struct {
	Passed           bool       `json:"passed"`
	ChecksRun        []string   `json:"checks"`
	TablesReferenced []string   `json:"tables_referenced,omitempty"`
	Violation        *Violation `json:"violation,omitempty"`
}

// Check names recorded in ValidationResult.ChecksRun, in pipeline order.
const (
	CheckLength       = "length"
	CheckSingleStmt   = "single_statement"
	CheckComments     = "comments"
	CheckKeywords     = "forbidden_keywords"
	CheckFilePatterns = "file_patterns"
	CheckReadOnlyVerb = "read_only_verb"
	CheckAllowList    = "allow_list"
	CheckRowBound     = "row_bound"
)

// Fail marks the result rejected with the given violation. The failing check
// is appended to ChecksRun so the report shows how far the request got.
func (r *ValidationResult) Fail(check string, kind ViolationKind, format string, args ...interface{}) {
	r.ChecksRun = append(r.ChecksRun, check)
	r.Passed = false
	r.Violation = &Violation{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Pass records a completed check.
func (r *ValidationResult) Pass(check string) {
	r.ChecksRun = append(r.ChecksRun, check)
}

// Extend folds a later stage's result into this one: checks accumulate, and
// the first violation wins.
func (r *ValidationResult) Extend(other ValidationResult) {
	r.ChecksRun = append(r.ChecksRun, other.ChecksRun...)
	if len(other.TablesReferenced) > 0 {
		r.TablesReferenced = other.TablesReferenced
	}
	if !other.Passed && r.Passed {
		r.Passed = false
		r.Violation = other.Violation
	}
}
