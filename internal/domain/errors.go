// Package domain defines core types, interfaces, and errors for the query gateway.
package domain

import (
	"fmt"
	"time"
)

// ViolationKind identifies the first validation rule a request failed.
type ViolationKind string

// Violation kinds reported by the validation stages.
const (
	ViolationTooLong           ViolationKind = "too_long"
	ViolationForbiddenKeyword  ViolationKind = "forbidden_keyword"
	ViolationNotReadOnly       ViolationKind = "not_read_only"
	ViolationTableNotAllowed   ViolationKind = "table_not_allowed"
	ViolationBoundExceeded     ViolationKind = "bound_exceeded"
	ViolationUnsafeFilePattern ViolationKind = "unsafe_file_pattern"
	ViolationMissingQueryText  ViolationKind = "missing_query_text"
	ViolationInvalidFilename   ViolationKind = "invalid_filename"
	ViolationInvalidTemplate   ViolationKind = "invalid_template"
)

// ViolationRateLimited appears only in audit records. Rate limiting is not a
// validation stage; a throttled request is still rejected with a durable,
// machine-readable reason.
const ViolationRateLimited ViolationKind = "rate_limited"

// ValidationError indicates a request was rejected by a validation stage.
// It is user-correctable and carries the kind of the first failing rule.
type ValidationError struct {
	Kind    ViolationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RateLimitError indicates the per-client request budget is exhausted.
// Retryable once RetryAfter has elapsed.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string { return e.Message }

// ExecutionKind classifies failures past the validation stages.
type ExecutionKind string

// Execution failure kinds.
const (
	ExecWarehouseFailure ExecutionKind = "warehouse_failure"
	ExecTimeout          ExecutionKind = "timeout"
	ExecUnauthorized     ExecutionKind = "unauthorized"
)

// ExecutionError indicates a failure dispatching to or running against the
// warehouse, or missing authorization on the authenticated surface.
type ExecutionError struct {
	Kind        ExecutionKind
	ExecutionID string
	Message     string
}

func (e *ExecutionError) Error() string { return e.Message }

// AuditWriteError indicates the terminal audit record could not be persisted.
// It is escalated to the caller: a request whose outcome cannot be audited
// must not be reported as a clean success.
type AuditWriteError struct {
	ExecutionID string
	Err         error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed for execution %s: %v", e.ExecutionID, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a conflicting write, such as closing an audit
// record that is already terminal.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(kind ViolationKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrRateLimited creates a RateLimitError with retry guidance.
func ErrRateLimited(retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		RetryAfter: retryAfter,
		Message:    fmt.Sprintf("rate limit exceeded, retry after %s", retryAfter.Round(time.Second)),
	}
}

// ErrExecution creates an ExecutionError with a formatted message.
func ErrExecution(kind ExecutionKind, executionID, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Kind: kind, ExecutionID: executionID, Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
