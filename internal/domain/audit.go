package domain

import "time"

// AuditStatus is the terminal outcome of one gateway request.
type AuditStatus string

// Terminal audit statuses. A record is opened without a terminal status and
// closed with exactly one of these.
const (
	AuditRejected AuditStatus = "rejected"
	AuditApproved AuditStatus = "approved"
	AuditExecuted AuditStatus = "executed"
	AuditFailed   AuditStatus = "failed"
	AuditTimedOut AuditStatus = "timed_out"
)

// AuditOpen is the internal pre-terminal marker. It never appears in query
// results returned to compliance tooling as a terminal state.
const AuditOpen AuditStatus = "open"

// Terminal reports whether s is one of the closing statuses.
func (s AuditStatus) Terminal() bool {
	switch s {
	case AuditRejected, AuditApproved, AuditExecuted, AuditFailed, AuditTimedOut:
		return true
	}
	return false
}

// AuditRecord is the persisted, append-only projection of one request.
// Immutable once terminal.
type AuditRecord struct {
	ExecutionID   string
	ClientID      string
	QueryText     string
	Status        AuditStatus
	ViolationKind *string
	ErrorMessage  *string
	RowCount      *int64
	DurationMs    *int64
	CreatedAt     time.Time
	ClosedAt      *time.Time
}

// AuditClose carries the terminal fields for closing an audit record.
type AuditClose struct {
	Status        AuditStatus
	ViolationKind *ViolationKind
	ErrorMessage  *string
	RowCount      *int64
	DurationMs    *int64
}

// AuditFilter selects audit records for the compliance query surface.
type AuditFilter struct {
	ClientID *string
	Status   *string
	Since    *time.Time
	Until    *time.Time
	Page     PageRequest
}
