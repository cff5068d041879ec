package domain

import (
	"context"
	"time"
)

// RateLimiter admits or rejects a request for a client key.
// Implemented by ratelimit.Memory and ratelimit.Redis.
type RateLimiter interface {
	Admit(ctx context.Context, clientID string) (RateDecision, error)
}

// QueryResult is what a warehouse adapter returns for an executed statement.
type QueryResult struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
	Duration time.Duration
}

// WarehouseExecutor runs a final, sanitized statement against a warehouse.
// Implementations wrap a *sql.DB for one back-end and must honor ctx
// cancellation and deadlines.
type WarehouseExecutor interface {
	Execute(ctx context.Context, sqlText string) (*QueryResult, error)
}

// AuditRecordRepository persists audit records.
// Implemented by repository.AuditRecordRepo.
type AuditRecordRepository interface {
	// Open inserts the record in its pre-terminal state.
	Open(ctx context.Context, rec *AuditRecord) error
	// CloseTerminal writes the terminal fields exactly once. Closing an
	// already-terminal record returns a ConflictError.
	CloseTerminal(ctx context.Context, executionID string, close AuditClose) error
	// GetByExecutionID returns one record.
	GetByExecutionID(ctx context.Context, executionID string) (*AuditRecord, error)
	// List returns records matching the filter plus the unpaged total.
	List(ctx context.Context, filter AuditFilter) ([]AuditRecord, int64, error)
	// ListTerminalBefore returns terminal records created before the cutoff,
	// oldest first, for archive export.
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]AuditRecord, error)
	// DeleteTerminalBefore removes terminal records created before the cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ArchiveSink stores an exported audit batch in an object store.
// Implemented by the S3, Azure Blob, and GCS sinks in internal/archive.
type ArchiveSink interface {
	Put(ctx context.Context, key string, data []byte) error
	Name() string
}
