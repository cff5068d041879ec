// Package audit provides the gateway's request trail: a logger that opens
// one record per request and closes it with exactly one terminal status, a
// query surface for compliance review, and a scheduled retention sweeper.
package audit

import (
	"context"
	"log/slog"
	"time"

	"scoutgw/internal/domain"
)

// closeTimeout bounds the terminal write. It is independent of the request
// deadline so a timed-out query still gets its terminal record.
const closeTimeout = 5 * time.Second

// Logger persists audit records. Write failures are escalated, not
// swallowed: a request whose outcome cannot be recorded must not be
// reported as a clean success.
type Logger struct {
	repo   domain.AuditRecordRepository
	logger *slog.Logger
}

func NewLogger(repo domain.AuditRecordRepository, logger *slog.Logger) *Logger {
	return &Logger{repo: repo, logger: logger}
}

// Open records the request before any validation stage runs.
func (l *Logger) Open(ctx context.Context, rec *domain.AuditRecord) error {
	if err := l.repo.Open(ctx, rec); err != nil {
		l.logger.Error("audit open failed",
			"execution_id", rec.ExecutionID,
			"client_id", rec.ClientID,
			"error", err,
		)
		return &domain.AuditWriteError{ExecutionID: rec.ExecutionID, Err: err}
	}
	return nil
}

// Close writes the terminal fields. It runs on a context detached from the
// request, so a canceled or timed-out request cannot lose its terminal
// write.
func (l *Logger) Close(_ context.Context, executionID string, close domain.AuditClose) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := l.repo.CloseTerminal(ctx, executionID, close); err != nil {
		l.logger.Error("audit close failed",
			"execution_id", executionID,
			"status", string(close.Status),
			"error", err,
		)
		return &domain.AuditWriteError{ExecutionID: executionID, Err: err}
	}
	return nil
}
