package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"scoutgw/internal/domain"
)

var _ domain.AuditRecordRepository = (*AuditRecordRepo)(nil)

const auditColumns = `execution_id, client_id, query_text, status, violation_kind,
	       error_message, row_count, duration_ms, created_at, closed_at`

// AuditRecordRepo stores per-request audit records in SQLite. Opens and
// closes go through the write pool; list and get can use the read pool.
type AuditRecordRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewAuditRecordRepo creates a new AuditRecordRepo over a write/read pool
// pair. Passing the same *sql.DB twice is fine for tests.
func NewAuditRecordRepo(writeDB, readDB *sql.DB) *AuditRecordRepo {
	return &AuditRecordRepo{writeDB: writeDB, readDB: readDB}
}

// Open inserts the record in its pre-terminal state.
func (r *AuditRecordRepo) Open(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil || rec.ExecutionID == "" {
		return fmt.Errorf("audit record with execution id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Status = domain.AuditOpen

	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO audit_records (execution_id, client_id, query_text, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ExecutionID, rec.ClientID, rec.QueryText, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return mapDBError(err)
	}
	return nil
}

// CloseTerminal writes the terminal fields exactly once. The update is
// guarded on the open state, so a second close cannot overwrite the first
// outcome; it returns a ConflictError instead.
func (r *AuditRecordRepo) CloseTerminal(ctx context.Context, executionID string, close domain.AuditClose) error {
	if !close.Status.Terminal() {
		return fmt.Errorf("close status %q is not terminal", close.Status)
	}

	var violation *string
	if close.ViolationKind != nil {
		v := string(*close.ViolationKind)
		violation = &v
	}

	res, err := r.writeDB.ExecContext(ctx, `
		UPDATE audit_records
		SET status = ?, violation_kind = ?, error_message = ?, row_count = ?,
		    duration_ms = ?, closed_at = CURRENT_TIMESTAMP
		WHERE execution_id = ? AND status = ?
	`, string(close.Status), violation, close.ErrorMessage, close.RowCount,
		close.DurationMs, executionID, string(domain.AuditOpen))
	if err != nil {
		return mapDBError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByExecutionID(ctx, executionID); err != nil {
			return err
		}
		return domain.ErrConflict("audit record %q is already terminal", executionID)
	}
	return nil
}

// GetByExecutionID returns one record.
func (r *AuditRecordRepo) GetByExecutionID(ctx context.Context, executionID string) (*domain.AuditRecord, error) {
	row := r.readDB.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_records WHERE execution_id = ?
	`, executionID)

	rec, err := scanAuditRecord(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return rec, nil
}

// List returns records matching the filter, newest first, plus the unpaged
// total.
func (r *AuditRecordRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	qb := applyAuditFilter(sq.Select(auditColumns).From("audit_records"), filter).
		OrderBy("created_at DESC, execution_id DESC").
		Limit(uint64(filter.Page.Limit())).
		Offset(uint64(filter.Page.Offset()))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit list query: %w", err)
	}

	rows, err := r.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	records := make([]domain.AuditRecord, 0, filter.Page.Limit())
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit records: %w", err)
	}

	countQuery, countArgs, err := applyAuditFilter(
		sq.Select("COUNT(*)").From("audit_records"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit count query: %w", err)
	}
	var total int64
	if err := r.readDB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}

	return records, total, nil
}

// ListTerminalBefore returns terminal records created before the cutoff,
// oldest first, for archive export.
func (r *AuditRecordRepo) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditRecord, error) {
	rows, err := r.readDB.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_records
		WHERE status != ? AND created_at < ?
		ORDER BY created_at ASC, execution_id ASC
		LIMIT ?
	`, string(domain.AuditOpen), cutoff, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var records []domain.AuditRecord
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// DeleteTerminalBefore removes terminal records created before the cutoff.
// Open records are never swept, whatever their age.
func (r *AuditRecordRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.writeDB.ExecContext(ctx, `
		DELETE FROM audit_records WHERE status != ? AND created_at < ?
	`, string(domain.AuditOpen), cutoff)
	if err != nil {
		return 0, mapDBError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

// applyAuditFilter adds filter conditions to a SELECT builder.
func applyAuditFilter(qb sq.SelectBuilder, filter domain.AuditFilter) sq.SelectBuilder {
	if filter.ClientID != nil && *filter.ClientID != "" {
		qb = qb.Where(sq.Eq{"client_id": *filter.ClientID})
	}
	if filter.Status != nil && *filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.Since != nil {
		qb = qb.Where(sq.GtOrEq{"created_at": *filter.Since})
	}
	if filter.Until != nil {
		qb = qb.Where(sq.Lt{"created_at": *filter.Until})
	}
	return qb
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditRecord(row rowScanner) (*domain.AuditRecord, error) {
	var (
		rec                     domain.AuditRecord
		status                  string
		violation, errorMessage sql.NullString
		rowCount, durationMs    sql.NullInt64
		closedAt                sql.NullTime
	)
	err := row.Scan(
		&rec.ExecutionID,
		&rec.ClientID,
		&rec.QueryText,
		&status,
		&violation,
		&errorMessage,
		&rowCount,
		&durationMs,
		&rec.CreatedAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.AuditStatus(status)
	if violation.Valid {
		v := violation.String
		rec.ViolationKind = &v
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		rec.ErrorMessage = &msg
	}
	if rowCount.Valid {
		n := rowCount.Int64
		rec.RowCount = &n
	}
	if durationMs.Valid {
		n := durationMs.Int64
		rec.DurationMs = &n
	}
	if closedAt.Valid {
		ts := closedAt.Time
		rec.ClosedAt = &ts
	}
	return &rec, nil
}
