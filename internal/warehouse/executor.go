package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"scoutgw/internal/domain"
)

var _ domain.WarehouseExecutor = (*Executor)(nil)

// Executor runs approved statements against a warehouse connection pool.
// The same adapter serves every backend; dialect differences are settled
// upstream by the row-bound injector.
type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs the statement and scans all rows into a QueryResult.
func (e *Executor) Execute(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, classifyExecError(ctx, err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := scanRows(rows)
	if err != nil {
		return nil, classifyExecError(ctx, err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// classifyExecError sorts driver errors into the execution taxonomy. The
// execution id is stamped by the pipeline, which knows the request.
func classifyExecError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrExecution(domain.ExecTimeout, "", "query exceeded its execution deadline")
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"permission denied", "access is denied", "not authorized", "login failed"} {
		if strings.Contains(msg, hint) {
			return domain.ErrExecution(domain.ExecUnauthorized, "", "warehouse refused the statement: %v", err)
		}
	}
	return domain.ErrExecution(domain.ExecWarehouseFailure, "", "warehouse query failed: %v", err)
}

func scanRows(rows *sql.Rows) (*domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultRows [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Byte slices become strings so results serialize as JSON text.
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.QueryResult{
		Columns:  cols,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
