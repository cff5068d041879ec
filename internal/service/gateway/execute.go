package gateway

import (
	"context"
	"errors"
	"time"

	"scoutgw/internal/domain"
)

// ExecuteMetadata reports what governance actually happened for one
// execution, so callers never have to infer it from the result shape.
type ExecuteMetadata struct {
	RLSEnforced            bool `json:"rlsEnforced"`
	RowLimitApplied        bool `json:"rowLimitApplied"`
	SchemaValidationPassed bool `json:"schemaValidationPassed"`
	AuditLogged            bool `json:"auditLogged"`
}

// ExecuteResult carries the rows of a dispatched query together with its
// terminal audit status.
type ExecuteResult struct {
	ExecutionID string
	Status      domain.AuditStatus
	Columns     []string
	Rows        [][]any
	RowCount    int
	RowBound    int
	Duration    time.Duration
	Metadata    ExecuteMetadata
}

// Execute validates and dispatches a query under the configured wall-clock
// timeout. Validation runs here in full even for statements a Submit call
// already approved; approval is advice, dispatch re-checks everything.
func (s *Service) Execute(ctx context.Context, req domain.QueryRequest) (*ExecuteResult, error) {
	norm, guard, err := s.open(ctx, req)
	if err != nil {
		if guard == nil {
			return nil, err
		}
		defer guard.ensure()
		return nil, s.fail(guard, err, domain.AuditClose{})
	}
	defer guard.ensure()

	if s.rateLimitBeforeAuthz {
		if err := s.admit(ctx, norm); err != nil {
			return nil, s.fail(guard, err, domain.AuditClose{})
		}
		if err := s.authorize(norm); err != nil {
			return nil, s.fail(guard, err, domain.AuditClose{})
		}
	} else {
		if err := s.authorize(norm); err != nil {
			return nil, s.fail(guard, err, domain.AuditClose{})
		}
		if err := s.admit(ctx, norm); err != nil {
			return nil, s.fail(guard, err, domain.AuditClose{})
		}
	}

	validation, bounded, bound, err := s.validate(norm, s.execInjector)
	if err != nil {
		return nil, s.fail(guard, err, domain.AuditClose{})
	}

	if s.executor == nil {
		err := domain.ErrExecution(domain.ExecWarehouseFailure, norm.ExecutionID, "query execution is not configured")
		return nil, s.fail(guard, err, domain.AuditClose{})
	}

	execCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := s.now()
	result, err := s.executor.Execute(execCtx, bounded)
	elapsed := s.now().Sub(start)
	if err != nil {
		var execErr *domain.ExecutionError
		if errors.As(err, &execErr) && execErr.ExecutionID == "" {
			execErr.ExecutionID = norm.ExecutionID
		}
		durationMs := elapsed.Milliseconds()
		return nil, s.fail(guard, err, domain.AuditClose{DurationMs: &durationMs})
	}

	rows := result.Rows
	truncated := false
	if bound > 0 && len(rows) > bound {
		rows = rows[:bound]
		truncated = true
	}
	rowCount := len(rows)

	durationMs := result.Duration.Milliseconds()
	rowCount64 := int64(rowCount)
	if err := guard.finish(domain.AuditClose{
		Status:     domain.AuditExecuted,
		RowCount:   &rowCount64,
		DurationMs: &durationMs,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("query executed",
		"execution_id", norm.ExecutionID,
		"client_id", norm.ClientID,
		"rows", rowCount,
		"duration_ms", durationMs,
	)

	return &ExecuteResult{
		ExecutionID: norm.ExecutionID,
		Status:      domain.AuditExecuted,
		Columns:     result.Columns,
		Rows:        rows,
		RowCount:    rowCount,
		RowBound:    bound,
		Duration:    result.Duration,
		Metadata: ExecuteMetadata{
			RLSEnforced:            s.rlsEnforced,
			RowLimitApplied:        bounded != norm.RawText || truncated,
			SchemaValidationPassed: validation.Passed,
			AuditLogged:            true,
		},
	}, nil
}

// authorize requires an authenticated role on the execute surface. The
// anonymous submit surface never reaches this check.
func (s *Service) authorize(req domain.QueryRequest) error {
	if req.CallerRole == "" {
		return domain.ErrExecution(domain.ExecUnauthorized, req.ExecutionID, "execution requires an authenticated role")
	}
	return nil
}
