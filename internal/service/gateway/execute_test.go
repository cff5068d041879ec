package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutgw/internal/domain"
	"scoutgw/internal/gate"
)

func execOptions() Options {
	return Options{
		Dialect:     gate.DialectLimit,
		SubmitMode:  gate.ModeStrict,
		ExecuteMode: gate.ModeLenient,
	}
}

func TestExecute_DispatchesBoundedStatement(t *testing.T) {
	opts := execOptions()
	opts.RLSEnforced = true
	f := newTestService(t, opts)
	f.executor.executeFn = func(_ context.Context, _ string) (*domain.QueryResult, error) {
		return &domain.QueryResult{
			Columns:  []string{"brand", "total_sales"},
			Rows:     [][]any{{"Oishi", 120000.5}, {"Del Monte", 80000.0}},
			RowCount: 2,
			Duration: 42 * time.Millisecond,
		}, nil
	}

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT brand, SUM(peso_value) AS total_sales FROM gold.v_transactions_flat GROUP BY brand",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AuditExecuted, res.Status)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, []string{"brand", "total_sales"}, res.Columns)
	assert.Equal(t, 42*time.Millisecond, res.Duration)
	assert.Equal(t, 10000, res.RowBound)
	assert.Contains(t, f.executor.lastSQL, "LIMIT 10000")

	assert.True(t, res.Metadata.RLSEnforced)
	assert.True(t, res.Metadata.RowLimitApplied)
	assert.True(t, res.Metadata.SchemaValidationPassed)
	assert.True(t, res.Metadata.AuditLogged)

	require.Len(t, f.repo.closed, 1)
	closed := f.repo.closed[0].close
	assert.Equal(t, domain.AuditExecuted, closed.Status)
	require.NotNil(t, closed.RowCount)
	assert.EqualValues(t, 2, *closed.RowCount)
	require.NotNil(t, closed.DurationMs)
	assert.EqualValues(t, 42, *closed.DurationMs)
}

func TestExecute_RequiresAuthenticatedRole(t *testing.T) {
	f := newTestService(t, execOptions())
	f.limiter.admitFn = nil // authorization runs first; an admission call would panic

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:  "SELECT brand FROM gold.v_transactions_flat",
		ClientID: "dash-7",
	})
	assert.Nil(t, res)

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecUnauthorized, execErr.Kind)
	assert.Zero(t, f.executor.calls)
	assert.Zero(t, f.limiter.calls)

	require.Len(t, f.repo.closed, 1)
	closed := f.repo.closed[0].close
	assert.Equal(t, domain.AuditRejected, closed.Status)
	assert.Nil(t, closed.ViolationKind)
	require.NotNil(t, closed.ErrorMessage)
	assert.Contains(t, *closed.ErrorMessage, "authenticated role")
}

func TestExecute_RateLimitBeforeAuthzConsumesBudget(t *testing.T) {
	opts := execOptions()
	opts.RateLimitBeforeAuthz = true
	f := newTestService(t, opts)

	_, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:  "SELECT brand FROM gold.v_transactions_flat",
		ClientID: "dash-7",
	})

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecUnauthorized, execErr.Kind)
	assert.Equal(t, 1, f.limiter.calls, "admission should run before the role check")
}

func TestExecute_ValidatesBeforeDispatch(t *testing.T) {
	f := newTestService(t, execOptions())

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT brand FROM gold.v_transactions_flat; DROP TABLE gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})
	assert.Nil(t, res)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, f.executor.calls)

	require.Len(t, f.repo.closed, 1)
	assert.Equal(t, domain.AuditRejected, f.repo.closed[0].close.Status)
}

func TestExecute_TruncatesRowsToEffectiveBound(t *testing.T) {
	f := newTestService(t, execOptions())
	f.svc.roles = gate.NewResolver(2, 10000, 50000, 100000)
	f.executor.executeFn = func(_ context.Context, _ string) (*domain.QueryResult, error) {
		// A misbehaving warehouse view can ignore the injected bound.
		return &domain.QueryResult{
			Columns:  []string{"region"},
			Rows:     [][]any{{"NCR"}, {"Visayas"}, {"Mindanao"}, {"Luzon"}},
			RowCount: 4,
			Duration: 5 * time.Millisecond,
		}, nil
	}

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT region FROM gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleDefault,
	})
	require.NoError(t, err)

	assert.Contains(t, f.executor.lastSQL, "LIMIT 2")
	assert.Equal(t, 2, res.RowCount)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, [][]any{{"NCR"}, {"Visayas"}}, res.Rows)
	assert.True(t, res.Metadata.RowLimitApplied)

	require.Len(t, f.repo.closed, 1)
	require.NotNil(t, f.repo.closed[0].close.RowCount)
	assert.EqualValues(t, 2, *f.repo.closed[0].close.RowCount)
}

func TestExecute_WarehouseFailureClosesFailed(t *testing.T) {
	f := newTestService(t, execOptions())
	f.executor.executeFn = func(_ context.Context, _ string) (*domain.QueryResult, error) {
		return nil, domain.ErrExecution(domain.ExecWarehouseFailure, "", `relation "gold.v_transactions_flat" does not exist`)
	}

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT brand FROM gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})
	assert.Nil(t, res)

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecWarehouseFailure, execErr.Kind)
	require.Len(t, f.repo.opened, 1)
	assert.Equal(t, f.repo.opened[0].ExecutionID, execErr.ExecutionID)

	require.Len(t, f.repo.closed, 1)
	closed := f.repo.closed[0].close
	assert.Equal(t, domain.AuditFailed, closed.Status)
	assert.NotNil(t, closed.DurationMs)
}

func TestExecute_DeadlineClosesTimedOut(t *testing.T) {
	f := newTestService(t, execOptions())
	f.executor.executeFn = func(_ context.Context, _ string) (*domain.QueryResult, error) {
		return nil, domain.ErrExecution(domain.ExecTimeout, "", "query exceeded its execution deadline")
	}

	_, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT brand FROM gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecTimeout, execErr.Kind)

	require.Len(t, f.repo.closed, 1)
	assert.Equal(t, domain.AuditTimedOut, f.repo.closed[0].close.Status)
}

func TestExecute_PassesQueryDeadlineToExecutor(t *testing.T) {
	opts := execOptions()
	opts.QueryTimeout = 5 * time.Second
	f := newTestService(t, opts)
	f.executor.executeFn = func(ctx context.Context, _ string) (*domain.QueryResult, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "dispatch context must carry a deadline")
		assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
		return &domain.QueryResult{}, nil
	}

	_, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT brand FROM gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.executor.calls)
}

func TestExecute_NotConfigured(t *testing.T) {
	f := newTestService(t, execOptions())
	f.svc.executor = nil

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT brand FROM gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})
	assert.Nil(t, res)

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecWarehouseFailure, execErr.Kind)
	assert.Contains(t, execErr.Message, "not configured")

	require.Len(t, f.repo.closed, 1)
	assert.Equal(t, domain.AuditFailed, f.repo.closed[0].close.Status)
}

func TestExecute_PanickingDispatchStillClosesAudit(t *testing.T) {
	f := newTestService(t, execOptions())
	f.executor.executeFn = func(_ context.Context, _ string) (*domain.QueryResult, error) {
		panic("driver bug")
	}

	require.Panics(t, func() {
		_, _ = f.svc.Execute(context.Background(), domain.QueryRequest{
			RawText:    "SELECT brand FROM gold.v_transactions_flat",
			ClientID:   "dash-7",
			CallerRole: domain.RoleAnalyst,
		})
	})

	require.Len(t, f.repo.closed, 1)
	closed := f.repo.closed[0].close
	assert.Equal(t, domain.AuditFailed, closed.Status)
	require.NotNil(t, closed.ErrorMessage)
	assert.Contains(t, *closed.ErrorMessage, "driver bug")
}

func TestExecute_AuditCloseFailureOverridesRows(t *testing.T) {
	f := newTestService(t, execOptions())
	f.repo.closeErr = assert.AnError
	f.executor.executeFn = func(_ context.Context, _ string) (*domain.QueryResult, error) {
		return &domain.QueryResult{Rows: [][]any{{"NCR"}}, RowCount: 1}, nil
	}

	res, err := f.svc.Execute(context.Background(), domain.QueryRequest{
		RawText:    "SELECT region FROM gold.v_transactions_flat",
		ClientID:   "dash-7",
		CallerRole: domain.RoleAnalyst,
	})
	assert.Nil(t, res)

	var aerr *domain.AuditWriteError
	require.ErrorAs(t, err, &aerr)
}
