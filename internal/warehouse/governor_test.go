package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutgw/internal/domain"
)

type fakeExecutor struct {
	executeFn func(ctx context.Context, sqlText string) (*domain.QueryResult, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	return f.executeFn(ctx, sqlText)
}

func TestGovernor_DelegatesWhenSlotAvailable(t *testing.T) {
	var gotSQL string
	inner := &fakeExecutor{
		executeFn: func(_ context.Context, sqlText string) (*domain.QueryResult, error) {
			gotSQL = sqlText
			return &domain.QueryResult{RowCount: 3}, nil
		},
	}
	g := NewGovernor(inner, 100, 10)

	result, err := g.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.RowCount)
	assert.Equal(t, "SELECT 1", gotSQL)
}

func TestGovernor_ExhaustedSlotsTimeOut(t *testing.T) {
	inner := &fakeExecutor{
		executeFn: func(context.Context, string) (*domain.QueryResult, error) {
			return &domain.QueryResult{}, nil
		},
	}
	// One token per 100s: the first call drains the bucket.
	g := NewGovernor(inner, 0.01, 1)

	_, err := g.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Execute(ctx, "SELECT 2")
	require.Error(t, err)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecTimeout, execErr.Kind)
}

func TestGovernor_CanceledCallerIsNotATimeout(t *testing.T) {
	inner := &fakeExecutor{
		executeFn: func(context.Context, string) (*domain.QueryResult, error) {
			return &domain.QueryResult{}, nil
		},
	}
	g := NewGovernor(inner, 0.01, 1)

	_, err := g.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Execute(ctx, "SELECT 2")
	require.Error(t, err)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecWarehouseFailure, execErr.Kind)
}

func TestNewGovernor_ZeroValuesGetDefaults(t *testing.T) {
	inner := &fakeExecutor{
		executeFn: func(context.Context, string) (*domain.QueryResult, error) {
			return &domain.QueryResult{}, nil
		},
	}
	g := NewGovernor(inner, 0, 0)

	_, err := g.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
}
