package gateway

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scoutgw/internal/catalog"
	"scoutgw/internal/domain"
	"scoutgw/internal/gate"
	"scoutgw/internal/service/audit"
)

var fixedNow = time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)

type mockLimiter struct {
	admitFn func(ctx context.Context, clientID string) (domain.RateDecision, error)
	calls   int
}

func (m *mockLimiter) Admit(ctx context.Context, clientID string) (domain.RateDecision, error) {
	m.calls++
	if m.admitFn == nil {
		panic("unexpected call to RateLimiter.Admit")
	}
	return m.admitFn(ctx, clientID)
}

func allowAdmit(context.Context, string) (domain.RateDecision, error) {
	return domain.RateDecision{Allowed: true, Count: 1, Limit: 10, Remaining: 9}, nil
}

type mockExecutor struct {
	executeFn func(ctx context.Context, sqlText string) (*domain.QueryResult, error)
	calls     int
	lastSQL   string
}

func (m *mockExecutor) Execute(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	m.calls++
	m.lastSQL = sqlText
	if m.executeFn == nil {
		panic("unexpected call to WarehouseExecutor.Execute")
	}
	return m.executeFn(ctx, sqlText)
}

// recordingAuditRepo captures audit writes in memory. Pipeline tests only
// ever open and close records; any other repository call panics.
type recordingAuditRepo struct {
	opened   []domain.AuditRecord
	closed   []closeCall
	openErr  error
	closeErr error
}

type closeCall struct {
	executionID string
	close       domain.AuditClose
}

func (r *recordingAuditRepo) Open(_ context.Context, rec *domain.AuditRecord) error {
	if r.openErr != nil {
		return r.openErr
	}
	r.opened = append(r.opened, *rec)
	return nil
}

func (r *recordingAuditRepo) CloseTerminal(_ context.Context, executionID string, close domain.AuditClose) error {
	if r.closeErr != nil {
		return r.closeErr
	}
	r.closed = append(r.closed, closeCall{executionID: executionID, close: close})
	return nil
}

func (r *recordingAuditRepo) GetByExecutionID(context.Context, string) (*domain.AuditRecord, error) {
	panic("unexpected call to AuditRecordRepository.GetByExecutionID")
}

func (r *recordingAuditRepo) List(context.Context, domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	panic("unexpected call to AuditRecordRepository.List")
}

func (r *recordingAuditRepo) ListTerminalBefore(context.Context, time.Time, int) ([]domain.AuditRecord, error) {
	panic("unexpected call to AuditRecordRepository.ListTerminalBefore")
}

func (r *recordingAuditRepo) DeleteTerminalBefore(context.Context, time.Time) (int64, error) {
	panic("unexpected call to AuditRecordRepository.DeleteTerminalBefore")
}

type serviceFixture struct {
	svc      *Service
	repo     *recordingAuditRepo
	limiter  *mockLimiter
	executor *mockExecutor
}

func newTestService(t *testing.T, opts Options) *serviceFixture {
	t.Helper()

	cat := catalog.Default()
	validator, err := gate.NewValidator("catalog", cat)
	require.NoError(t, err)

	repo := &recordingAuditRepo{}
	limiter := &mockLimiter{admitFn: allowAdmit}
	executor := &mockExecutor{}
	logger := slog.New(slog.DiscardHandler)

	svc := NewService(
		cat,
		limiter,
		validator,
		gate.NewResolver(1000, 10000, 50000, 100000),
		audit.NewLogger(repo, logger),
		executor,
		logger,
		opts,
	)
	svc.now = func() time.Time { return fixedNow }

	return &serviceFixture{svc: svc, repo: repo, limiter: limiter, executor: executor}
}
