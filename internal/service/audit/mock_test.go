package audit

import (
	"context"
	"time"

	"scoutgw/internal/domain"
)

type mockAuditRepo struct {
	openFn                 func(ctx context.Context, rec *domain.AuditRecord) error
	closeTerminalFn        func(ctx context.Context, executionID string, close domain.AuditClose) error
	getByExecutionIDFn     func(ctx context.Context, executionID string) (*domain.AuditRecord, error)
	listFn                 func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error)
	listTerminalBeforeFn   func(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditRecord, error)
	deleteTerminalBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ domain.AuditRecordRepository = (*mockAuditRepo)(nil)

func (m *mockAuditRepo) Open(ctx context.Context, rec *domain.AuditRecord) error {
	if m.openFn != nil {
		return m.openFn(ctx, rec)
	}
	panic("unexpected call to mockAuditRepo.Open")
}

func (m *mockAuditRepo) CloseTerminal(ctx context.Context, executionID string, close domain.AuditClose) error {
	if m.closeTerminalFn != nil {
		return m.closeTerminalFn(ctx, executionID, close)
	}
	panic("unexpected call to mockAuditRepo.CloseTerminal")
}

func (m *mockAuditRepo) GetByExecutionID(ctx context.Context, executionID string) (*domain.AuditRecord, error) {
	if m.getByExecutionIDFn != nil {
		return m.getByExecutionIDFn(ctx, executionID)
	}
	panic("unexpected call to mockAuditRepo.GetByExecutionID")
}

func (m *mockAuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	panic("unexpected call to mockAuditRepo.List")
}

func (m *mockAuditRepo) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditRecord, error) {
	if m.listTerminalBeforeFn != nil {
		return m.listTerminalBeforeFn(ctx, cutoff, limit)
	}
	panic("unexpected call to mockAuditRepo.ListTerminalBefore")
}

func (m *mockAuditRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteTerminalBeforeFn != nil {
		return m.deleteTerminalBeforeFn(ctx, cutoff)
	}
	panic("unexpected call to mockAuditRepo.DeleteTerminalBefore")
}

type mockSink struct {
	putFn func(ctx context.Context, key string, data []byte) error
}

var _ domain.ArchiveSink = (*mockSink)(nil)

func (m *mockSink) Put(ctx context.Context, key string, data []byte) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, data)
	}
	panic("unexpected call to mockSink.Put")
}

func (m *mockSink) Name() string { return "mock" }
