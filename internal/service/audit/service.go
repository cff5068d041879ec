package audit

import (
	"context"

	"scoutgw/internal/domain"
)

// Service is the compliance query surface over the audit trail.
type Service struct {
	repo domain.AuditRecordRepository
}

func NewService(repo domain.AuditRecordRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, executionID string) (*domain.AuditRecord, error) {
	if executionID == "" {
		return nil, domain.ErrNotFound("audit record not found")
	}
	return s.repo.GetByExecutionID(ctx, executionID)
}
