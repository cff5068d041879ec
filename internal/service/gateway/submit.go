package gateway

import (
	"context"
	"time"

	"scoutgw/internal/domain"
)

// SubmitResult is the approval receipt for a validated query. SQL carries
// the bounded statement the caller should run, which may differ from the
// submitted text when a row bound was injected or clamped.
type SubmitResult struct {
	ExecutionID      string
	SQL              string
	Filename         string
	RequestedAt      time.Time
	TablesReferenced []string
	RowBound         int
	Validation       domain.ValidationResult
}

// Submit runs the full validation pipeline without dispatching. Every
// outcome, approval or rejection, leaves one terminal audit record.
func (s *Service) Submit(ctx context.Context, req domain.QueryRequest) (*SubmitResult, error) {
	norm, guard, err := s.open(ctx, req)
	if err != nil {
		if guard == nil {
			return nil, err
		}
		defer guard.ensure()
		return nil, s.fail(guard, err, domain.AuditClose{})
	}
	defer guard.ensure()

	if err := s.admit(ctx, norm); err != nil {
		return nil, s.fail(guard, err, domain.AuditClose{})
	}

	validation, bounded, bound, err := s.validate(norm, s.submitInjector)
	if err != nil {
		return nil, s.fail(guard, err, domain.AuditClose{})
	}

	if err := guard.finish(domain.AuditClose{Status: domain.AuditApproved}); err != nil {
		return nil, err
	}

	s.logger.Info("query approved",
		"execution_id", norm.ExecutionID,
		"client_id", norm.ClientID,
		"tables", validation.TablesReferenced,
		"row_bound", bound,
	)

	return &SubmitResult{
		ExecutionID:      norm.ExecutionID,
		SQL:              bounded,
		Filename:         norm.Filename,
		RequestedAt:      norm.ReceivedAt,
		TablesReferenced: validation.TablesReferenced,
		RowBound:         bound,
		Validation:       validation,
	}, nil
}
