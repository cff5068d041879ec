// Package gateway orchestrates the request pipeline: normalization, rate
// limiting, sanitization, allow-list validation, row bound injection, role
// caps, optional dispatch, and the audit trail. Stages run strictly in
// order and fail fast; the first stage to reject determines the terminal
// status and the reported violation.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scoutgw/internal/catalog"
	"scoutgw/internal/domain"
	"scoutgw/internal/gate"
	"scoutgw/internal/service/audit"
)

const defaultQueryTimeout = 30 * time.Second

// Options carries the pipeline knobs that come from configuration.
type Options struct {
	Dialect      gate.Dialect
	SubmitMode   gate.Mode
	ExecuteMode  gate.Mode
	QueryTimeout time.Duration
	// RateLimitBeforeAuthz decides whether an unauthorized caller on the
	// execute surface still consumes rate-limit budget.
	RateLimitBeforeAuthz bool
	// RLSEnforced attests that the warehouse principal is subject to
	// row-level security. Reported in execute metadata, never enforced here.
	RLSEnforced bool
}

// Service runs every request through the same ordered stages. Submit stops
// after validation; Execute continues to the warehouse. Both close exactly
// one audit record per request, whatever the outcome.
type Service struct {
	cat            *catalog.Catalog
	limiter        domain.RateLimiter
	sanitizer      *gate.Sanitizer
	validator      gate.Validator
	submitInjector *gate.Injector
	execInjector   *gate.Injector
	roles          *gate.Resolver
	audit          *audit.Logger
	executor       domain.WarehouseExecutor
	logger         *slog.Logger

	queryTimeout         time.Duration
	rateLimitBeforeAuthz bool
	rlsEnforced          bool
	now                  func() time.Time
}

// NewService wires the pipeline. executor may be nil for submit-only
// deployments; Execute then rejects with a warehouse failure.
func NewService(
	cat *catalog.Catalog,
	limiter domain.RateLimiter,
	validator gate.Validator,
	roles *gate.Resolver,
	auditLog *audit.Logger,
	executor domain.WarehouseExecutor,
	logger *slog.Logger,
	opts Options,
) *Service {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	return &Service{
		cat:                  cat,
		limiter:              limiter,
		sanitizer:            gate.NewSanitizer(cat),
		validator:            validator,
		submitInjector:       gate.NewInjector(opts.Dialect, opts.SubmitMode),
		execInjector:         gate.NewInjector(opts.Dialect, opts.ExecuteMode),
		roles:                roles,
		audit:                auditLog,
		executor:             executor,
		logger:               logger,
		queryTimeout:         opts.QueryTimeout,
		rateLimitBeforeAuthz: opts.RateLimitBeforeAuthz,
		rlsEnforced:          opts.RLSEnforced,
		now:                  time.Now,
	}
}

// Capabilities describes what the untrusted surface may submit. Returned
// with rejections as remediation help and served on its own endpoint.
type Capabilities struct {
	Policy           string   `json:"policy"`
	AllowedTables    []string `json:"allowed_tables"`
	AllowedFunctions []string `json:"allowed_functions"`
	MaxLength        int      `json:"max_length"`
	MaxRowCap        int      `json:"max_top"`
	Example          string   `json:"example"`
}

func (s *Service) Capabilities() Capabilities {
	return Capabilities{
		Policy:           s.validator.Policy(),
		AllowedTables:    s.cat.Tables,
		AllowedFunctions: s.cat.Functions,
		MaxLength:        s.cat.MaxLength,
		MaxRowCap:        s.cat.MaxRowCap,
		Example:          s.cat.ExampleQuery,
	}
}

// open normalizes the request, opens its audit record, and arms the
// completion guard. The guard's deferred ensure() is the backstop that
// keeps the one-terminal-record invariant through panics and forgotten
// paths; normal paths close explicitly so audit failures can escalate.
func (s *Service) open(ctx context.Context, req domain.QueryRequest) (domain.QueryRequest, *completionGuard, error) {
	norm, normErr := gate.Normalize(req, s.now())

	if err := s.audit.Open(ctx, &domain.AuditRecord{
		ExecutionID: norm.ExecutionID,
		ClientID:    norm.ClientID,
		QueryText:   norm.RawText,
		CreatedAt:   norm.ReceivedAt,
	}); err != nil {
		return norm, nil, err
	}

	guard := &completionGuard{svc: s, ctx: ctx, executionID: norm.ExecutionID}
	return norm, guard, normErr
}

// admit consults the per-client window. Backend failures surface as plain
// errors so callers can tell an outage from an exhausted budget.
func (s *Service) admit(ctx context.Context, req domain.QueryRequest) error {
	decision, err := s.limiter.Admit(ctx, req.ClientID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return domain.ErrRateLimited(decision.RetryAfter(s.now()))
	}
	return nil
}

// validate runs the text stages in order: sanitizer, allow-list, row bound.
// On success it returns the bounded statement and the effective row bound.
func (s *Service) validate(req domain.QueryRequest, injector *gate.Injector) (domain.ValidationResult, string, int, error) {
	result := s.sanitizer.Sanitize(req.RawText)
	if !result.Passed {
		return result, "", 0, violationError(result)
	}

	result.Extend(s.validator.Validate(req.RawText))
	if !result.Passed {
		return result, "", 0, violationError(result)
	}

	roleCap := s.roles.EffectiveCap(req.CallerRole, s.cat.MaxRowCap)
	bounded, bound, err := injector.ApplyCap(req.RawText, roleCap)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			result.Fail(domain.CheckRowBound, verr.Kind, "%s", verr.Message)
		}
		return result, "", 0, err
	}
	result.Pass(domain.CheckRowBound)

	return result, bounded, bound, nil
}

func violationError(result domain.ValidationResult) error {
	if result.Violation == nil {
		return domain.ErrValidation(domain.ViolationNotReadOnly, "query rejected")
	}
	return domain.ErrValidation(result.Violation.Kind, "%s", result.Violation.Message)
}

// fail closes the audit record for cause and returns cause, unless the
// close itself fails, which takes precedence.
func (s *Service) fail(guard *completionGuard, cause error, extra domain.AuditClose) error {
	status, kind := terminalFor(cause)
	extra.Status = status
	if kind != "" {
		k := kind
		extra.ViolationKind = &k
	}
	msg := cause.Error()
	extra.ErrorMessage = &msg

	if err := guard.finish(extra); err != nil {
		return err
	}
	return cause
}

// terminalFor maps an error to the audit status it terminates with.
func terminalFor(cause error) (domain.AuditStatus, domain.ViolationKind) {
	var verr *domain.ValidationError
	if errors.As(cause, &verr) {
		return domain.AuditRejected, verr.Kind
	}
	var rerr *domain.RateLimitError
	if errors.As(cause, &rerr) {
		return domain.AuditRejected, domain.ViolationRateLimited
	}
	var execErr *domain.ExecutionError
	if errors.As(cause, &execErr) {
		switch execErr.Kind {
		case domain.ExecTimeout:
			return domain.AuditTimedOut, ""
		case domain.ExecUnauthorized:
			return domain.AuditRejected, ""
		default:
			return domain.AuditFailed, ""
		}
	}
	return domain.AuditFailed, ""
}

// completionGuard holds the not-yet-closed audit record for one request.
type completionGuard struct {
	svc         *Service
	ctx         context.Context
	executionID string
	done        bool
}

// finish writes the terminal close exactly once.
func (g *completionGuard) finish(close domain.AuditClose) error {
	if g.done {
		return nil
	}
	g.done = true
	return g.svc.audit.Close(g.ctx, g.executionID, close)
}

// ensure runs deferred. It closes records abandoned by a panic or a missed
// return path, then lets the panic continue.
func (g *completionGuard) ensure() {
	if r := recover(); r != nil {
		msg := fmt.Sprintf("internal error: %v", r)
		_ = g.finish(domain.AuditClose{Status: domain.AuditFailed, ErrorMessage: &msg})
		panic(r)
	}
	if g.done {
		return
	}
	msg := "request abandoned before reaching a terminal state"
	g.svc.logger.Error("audit record left open", "execution_id", g.executionID)
	_ = g.finish(domain.AuditClose{Status: domain.AuditFailed, ErrorMessage: &msg})
}
