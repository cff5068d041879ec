package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scoutgw/internal/catalog"
	"scoutgw/internal/domain"
	"scoutgw/internal/gate"
	"scoutgw/internal/health"
	"scoutgw/internal/middleware"
	"scoutgw/internal/openapi"
	"scoutgw/internal/service/audit"
	"scoutgw/internal/service/gateway"
	"scoutgw/internal/service/template"
)

type mockLimiter struct {
	admitFn func(ctx context.Context, clientID string) (domain.RateDecision, error)
}

func (m *mockLimiter) Admit(ctx context.Context, clientID string) (domain.RateDecision, error) {
	if m.admitFn == nil {
		return domain.RateDecision{Allowed: true, Count: 1, Limit: 10, Remaining: 9}, nil
	}
	return m.admitFn(ctx, clientID)
}

type mockExecutor struct {
	executeFn func(ctx context.Context, sqlText string) (*domain.QueryResult, error)
	lastSQL   string
}

func (m *mockExecutor) Execute(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	m.lastSQL = sqlText
	if m.executeFn == nil {
		return &domain.QueryResult{
			Columns:  []string{"brand", "total_sales"},
			Rows:     [][]interface{}{{"Oishi", 120543.50}},
			RowCount: 1,
			Duration: 42 * time.Millisecond,
		}, nil
	}
	return m.executeFn(ctx, sqlText)
}

// memAuditRepo is an in-memory AuditRecordRepository for handler tests.
type memAuditRepo struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (r *memAuditRepo) Open(_ context.Context, rec *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rec
	stored.Status = domain.AuditOpen
	r.records = append(r.records, stored)
	return nil
}

func (r *memAuditRepo) CloseTerminal(_ context.Context, executionID string, close domain.AuditClose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ExecutionID != executionID {
			continue
		}
		if r.records[i].Status.Terminal() {
			return domain.ErrConflict("audit record %s is already terminal", executionID)
		}
		r.records[i].Status = close.Status
		if close.ViolationKind != nil {
			kind := string(*close.ViolationKind)
			r.records[i].ViolationKind = &kind
		}
		r.records[i].ErrorMessage = close.ErrorMessage
		r.records[i].RowCount = close.RowCount
		r.records[i].DurationMs = close.DurationMs
		now := time.Now().UTC()
		r.records[i].ClosedAt = &now
		return nil
	}
	return domain.ErrNotFound("audit record %s not found", executionID)
}

func (r *memAuditRepo) GetByExecutionID(_ context.Context, executionID string) (*domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ExecutionID == executionID {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound("audit record %s not found", executionID)
}

func (r *memAuditRepo) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.AuditRecord
	for i := range r.records {
		rec := r.records[i]
		if filter.ClientID != nil && rec.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && string(rec.Status) != *filter.Status {
			continue
		}
		matched = append(matched, rec)
	}
	total := int64(len(matched))
	offset := filter.Page.Offset()
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + filter.Page.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *memAuditRepo) ListTerminalBefore(context.Context, time.Time, int) ([]domain.AuditRecord, error) {
	panic("unexpected call to ListTerminalBefore")
}

func (r *memAuditRepo) DeleteTerminalBefore(context.Context, time.Time) (int64, error) {
	panic("unexpected call to DeleteTerminalBefore")
}

func (r *memAuditRepo) last(t *testing.T) domain.AuditRecord {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.records)
	return r.records[len(r.records)-1]
}

// tokenValidator maps fixed bearer tokens to claims, standing in for the
// JWT validators.
type tokenValidator struct {
	tokens map[string]*middleware.JWTClaims
}

func (v *tokenValidator) Validate(_ context.Context, token string) (*middleware.JWTClaims, error) {
	if claims, ok := v.tokens[token]; ok {
		return claims, nil
	}
	return nil, domain.ErrNotFound("unknown token")
}

type apiFixture struct {
	router   http.Handler
	repo     *memAuditRepo
	limiter  *mockLimiter
	executor *mockExecutor
	checker  *health.Checker
}

// Test tokens accepted by the fixture's validator.
const (
	analystToken = "analyst-token"
	adminToken   = "admin-token"
)

func newTestRouter(t *testing.T, opts gateway.Options) *apiFixture {
	t.Helper()

	cat := catalog.Default()
	logger := slog.New(slog.DiscardHandler)

	repo := &memAuditRepo{}
	limiter := &mockLimiter{}
	executor := &mockExecutor{}

	validator, err := gate.NewValidator("catalog", cat)
	require.NoError(t, err)

	svc := gateway.NewService(
		cat, limiter, validator,
		gate.NewResolver(1000, 10000, 50000, 100000),
		audit.NewLogger(repo, logger),
		executor, logger, opts,
	)

	engine, err := template.Default()
	require.NoError(t, err)

	spec, err := openapi.Load(context.Background())
	require.NoError(t, err)

	jwt := &tokenValidator{tokens: map[string]*middleware.JWTClaims{
		analystToken: {Subject: "ana@scout", Role: "analyst"},
		adminToken:   {Subject: "ops@scout", Role: "manager", Admin: true},
	}}

	checker := health.NewChecker()

	router := NewRouter(RouterConfig{
		Handler:        NewHandler(svc, audit.NewService(repo), engine, logger),
		Auth:           middleware.Authenticate(jwt),
		OptionalAuth:   middleware.AuthenticateOptional(jwt),
		Health:         checker,
		Spec:           spec,
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	})

	return &apiFixture{
		router:   router,
		repo:     repo,
		limiter:  limiter,
		executor: executor,
		checker:  checker,
	}
}

func jsonBody(s string) *strings.Reader { return strings.NewReader(s) }
