// Package app composes the gateway from configuration and the external
// handles main() opens: catalog and validation policy, rate limiting,
// warehouse dispatch, the audit trail with its retention sweeper, and
// token validation. Everything here is wiring; behavior lives in the
// packages being wired.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/redis/go-redis/v9"

	"scoutgw/internal/archive"
	"scoutgw/internal/catalog"
	"scoutgw/internal/config"
	"scoutgw/internal/db/repository"
	"scoutgw/internal/domain"
	"scoutgw/internal/gate"
	"scoutgw/internal/health"
	"scoutgw/internal/middleware"
	"scoutgw/internal/openapi"
	"scoutgw/internal/ratelimit"
	"scoutgw/internal/service/audit"
	"scoutgw/internal/service/gateway"
	"scoutgw/internal/service/template"
	"scoutgw/internal/warehouse"
)

// Deps are the external handles main() must provide: the split audit
// pools, the warehouse pool (nil when WAREHOUSE_BACKEND=none), and the
// process logger.
type Deps struct {
	Cfg          *config.Config
	AuditWriteDB *sql.DB
	AuditReadDB  *sql.DB
	WarehouseDB  *sql.DB
	Logger       *slog.Logger
}

// Services groups what the transport layers consume.
type Services struct {
	Gateway   *gateway.Service
	Audit     *audit.Service
	Templates *template.Engine
}

// App is the wired application. main() builds the router and HTTP server
// around it and owns the sweeper and limiter housekeeping lifecycles.
type App struct {
	Services Services

	Tokens  middleware.JWTValidator
	Checker *health.Checker
	Spec    *openapi3.T
	Sweeper *audit.Sweeper

	// MemoryLimiter is set when the memory rate-limit backend is active so
	// main() can schedule Sweep. Nil under the redis backend.
	MemoryLimiter *ratelimit.Memory
}

// New wires services from deps. It fails fast on anything that would leave
// a surface silently broken: an unreadable catalog, a bad template module,
// an unreachable identity provider or redis, or a misconfigured archive
// sink.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	// === Catalog and validation policy ===
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		cat = loaded
	}
	validator, err := gate.NewValidator(cfg.ValidatorPolicy, cat)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}
	roles := gate.NewResolver(cfg.RoleCapDefault, cfg.RoleCapAnalyst, cfg.RoleCapManager, cfg.RoleCapExecutive)

	// === Rate limiting ===
	var limiter domain.RateLimiter
	var memLimiter *ratelimit.Memory
	switch cfg.RateLimitBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimitRedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis rate-limit backend: %w", err)
		}
		limiter = ratelimit.NewRedis(client, cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitFailOpen)
	default:
		memLimiter = ratelimit.NewMemory(cfg.RateLimitMax, cfg.RateLimitWindow)
		limiter = memLimiter
	}

	// === Audit trail ===
	auditRepo := repository.NewAuditRecordRepo(deps.AuditWriteDB, deps.AuditReadDB)
	auditLog := audit.NewLogger(auditRepo, deps.Logger)
	auditSvc := audit.NewService(auditRepo)

	sink, err := archive.NewSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("build archive sink: %w", err)
	}
	sweeper := audit.NewSweeper(auditRepo, sink, cfg.AuditRetentionDays, deps.Logger)

	// === Warehouse dispatch ===
	var executor domain.WarehouseExecutor
	if deps.WarehouseDB != nil {
		executor = warehouse.NewMetered(
			warehouse.NewGovernor(warehouse.NewExecutor(deps.WarehouseDB), cfg.DispatchRPS, cfg.DispatchBurst),
			cfg.WarehouseBackend,
		)
	} else {
		deps.Logger.Warn("no warehouse configured, the execute surface will reject dispatches")
	}

	// === Pipeline ===
	gw := gateway.NewService(cat, limiter, validator, roles, auditLog, executor, deps.Logger, gateway.Options{
		Dialect:              gate.Dialect(cfg.Dialect()),
		SubmitMode:           gate.Mode(cfg.LimitModeSubmit),
		ExecuteMode:          gate.Mode(cfg.LimitModeExec),
		QueryTimeout:         cfg.QueryTimeout,
		RateLimitBeforeAuthz: cfg.RateLimitBeforeAuth,
		RLSEnforced:          cfg.WarehouseRLS,
	})

	// === Query templates ===
	templates, err := template.Default()
	if cfg.TemplatesPath != "" {
		templates, err = template.Load(cfg.TemplatesPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load query templates: %w", err)
	}

	// === API contract ===
	spec, err := openapi.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load API contract: %w", err)
	}

	// === Token validation ===
	tokens, err := newTokenValidator(ctx, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("build token validator: %w", err)
	}

	// === Health ===
	checker := health.NewChecker()
	auditDB := deps.AuditWriteDB
	checker.AddProbe("audit_db", func(ctx context.Context) error {
		return auditDB.PingContext(ctx)
	})
	if deps.WarehouseDB != nil {
		warehouseDB := deps.WarehouseDB
		checker.AddProbe("warehouse", func(ctx context.Context) error {
			return warehouseDB.PingContext(ctx)
		})
	}

	return &App{
		Services: Services{
			Gateway:   gw,
			Audit:     auditSvc,
			Templates: templates,
		},
		Tokens:        tokens,
		Checker:       checker,
		Spec:          spec,
		Sweeper:       sweeper,
		MemoryLimiter: memLimiter,
	}, nil
}

// newTokenValidator picks the validator for the deployment: a pinned JWKS
// endpoint when discovery is unavailable, OIDC discovery when an issuer is
// configured, HS256 for local development. With nothing configured the
// authenticated surfaces reject every request, as the config load warns.
func newTokenValidator(ctx context.Context, auth *config.AuthConfig) (middleware.JWTValidator, error) {
	var inner middleware.JWTValidator
	var err error
	switch {
	case auth.JWKSURL != "":
		inner, err = middleware.NewOIDCValidatorFromJWKS(ctx, auth.JWKSURL, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
	case auth.IssuerURL != "":
		inner, err = middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
	case auth.JWTSecret != "":
		inner, err = middleware.NewHS256Validator(auth.JWTSecret)
	default:
		inner = rejectAllValidator{}
	}
	if err != nil {
		return nil, err
	}
	return middleware.NewClaimMapper(inner, auth.NameClaim, auth.RoleClaim, auth.AdminRoles), nil
}

// rejectAllValidator stands in when neither an identity provider nor a
// shared secret is configured.
type rejectAllValidator struct{}

func (rejectAllValidator) Validate(context.Context, string) (*middleware.JWTClaims, error) {
	return nil, fmt.Errorf("no token validator configured")
}
