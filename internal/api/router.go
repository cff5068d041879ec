package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"scoutgw/internal/health"
	"scoutgw/internal/metrics"
	"scoutgw/internal/middleware"
	"scoutgw/internal/openapi"
)

// RouterConfig wires the HTTP surface. Auth gates the execute and audit
// routes; OptionalAuth lets submit callers raise their role cap with a
// token without requiring one.
type RouterConfig struct {
	Handler         *Handler
	Auth            func(http.Handler) http.Handler
	OptionalAuth    func(http.Handler) http.Handler
	Health          *health.Checker
	Spec            *openapi3.T
	AllowedOrigins  []string
	ClientKeyHeader string
	Logger          *slog.Logger
	UI              http.Handler
}

/// NewRouter builds the chi router: health and scrape endpoints, the API
// contract, the public query surface, and the authenticated surfaces.
func NewRouter(cfg RouterConfig) *chi.Mux {
	clientKeyHeader := cfg.ClientKeyHeader
	if clientKeyHeader == "" {
		clientKeyHeader = "X-Client-Id"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware)
	r.Use(requestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", clientKeyHeader, "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.ClientKey(clientKeyHeader))

	r.Get("/healthz", cfg.Health.LivenessHandler())
	r.Get("/readyz", cfg.Health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/openapi.json", openapi.SpecHandler(cfg.Spec))
	r.Get("/docs", openapi.DocsHandler())

	h := cfg.Handler
	r.Route("/v1", func(r chi.Router) {
		r.Get("/capabilities", h.Capabilities)
		r.Get("/templates", h.Templates)

		r.Group(func(r chi.Router) {
			if cfg.OptionalAuth != nil {
				r.Use(cfg.OptionalAuth)
			}
			r.Post("/queries/submit", h.Submit)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth)
			r.Post("/queries/execute", h.Execute)

			r.Route("/audit", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/records", h.ListAuditRecords)
				r.Get("/records/{executionID}", h.GetAuditRecord)
			})
		})
	})

	if cfg.UI != nil {
		r.Mount("/ui", cfg.UI)
	}

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.RequestIDFromContext(r.Context()),
			)
		})
	}
}
