// Command server runs the query safety gateway: the public submit surface,
// the authenticated execute and audit surfaces, the operator console, and
// the retention sweeper, all on one listener.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"scoutgw/internal/api"
	"scoutgw/internal/app"
	"scoutgw/internal/config"
	internaldb "scoutgw/internal/db"
	"scoutgw/internal/metrics"
	"scoutgw/internal/middleware"
	"scoutgw/internal/ui"
	"scoutgw/internal/warehouse"
)

const shutdownGrace = 15 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	// Audit store: serialized write pool plus a concurrent read pool over
	// the same WAL file.
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.AuditDBPath, 4)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer writeDB.Close()
	defer readDB.Close()

	if err := internaldb.RunMigrations(writeDB); err != nil {
		return fmt.Errorf("migrate audit store: %w", err)
	}

	// Warehouse pool. Backend "none" leaves it nil and the execute surface
	// rejects dispatches while submit keeps working.
	var warehouseDB *sql.DB
	if cfg.WarehouseBackend != "none" {
		warehouseDB, err = warehouse.Open(cfg.WarehouseBackend, cfg.WarehouseDSN)
		if err != nil {
			return fmt.Errorf("open warehouse: %w", err)
		}
		defer warehouseDB.Close()
	}

	a, err := app.New(ctx, app.Deps{
		Cfg:          cfg,
		AuditWriteDB: writeDB,
		AuditReadDB:  readDB,
		WarehouseDB:  warehouseDB,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	// Operator console. Browser sessions carry the bearer token in a cookie
	// that the bridge copies onto the Authorization header.
	uiRouter := chi.NewRouter()
	uiRouter.Use(ui.CookieHeaderBridge)
	ui.MountRoutes(uiRouter,
		ui.NewHandler(a.Services.Gateway, a.Services.Audit, a.Services.Templates, cfg.IsProduction()),
		middleware.AuthenticatePage(a.Tokens, http.HandlerFunc(ui.RedirectToLogin)))

	router := api.NewRouter(api.RouterConfig{
		Handler:         api.NewHandler(a.Services.Gateway, a.Services.Audit, a.Services.Templates, logger),
		Auth:            middleware.Authenticate(a.Tokens),
		OptionalAuth:    middleware.AuthenticateOptional(a.Tokens),
		Health:          a.Checker,
		Spec:            a.Spec,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		ClientKeyHeader: cfg.ClientKeyHeader,
		Logger:          logger,
		UI:              uiRouter,
	})

	if cfg.AuditRetentionDays > 0 {
		if err := a.Sweeper.Start(cfg.AuditRetentionSchedule); err != nil {
			return fmt.Errorf("start retention sweeper: %w", err)
		}
		defer a.Sweeper.Stop()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gateway listening",
			"addr", cfg.ListenAddr,
			"warehouse", cfg.WarehouseBackend,
			"validator", cfg.ValidatorPolicy,
			"tls", cfg.TLSCertFile != "",
		)
		logger.Info("submit surface ready",
			"try", fmt.Sprintf("curl -d '{\"sql\":\"SELECT 1\"}' %s/v1/queries/submit",
				baseURLForListenAddr(cfg.ListenAddr, cfg.TLSCertFile != "")),
		)

		var err error
		if cfg.TLSCertFile != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Housekeeping: prune idle rate-limit windows and refresh pool gauges.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if a.MemoryLimiter != nil {
					a.MemoryLimiter.Sweep()
				}
				metrics.RecordAuditPoolStats(writeDB.Stats())
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Checker.SetDraining()
		logger.Info("shutting down", "grace", shutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	a.Checker.SetReady()

	return g.Wait()
}

// baseURLForListenAddr renders the listen address as a URL a developer can
// paste into curl. Wildcard and empty hosts bind every interface but are
// not dialable, so they render as localhost.
func baseURLForListenAddr(addr string, tls bool) string {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		switch host {
		case "", "0.0.0.0", "::":
			host = "localhost"
		}
		addr = net.JoinHostPort(host, port)
	}
	return scheme + "://" + addr
}
