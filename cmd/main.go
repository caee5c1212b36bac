// cmd/main.go is the application entry point.
// It wires together all layers and runs them under the supervisor tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/Shivanand-hulikatti/campus-events/internal/database"
	"github.com/Shivanand-hulikatti/campus-events/internal/handler"
	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
	"github.com/Shivanand-hulikatti/campus-events/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("campus-events exited")
	}
}

func run() error {
	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stdout,
	})

	logging.Debug().
		Str("driver", cfg.Database.Driver).
		Dur("check_in_lead", cfg.Ledger.CheckInLead).
		Bool("rate_limit_disabled", cfg.Security.RateLimitDisabled).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 2. Store ─────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	opts := service.Options{
		CheckInLead:     cfg.Ledger.CheckInLead,
		DefaultPageSize: cfg.Ledger.DefaultPageSize,
		MaxPageSize:     cfg.Ledger.MaxPageSize,
	}
	h := handler.New(
		service.NewEntityStore(store, opts),
		service.NewInteractionLedger(store, opts),
		service.NewReportingEngine(store, opts),
		store,
	)
	router := handler.NewRouter(h, handler.RouterConfig{
		Shaping: handler.ShapingConfig{
			CORSOrigins:       cfg.Security.CORSOrigins,
			RateLimitRequests: cfg.Security.RateLimitReqs,
			RateLimitWindow:   cfg.Security.RateLimitWindow,
			RateLimitDisabled: cfg.Security.RateLimitDisabled,
		},
		Tenants:     handler.NewTenantResolver(cfg.Security.JWTSecret),
		AdminAPIKey: cfg.Security.AdminAPIKey,
	})
	if cfg.Security.JWTSecret == "" {
		logging.Warn().Msg("no jwt secret configured; trusting the X-College-ID header")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ── 4. Supervise until SIGINT or SIGTERM ─────────────────────────────
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddDataService(supervisor.NewStoreHealthService(store, 0))
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", srv.Addr).
		Str("driver", cfg.Database.Driver).
		Str("environment", cfg.Server.Environment).
		Msg("server listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("services did not stop in time")
	}
	logging.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	if cfg.Driver == "memory" {
		logging.Warn().Msg("using the in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), nil
	}

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ApplySchema {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return repository.NewPostgresStore(pool), nil
}
