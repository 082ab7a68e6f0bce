// Command factoringd serves the factoring engine over HTTP.
//
// It is a development daemon: the external collaborators (token ownership,
// payments, roles and the chain registry) are in-process fakes seeded from
// the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/api"
	"github.com/xraph/factoring/audit_hook"
	"github.com/xraph/factoring/clock"
	"github.com/xraph/factoring/observability"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/store/memory"
	"github.com/xraph/factoring/store/mongo"
	"github.com/xraph/factoring/store/postgres"
	"github.com/xraph/factoring/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("factoringd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(".env", ".env.local")
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	dev := newDevKit(cfg)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := factoring.New(s,
		factoring.WithLogger(logger),
		factoring.WithClock(wallClock()),
		factoring.WithAccess(dev.access),
		factoring.WithSignatures(dev.signatures),
		factoring.WithOwnership(dev.owners),
		factoring.WithPayments(dev.payments),
		factoring.WithChains(dev.chains),
		factoring.WithSweepInterval(cfg.SweepInterval),
		factoring.WithDefaultSettings(settings.Settings{
			MarketplaceFeeBps: cfg.MarketplaceFeeBps,
			PlatformAddress:   cfg.PlatformAddress,
			AggregatorEnabled: true,
			MaxSlippageBps:    cfg.MaxSlippageBps,
			LocalChainID:      cfg.LocalChainID,
		}),
		factoring.WithPlugin(dev.ownershipSync()),
		factoring.WithPlugin(audithook.New(slogRecorder(logger), audithook.WithLogger(logger))),
		factoring.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(registry))),
	)
	if err := engine.Start(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("start engine: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Mount("/", api.NewRouter(engine, logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("factoringd listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = engine.Stop()
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), engine.Stop())
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath)
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresDSN)
	case "mongo":
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return memory.New(), nil
	}
}

// wallClock reports Unix seconds as the logical clock.
func wallClock() clock.Clock {
	return clock.Func(func(context.Context) (uint64, error) {
		return uint64(time.Now().Unix()), nil
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogRecorder writes audit events to the log.
func slogRecorder(logger *slog.Logger) audithook.RecorderFunc {
	return func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("action", ev.Action),
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("category", ev.Category),
			slog.String("severity", ev.Severity),
			slog.String("outcome", ev.Outcome),
			slog.Any("metadata", ev.Metadata),
		)
		return nil
	}
}
