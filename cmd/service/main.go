// Command service runs the quotekeeper HTTP API together with the remote
// sync loop and the storage watcher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotekeeper/internal/bootstrap"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=... -X main.BuildTime=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, profile()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1) //nolint:gocritic // stop has nothing left to release
	}
}

// profile selects the configs/<profile>.yaml overlay.
func profile() string {
	if p := os.Getenv(config.EnvPrefix + "ENVIRONMENT"); p != "" {
		return p
	}

	return "local"
}

func run(ctx context.Context, profile string) error {
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("profile", profile),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Bool("sync_enabled", cfg.Sync.Enabled),
	)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer closeLogged(logger, "telemetry", func() error { return tel.Shutdown(context.WithoutCancel(ctx)) })

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := telemetry.NewQuoteMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	c, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Metrics: metrics, Watch: true})
	if err != nil {
		return err
	}

	defer closeLogged(logger, "components", c.Close)

	health := ports.NewHealthRegistry()
	for _, checker := range c.HealthCheckers() {
		if err := health.Register(checker); err != nil {
			return fmt.Errorf("registering %s health check: %w", checker.Name(), err)
		}
	}

	server := http.New(&cfg.Server, logger)

	routes := http.NewDefaultRouterConfig(
		logger,
		&cfg.App,
		handlers.NewHealthHandler(health, handlers.NewBuildInfo(Version, Commit, BuildTime), handlers.WithGatherer(registry)),
		handlers.NewQuoteHandler(c.Service),
	)
	routes.Draining = server.Draining()
	http.SetupRouter(server.Engine(), routes)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })

	if c.Sync != nil {
		g.Go(func() error { return c.Sync.Run(gctx) })
	}

	if c.Watcher != nil {
		g.Go(func() error { return c.Watcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	f := cfg.Log.File

	return logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    f.Enabled,
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		},
	})
}

func closeLogged(logger *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error("shutdown error", slog.String("component", what), slog.Any("error", err))
	}
}
