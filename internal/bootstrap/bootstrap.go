// Package bootstrap assembles the quote store and its collaborators from
// configuration. The service and the CLI share it so both see the same
// durable storage and remote.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/storage"
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// Options tune what New builds beyond the store itself.
type Options struct {
	// Metrics receives sync and store metrics. Optional.
	Metrics *telemetry.QuoteMetrics

	// Watch creates a Watcher when the file driver is configured with
	// storage.watch. The CLI leaves this off.
	Watch bool
}

// Components are the wired application parts.
type Components struct {
	Backend storage.Backend
	Store   *app.Store
	Remote  *acl.PostsClient
	Sync    *app.SyncEngine // nil when sync is disabled
	Service *app.QuoteService
	Watcher *storage.Watcher // nil unless requested and supported
}

// New opens storage, loads the store and wires the remote, sync engine and
// quote service. Close must be called to release storage.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Components, error) {
	backend, err := storage.Open(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	store := app.NewStore(backend, logger)

	if opts.Metrics != nil {
		metrics := opts.Metrics
		store.Subscribe(func(evt app.ChangeEvent) {
			metrics.ObserveStoreChange(string(evt.Reason), len(evt.Quotes))
		})
	}

	store.Load(ctx)

	clientCfg := &clients.Config{
		BaseURL:     cfg.Services.Remote.BaseURL,
		ServiceName: cfg.Services.Remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		UserAgent:   cfg.App.Name + "/" + cfg.App.Version,
		Logger:      logger,
	}

	if opts.Metrics != nil {
		metrics, downstream := opts.Metrics, cfg.Services.Remote.Name
		metrics.ObserveCircuitState(downstream, int(clients.StateClosed))
		clientCfg.OnCircuitChange = func(_, to clients.State) {
			metrics.ObserveCircuitState(downstream, int(to))
		}
	}

	httpClient, err := clients.New(clientCfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating HTTP client: %w", err), backend.Close())
	}

	remote := acl.NewPostsClient(acl.PostsClientConfig{
		Client: httpClient,
		Logger: logger,
	})

	c := &Components{
		Backend: backend,
		Store:   store,
		Remote:  remote,
	}

	if cfg.Sync.Enabled {
		var recorder ports.SyncRecorder
		if opts.Metrics != nil {
			recorder = opts.Metrics
		}

		c.Sync = app.NewSyncEngine(app.SyncEngineConfig{
			Store:    store,
			Source:   remote,
			Recorder: recorder,
			Config: app.SyncConfig{
				Interval: cfg.Sync.Interval,
				Timeout:  cfg.Sync.Timeout,
				Limit:    cfg.Sync.Limit,
			},
			Logger: logger,
		})
	}

	c.Service = app.NewQuoteService(app.QuoteServiceConfig{
		Store:  store,
		KV:     backend,
		Remote: remote,
		Sync:   c.Sync,
		Logger: logger,
	})

	if opts.Watch && cfg.Storage.Watch {
		if file, ok := backend.(*storage.File); ok {
			c.Watcher = storage.NewWatcher(file, store, logger, 0)
		}
	}

	return c, nil
}

// HealthCheckers returns the components that report readiness.
func (c *Components) HealthCheckers() []ports.HealthChecker {
	return []ports.HealthChecker{c.Backend, c.Store, c.Remote}
}

// Close waits for outstanding mirror requests and releases storage.
func (c *Components) Close() error {
	c.Service.Wait()

	if err := c.Backend.Close(); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}

	return nil
}
