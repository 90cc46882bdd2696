package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.LoadFrom(t.TempDir(), "")
	require.NoError(t, err)

	cfg.Storage.Driver = "memory"
	cfg.Storage.Path = ""

	// Mirrors fail fast instead of reaching the public API.
	cfg.Services.Remote.BaseURL = "http://127.0.0.1:1"
	cfg.Client.Retry.MaxAttempts = 1

	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_MemoryStoreIsSeeded(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.Enabled = false

	c, err := New(context.Background(), cfg, discardLogger(), Options{})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, c.Close()) })

	assert.Equal(t, []domain.Quote{domain.SeedQuote}, c.Store.All())
	assert.Nil(t, c.Sync)
	assert.Nil(t, c.Watcher, "memory driver cannot be watched")
	assert.Len(t, c.HealthCheckers(), 3)

	_, ok := c.Service.SyncStatus()
	assert.False(t, ok)
}

func TestNew_SyncAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.Enabled = true

	reg := prometheus.NewRegistry()

	metrics, err := telemetry.NewQuoteMetrics(reg)
	require.NoError(t, err)

	c, err := New(context.Background(), cfg, discardLogger(), Options{Metrics: metrics})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, c.Close()) })

	require.NotNil(t, c.Sync)
	assert.Equal(t, cfg.Sync.Interval, c.Sync.Interval())

	_, err = c.Service.RequestAdd(context.Background(), "Stay curious", "Wisdom")
	require.NoError(t, err)

	const want = `
# HELP quotekeeper_remote_circuit_state Remote circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE quotekeeper_remote_circuit_state gauge
quotekeeper_remote_circuit_state{downstream="remote-quotes"} 0
# HELP quotekeeper_store_changes_total Committed store changes by reason.
# TYPE quotekeeper_store_changes_total counter
quotekeeper_store_changes_total{reason="add"} 1
quotekeeper_store_changes_total{reason="load"} 1
# HELP quotekeeper_store_quotes Number of quotes currently held by the store.
# TYPE quotekeeper_store_quotes gauge
quotekeeper_store_quotes 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want),
		"quotekeeper_remote_circuit_state", "quotekeeper_store_changes_total", "quotekeeper_store_quotes"))
}

func TestNew_FileDriverWithWatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.Enabled = false
	cfg.Storage.Driver = "file"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "quotes.json")
	cfg.Storage.Watch = true

	c, err := New(context.Background(), cfg, discardLogger(), Options{Watch: true})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, c.Close()) })

	assert.NotNil(t, c.Watcher)

	noWatch, err := New(context.Background(), cfg, discardLogger(), Options{})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, noWatch.Close()) })

	assert.Nil(t, noWatch.Watcher)
	assert.Equal(t, c.Store.All(), noWatch.Store.All(), "both see the same file")
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "redis"

	_, err := New(context.Background(), cfg, discardLogger(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening storage")
}
