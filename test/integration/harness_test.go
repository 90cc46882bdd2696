//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpadapter "github.com/jsamuelsen/quotekeeper/internal/adapters/http"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotekeeper/internal/bootstrap"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

const configDir = "../../configs"

type remotePost struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// fakeRemote serves a JSONPlaceholder-style posts API.
type fakeRemote struct {
	*httptest.Server

	mu       sync.Mutex
	titles   []string
	mirrored []string

	fetches  atomic.Int32
	failNext atomic.Int32
	delay    atomic.Int64
}

func newFakeRemote(t *testing.T, titles ...string) *fakeRemote {
	t.Helper()

	r := &fakeRemote{titles: titles}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Close)

	return r
}

func (r *fakeRemote) serve(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case req.Method == http.MethodGet && req.URL.Path == "/posts":
		r.fetches.Add(1)

		if d := time.Duration(r.delay.Load()); d > 0 {
			time.Sleep(d)
		}

		if r.failNext.Load() > 0 {
			r.failNext.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		r.mu.Lock()
		posts := make([]remotePost, len(r.titles))
		for i, title := range r.titles {
			posts[i] = remotePost{ID: i + 1, UserID: 1, Title: title, Body: "body"}
		}
		r.mu.Unlock()

		_ = json.NewEncoder(w).Encode(posts)

	case req.Method == http.MethodGet && strings.HasPrefix(req.URL.Path, "/posts/"):
		_ = json.NewEncoder(w).Encode(remotePost{ID: 1, UserID: 1, Title: "probe"})

	case req.Method == http.MethodPost && req.URL.Path == "/posts":
		var p remotePost
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		r.mu.Lock()
		r.mirrored = append(r.mirrored, p.Title)
		r.mu.Unlock()

		p.ID = 101
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (r *fakeRemote) mirroredTitles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.mirrored...)
}

// loadTestConfig loads the repository test profile and points the remote at
// baseURL.
func loadTestConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()

	cfg, err := config.LoadFrom(configDir, "test")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Services.Remote.BaseURL = baseURL
	cfg.Client.Retry = config.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
	}
	cfg.Client.CircuitBreaker.Timeout = 200 * time.Millisecond

	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// instance is a running in-process service.
type instance struct {
	*bootstrap.Components
	server *httptest.Server
}

// startApp wires cfg through bootstrap and serves the full router.
func startApp(t *testing.T, cfg *config.Config) *instance {
	t.Helper()

	logger := discardLogger()

	c, err := bootstrap.New(context.Background(), cfg, logger, bootstrap.Options{})
	require.NoError(t, err)

	registry := ports.NewHealthRegistry()
	for _, checker := range c.HealthCheckers() {
		require.NoError(t, registry.Register(checker))
	}

	srv := httpadapter.New(&cfg.Server, logger)
	httpadapter.SetupRouter(srv.Engine(), httpadapter.NewDefaultRouterConfig(
		logger,
		&cfg.App,
		handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "now")),
		handlers.NewQuoteHandler(c.Service),
	))

	ts := httptest.NewServer(srv.Engine())

	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, c.Close())
	})

	return &instance{Components: c, server: ts}
}

func (a *instance) request(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, a.server.URL+path, reader)
	require.NoError(t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}
