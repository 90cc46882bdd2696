package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/storage"
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/mocks"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupQuoteRouter serves a QuoteHandler over a memory-backed store seeded
// with quotes.
func setupQuoteRouter(t *testing.T, sync *app.SyncEngine, quotes ...domain.Quote) (*gin.Engine, *app.Store) {
	t.Helper()

	kv := storage.NewMemory()

	doc, err := app.Export(quotes)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), ports.KeyQuotes, string(doc)))

	store := app.NewStore(kv, discardLogger())
	store.Load(context.Background())

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store:  store,
		KV:     kv,
		Sync:   sync,
		Logger: discardLogger(),
	})

	handler := NewQuoteHandler(service)

	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterQuoteRoutes(api)
	handler.RegisterStreamRoutes(api)

	return router, store
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	router.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))

	return v
}

func qt(text, category string) domain.Quote {
	return domain.Quote{Text: text, Category: category}
}

func TestNewQuoteHandler(t *testing.T) {
	handler := NewQuoteHandler(app.NewQuoteService(app.QuoteServiceConfig{}))

	require.NotNil(t, handler)
}

func TestQuoteHandler_ListQuotes(t *testing.T) {
	router, _ := setupQuoteRouter(t, nil,
		qt("A", "One"), qt("B", "Two"), qt("C", "One"))

	tests := []struct {
		name          string
		path          string
		wantCategory  string
		wantPositions []int
	}{
		{name: "default is all", path: "/api/v1/quotes", wantCategory: "All", wantPositions: []int{0, 1, 2}},
		{name: "filtered keeps store positions", path: "/api/v1/quotes?category=One", wantCategory: "One", wantPositions: []int{0, 2}},
		{name: "unknown category is empty", path: "/api/v1/quotes?category=one", wantCategory: "one", wantPositions: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, w.Code)

			resp := decode[dto.ListResponse](t, w)
			assert.Equal(t, tt.wantCategory, resp.Category)

			got := make([]int, 0, len(resp.Quotes))
			for _, q := range resp.Quotes {
				got = append(got, q.Position)
			}

			assert.Equal(t, tt.wantPositions, got)
		})
	}
}

func TestQuoteHandler_AddQuote(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: `{"text":" New ","category":"Fresh"}`, wantStatus: http.StatusCreated},
		{name: "duplicate text", body: `{"text":"a","category":"Other"}`, wantStatus: http.StatusConflict, wantCode: dto.ErrorCodeConflict},
		{name: "blank text", body: `{"text":"  ","category":"Fresh"}`, wantStatus: http.StatusBadRequest, wantCode: dto.ErrorCodeValidation},
		{name: "malformed body", body: `{"text":`, wantStatus: http.StatusBadRequest, wantCode: dto.ErrorCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := setupQuoteRouter(t, nil, qt("A", "One"))

			w := do(router, http.MethodPost, "/api/v1/quotes", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[dto.ErrorResponse](t, w).Error.Code)
				assert.Len(t, store.All(), 1)

				return
			}

			assert.Equal(t, dto.QuoteResponse{Text: "New", Category: "Fresh"}, decode[dto.QuoteResponse](t, w))
			assert.Len(t, store.All(), 2)
		})
	}
}

func TestQuoteHandler_EditAndDelete(t *testing.T) {
	router, store := setupQuoteRouter(t, nil, qt("A", "One"), qt("B", "Two"))

	w := do(router, http.MethodPut, "/api/v1/quotes/1", `{"text":"B2","category":"Two"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.Quote{qt("A", "One"), qt("B2", "Two")}, store.All())

	w = do(router, http.MethodPut, "/api/v1/quotes/1", `{"text":"a","category":"Two"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodDelete, "/api/v1/quotes/0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.QuoteResponse{Text: "A", Category: "One"}, decode[dto.QuoteResponse](t, w))

	w = do(router, http.MethodDelete, "/api/v1/quotes/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodDelete, "/api/v1/quotes/first", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteHandler_EditSession(t *testing.T) {
	router, store := setupQuoteRouter(t, nil, qt("A", "One"), qt("B", "Two"))

	w := do(router, http.MethodPost, "/api/v1/quotes/0/edit", "")
	require.Equal(t, http.StatusOK, w.Code)

	session := decode[dto.EditSession](t, w)
	assert.Equal(t, 0, session.Position)
	assert.Equal(t, dto.QuoteRequest{Text: "A", Category: "One"}, session.Original)

	body, err := json.Marshal(dto.SaveEditRequest{Session: session, Text: "A2", Category: "One"})
	require.NoError(t, err)

	w = do(router, http.MethodPut, "/api/v1/edits", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, qt("A2", "One"), store.All()[0])

	w = do(router, http.MethodPut, "/api/v1/edits", string(body))
	assert.Equal(t, http.StatusNotFound, w.Code, "session is stale after the first save")
}

func TestQuoteHandler_Filter(t *testing.T) {
	router, _ := setupQuoteRouter(t, nil, qt("A", "One"), qt("B", "Two"))

	w := do(router, http.MethodGet, "/api/v1/filter", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "All", decode[app.View](t, w).Selected)

	w = do(router, http.MethodPut, "/api/v1/filter", `{"category":"Two"}`)
	require.Equal(t, http.StatusOK, w.Code)

	view := decode[app.View](t, w)
	assert.Equal(t, "Two", view.Selected)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Position)

	w = do(router, http.MethodGet, "/api/v1/filter", "")
	assert.Equal(t, "Two", decode[app.View](t, w).Selected, "selection persists")

	w = do(router, http.MethodGet, "/api/v1/categories", "")
	assert.Equal(t, []string{"All", "One", "Two"}, decode[[]string](t, w))
}

func TestQuoteHandler_RandomResetsFilter(t *testing.T) {
	router, _ := setupQuoteRouter(t, nil, qt("A", "One"))

	do(router, http.MethodPut, "/api/v1/filter", `{"category":"One"}`)

	w := do(router, http.MethodGet, "/api/v1/quotes/random", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.QuoteResponse{Text: "A", Category: "One"}, decode[dto.QuoteResponse](t, w))

	w = do(router, http.MethodGet, "/api/v1/filter", "")
	assert.Equal(t, "All", decode[app.View](t, w).Selected)
}

func TestQuoteHandler_RandomOnEmptyStore(t *testing.T) {
	router, _ := setupQuoteRouter(t, nil, []domain.Quote{}...)

	w := do(router, http.MethodGet, "/api/v1/quotes/random", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuoteHandler_ExportImport(t *testing.T) {
	router, store := setupQuoteRouter(t, nil, qt("Be yourself", "Wisdom"))

	w := do(router, http.MethodGet, "/api/v1/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="quotes.json"`, w.Header().Get("Content-Disposition"))
	assert.JSONEq(t, `[{"text":"Be yourself","category":"Wisdom"}]`, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/import",
		`[{"text":"be yourself","category":"wisdom"},{"text":"Be yourself","category":"Life"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, app.ImportResult{Added: 1, Skipped: 1}, decode[app.ImportResult](t, w))
	assert.Len(t, store.All(), 2)

	w = do(router, http.MethodPost, "/api/v1/import", `[{"text":"C","category":"X"},{"text":"D"}]`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, dto.ErrorCodeInvalidFormat, resp.Error.Code)
	assert.Equal(t, map[string]string{"index": "1"}, resp.Error.Details)
	assert.Len(t, store.All(), 2, "rejected document leaves the store untouched")
}

func TestQuoteHandler_Sync(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		router, _ := setupQuoteRouter(t, nil, qt("A", "One"))

		w := do(router, http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = do(router, http.MethodGet, "/api/v1/sync", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"enabled":false}`, w.Body.String())
	})

	t.Run("merges server quotes", func(t *testing.T) {
		source := mocks.NewMockRemoteQuoteSource(t)
		source.EXPECT().FetchQuotes(mock.Anything, app.DefaultSyncLimit).
			Return([]domain.Quote{qt("a", domain.ServerCategory)}, nil)

		kv := storage.NewMemory()
		store := app.NewStore(kv, discardLogger())
		store.Load(context.Background())

		engine := app.NewSyncEngine(app.SyncEngineConfig{Store: store, Source: source, Logger: discardLogger()})

		service := app.NewQuoteService(app.QuoteServiceConfig{Store: store, KV: kv, Sync: engine, Logger: discardLogger()})
		router := gin.New()
		NewQuoteHandler(service).RegisterQuoteRoutes(router.Group("/api/v1"))

		w := do(router, http.MethodPost, "/api/v1/sync", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, app.OutcomeSynced, decode[app.SyncResult](t, w).Outcome)

		w = do(router, http.MethodGet, "/api/v1/sync", "")
		require.Equal(t, http.StatusOK, w.Code)

		var status struct {
			Enabled bool          `json:"enabled"`
			State   app.SyncState `json:"state"`
			Cycles  int           `json:"cycles"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.True(t, status.Enabled)
		assert.Equal(t, app.SyncIdle, status.State)
		assert.Equal(t, 1, status.Cycles)
	})
}

func TestQuoteHandler_Events(t *testing.T) {
	router, _ := setupQuoteRouter(t, nil, qt("A", "One"))

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	nextEvent := func() (string, string) {
		var name string

		for lines.Scan() {
			line := lines.Text()

			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				return name, strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}

		return "", ""
	}

	name, data := nextEvent()
	require.Equal(t, "view", name)

	var view app.View
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, "All", view.Selected)

	w := do(router, http.MethodPost, "/api/v1/quotes", `{"text":"B","category":"Two"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	name, data = nextEvent()
	require.Equal(t, "change", name)

	var evt app.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, app.ReasonAdd, evt.Reason)
	assert.Equal(t, []domain.Quote{qt("A", "One"), qt("B", "Two")}, evt.Quotes)
}
