package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/storage"
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleQuotes returns n distinct quotes spread over five categories.
func sampleQuotes(n int) []domain.Quote {
	quotes := make([]domain.Quote, n)
	for i := range quotes {
		quotes[i] = domain.Quote{
			Text:     fmt.Sprintf("Quote number %d", i),
			Category: fmt.Sprintf("Category %d", i%5),
		}
	}

	return quotes
}

// quoteAPI serves /api/v1 over a memory store seeded with n quotes.
func quoteAPI(b *testing.B, n int, mw ...gin.HandlerFunc) (*gin.Engine, *app.QuoteService) {
	b.Helper()

	kv := storage.NewMemory()

	doc, err := app.Export(sampleQuotes(n))
	if err != nil {
		b.Fatal(err)
	}

	if err := kv.Set(context.Background(), ports.KeyQuotes, string(doc)); err != nil {
		b.Fatal(err)
	}

	store := app.NewStore(kv, discardLogger())
	store.Load(context.Background())

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store:  store,
		KV:     kv,
		Logger: discardLogger(),
	})

	router := gin.New()
	router.Use(mw...)
	handlers.NewQuoteHandler(service).RegisterQuoteRoutes(router.Group("/api/v1"))

	return router, service
}

// BenchmarkListQuotes lists one of five categories at growing store sizes.
func BenchmarkListQuotes(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("quotes=%d", n), func(b *testing.B) {
			router, _ := quoteAPI(b, n)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes?category=Category%202", http.NoBody)

			b.ReportAllocs()

			for b.Loop() {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
			}
		})
	}
}

// BenchmarkAddQuote covers the duplicate scan and the full rewrite of the
// stored document on every add.
func BenchmarkAddQuote(b *testing.B) {
	router, _ := quoteAPI(b, 100)

	b.ReportAllocs()

	var i int
	for b.Loop() {
		i++
		body := fmt.Sprintf(`{"text":"bench %d","category":"Bench"}`, i)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
		}
	}
}

func BenchmarkProject(b *testing.B) {
	quotes := sampleQuotes(1000)

	b.ReportAllocs()

	for b.Loop() {
		_ = app.Project(quotes, "Category 3")
	}
}

// BenchmarkMerge folds a five-post sync batch into a thousand local quotes.
func BenchmarkMerge(b *testing.B) {
	local := sampleQuotes(1000)
	fetched := make([]domain.Quote, 5)

	for i := range fetched {
		fetched[i] = domain.Quote{Text: fmt.Sprintf("quote NUMBER %d", i*100), Category: domain.ServerCategory}
	}

	b.ReportAllocs()

	for b.Loop() {
		_ = app.Merge(local, fetched)
	}
}

func BenchmarkDecodeDocument(b *testing.B) {
	doc, err := app.Export(sampleQuotes(500))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()

	for b.Loop() {
		if _, err := app.DecodeDocument(doc); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLiveness measures the probe orchestrators hit every few seconds.
func BenchmarkLiveness(b *testing.B) {
	registry := ports.NewHealthRegistry()
	handler := handlers.NewHealthHandler(registry, handlers.NewBuildInfo("1.4.0", "9f2c1d7", "2026-10-01T08:00:00Z"))

	router := gin.New()
	handler.RegisterHealthRoutesOnEngine(router)

	req := httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkMiddlewareChain is BenchmarkListQuotes at ten quotes plus the
// request ID, recovery and access log middleware.
func BenchmarkMiddlewareChain(b *testing.B) {
	logger := discardLogger()
	router, _ := quoteAPI(b, 10,
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.Logging(logger),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
