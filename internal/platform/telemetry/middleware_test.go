package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withRecorder installs an in-memory tracer provider for one test.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	return rec
}

func newTracedRouter() *gin.Engine {
	router := gin.New()
	router.Use(Middleware("quotekeeper-test")...)
	router.GET("/api/v1/quotes", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	return router
}

func TestMiddleware_APIRequestIsTraced(t *testing.T) {
	rec := withRecorder(t)
	router := newTracedRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quotes", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(HeaderTraceID), 32)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, w.Header().Get(HeaderTraceID), spans[0].SpanContext().TraceID().String())
}

func TestMiddleware_ProbesAreNotTraced(t *testing.T) {
	rec := withRecorder(t)
	router := newTracedRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderTraceID))
	assert.Empty(t, rec.Ended())
}

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}
