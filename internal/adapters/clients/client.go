// Package clients is the resilient HTTP client used to reach the remote
// posts API. Every request passes a circuit breaker, is retried with
// jittered exponential backoff and carries trace and request IDs.
package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/quotekeeper/internal/adapters/clients"

	defaultTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// ServiceName names the downstream in logs, spans and metrics. Required.
	ServiceName string

	// Timeout bounds a single attempt. Retries and backoff come on top.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// UserAgent is sent on every request when set.
	UserAgent string

	Logger *slog.Logger

	// OnCircuitChange, when set, is told about every breaker transition
	// after it has been logged.
	OnCircuitChange func(from, to State)
}

// Client is an instrumented HTTP client bound to one downstream.
type Client struct {
	http        *http.Client
	baseURL     string
	serviceName string
	cfg         *Config
	logger      *slog.Logger
	cb          *CircuitBreaker

	tracer          trace.Tracer
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// New builds a Client. Zero Timeout and MaxAttempts fall back to 30s and a
// single attempt.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "clients.Client"),
		slog.String("downstream", cfg.ServiceName),
	)

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   cfg.Circuit.MaxFailures,
		Timeout:       cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	})
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	cb.OnStateChange(cfg.OnCircuitChange)

	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Duration of requests to a downstream, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	requestTotal, err := meter.Int64Counter("http.client.request.total",
		metric.WithDescription("Requests to a downstream by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	return &Client{
		http:            &http.Client{Timeout: cfg.Timeout, Transport: newTransport(cfg.Transport)},
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName:     cfg.ServiceName,
		cfg:             cfg,
		logger:          logger,
		cb:              cb,
		tracer:          otel.Tracer(instrumentationName),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// Get sends a GET to path under the base URL.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return c.Do(ctx, req)
}

// Post sends body as JSON to path under the base URL.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.Do(ctx, req)
}

// Do sends req through the breaker with retries. Connection errors and 5xx
// responses are retried; any other response, including 4xx, is returned
// to the caller and counts as a breaker success. Once attempts run out the
// error wraps ErrMaxRetriesExceeded. Bodies are replayed via req.GetBody,
// which Get and Post always set.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With(
		slog.String("downstream", c.serviceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if !c.cb.Allow() {
		c.recordMetrics(ctx, req.Method, 0, time.Since(start), "circuit_open")
		logger.WarnContext(ctx, "request blocked by circuit breaker")

		return nil, ErrCircuitOpen
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.serviceName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("peer.service", c.serviceName),
		),
	)
	defer span.End()

	c.injectHeaders(ctx, req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.attempt(ctx, req, logger)
	elapsed := time.Since(start)

	if err != nil {
		c.cb.RecordFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		result := "error"
		if ctx.Err() != nil {
			result = "context_canceled"
		}

		c.recordMetrics(ctx, req.Method, 0, elapsed, result)
		logger.ErrorContext(ctx, "request failed", slog.Duration("duration", elapsed), slog.Any("error", err))

		if ctx.Err() != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}

	c.cb.RecordSuccess()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, "HTTP "+resp.Status)
	}

	c.recordMetrics(ctx, req.Method, resp.StatusCode, elapsed, fmt.Sprintf("%dxx", resp.StatusCode/100))
	logger.DebugContext(ctx, "request completed", slog.Int("status", resp.StatusCode), slog.Duration("duration", elapsed))

	return resp, nil
}

// attempt runs up to MaxAttempts tries and returns the first final response.
func (c *Client) attempt(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for n := range c.cfg.Retry.MaxAttempts {
		if n > 0 {
			backoff := c.calculateBackoff(n)
			logger.DebugContext(ctx, "retrying request", slog.Int("attempt", n+1), slog.Duration("backoff", backoff))

			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		r, err := rewind(ctx, req, n)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(r)

		switch {
		case err != nil && !isRetryableError(err):
			return nil, err
		case err != nil:
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			discard(resp.Body)
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			return resp, nil
		}

		logger.DebugContext(ctx, "attempt failed", slog.Int("attempt", n+1), slog.Any("error", lastErr))
	}

	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// discard drains and closes a body so the connection can be reused.
func discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// rewind returns the request for attempt n, restoring its body after the first.
func rewind(ctx context.Context, req *http.Request, n int) (*http.Request, error) {
	out := req.WithContext(ctx)

	if n == 0 || req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}

	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed for retry")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}

	out.Body = body

	return out, nil
}

// CircuitState reports the breaker position.
func (c *Client) CircuitState() State {
	return c.cb.State()
}

func (c *Client) ServiceName() string {
	return c.serviceName
}

// injectHeaders copies request and correlation IDs from ctx and sets the
// fixed headers.
func (c *Client) injectHeaders(ctx context.Context, req *http.Request) {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	req.Header.Set("Accept", "application/json")
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

// calculateBackoff is InitialInterval * Multiplier^attempt, capped at
// MaxInterval, then jittered by up to ±JitterFactor.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	r := c.cfg.Retry

	backoff := math.Min(
		float64(r.InitialInterval)*math.Pow(r.Multiplier, float64(attempt)),
		float64(r.MaxInterval),
	)

	jitter := (rand.Float64()*2 - 1) * r.JitterFactor //nolint:gosec // jitter needs no crypto randomness

	return time.Duration(backoff * (1 + jitter))
}

func (c *Client) recordMetrics(ctx context.Context, method string, status int, elapsed time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", c.serviceName),
		attribute.String("result", result),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", status))
	}

	opt := metric.WithAttributes(attrs...)
	c.requestDuration.Record(ctx, elapsed.Seconds(), opt)
	c.requestTotal.Add(ctx, 1, opt)
}

// isRetryableError reports whether a transport error is worth another
// attempt: timeouts and connection-level failures, never cancellation.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

// newTransport clones the default transport with the configured pool,
// filling zero fields from the config defaults.
func newTransport(cfg config.TransportConfig) *http.Transport {
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = config.DefaultTransportMaxIdleConns
	}

	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = config.DefaultTransportMaxIdleConnsPerHost
	}

	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = config.DefaultTransportIdleConnTimeout
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = cfg.MaxIdleConns
	t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	t.IdleConnTimeout = cfg.IdleConnTimeout

	return t
}
