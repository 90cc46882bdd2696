// Package middleware provides the Gin middleware in front of the quote API.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// Headers carrying request-scoped IDs. Both are echoed on the response and
// forwarded on outbound sync calls.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// Keys under which the IDs are stored in the gin.Context.
const (
	ContextKeyRequestID     = "request_id"
	ContextKeyCorrelationID = "correlation_id"
)

const maxIDLength = 128

// idKind is one request-scoped ID and how it is stored.
type idKind struct {
	header string
	ginKey string
	ctxKey ctxKey
	tag    func(context.Context, string) context.Context
}

type ctxKey struct{ name string }

var (
	requestIDKind = idKind{
		header: HeaderRequestID,
		ginKey: ContextKeyRequestID,
		ctxKey: ctxKey{"request_id"},
		tag:    logging.WithRequestID,
	}
	correlationIDKind = idKind{
		header: HeaderCorrelationID,
		ginKey: ContextKeyCorrelationID,
		ctxKey: ctxKey{"correlation_id"},
		tag:    logging.WithCorrelationID,
	}
)

// RequestID accepts the caller's X-Request-ID or generates a UUID, then
// exposes it on the gin.Context, the request context, the response header
// and the context logger.
func RequestID() gin.HandlerFunc {
	return requestIDKind.middleware()
}

// CorrelationID does for X-Correlation-ID what RequestID does for
// X-Request-ID. A caller-supplied value ties this request to a larger
// transaction; a generated one starts a new transaction here.
func CorrelationID() gin.HandlerFunc {
	return correlationIDKind.middleware()
}

func (k idKind) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(k.header)
		if !validID(id) {
			id = uuid.NewString()
		}

		c.Set(k.ginKey, id)
		c.Header(k.header, id)

		ctx := context.WithValue(c.Request.Context(), k.ctxKey, id)
		c.Request = c.Request.WithContext(k.tag(ctx, id))

		c.Next()
	}
}

// validID rejects empty, oversized or non-printable IDs so callers cannot
// inject arbitrary bytes into logs and response headers.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}

	return true
}

func (k idKind) fromGin(c *gin.Context) string {
	return c.GetString(k.ginKey)
}

func (k idKind) fromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(k.ctxKey).(string)

	return id
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string { return requestIDKind.fromGin(c) }

// GetCorrelationID returns the correlation ID set by CorrelationID, or "".
func GetCorrelationID(c *gin.Context) string { return correlationIDKind.fromGin(c) }

// RequestIDFromContext returns the request ID carried by ctx, or "".
// The remote client uses it to forward the ID.
func RequestIDFromContext(ctx context.Context) string { return requestIDKind.fromContext(ctx) }

// CorrelationIDFromContext returns the correlation ID carried by ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return correlationIDKind.fromContext(ctx)
}

// ContextWithRequestID returns ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKind.ctxKey, id)
}

// ContextWithCorrelationID returns ctx carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKind.ctxKey, id)
}
