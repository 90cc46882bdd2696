package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// Logging writes an access log line per request: "request started" at
// trace level and "request completed" at a level chosen by status. Probe
// routes under /-/ are not logged.
//
// When logger is non-nil it is tagged with the request and correlation
// IDs and stored in the request context, so handlers and the remote client
// log with the same IDs.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/-/") {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if logger != nil {
			tagged := logger.With(
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("correlation_id", CorrelationIDFromContext(ctx)),
			)
			ctx = logging.WithContext(ctx, tagged)
			c.Request = c.Request.WithContext(ctx)
		}

		log := logging.FromContext(ctx)
		target := c.Request.URL.RequestURI()
		start := time.Now()

		log.Log(ctx, logging.LevelTrace, "request started",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		took := time.Since(start)
		status := c.Writer.Status()

		log.Log(ctx, accessLevel(status), "request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", took),
			slog.Int64("latency_ms", took.Milliseconds()),
			slog.Int("bytes", c.Writer.Size()),
		)
	}
}

// accessLevel logs client errors as warnings and server errors as errors.
func accessLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
