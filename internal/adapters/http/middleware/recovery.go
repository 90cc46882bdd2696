package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope and
// logs it with the stack. It must be first in the chain. The store lock is
// never held across a handler, so a recovered panic leaves quotes intact.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			// Later middleware replaced c.Request, so its context has the IDs.
			ctx := c.Request.Context()
			logger.ErrorContext(ctx, "panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("correlation_id", CorrelationIDFromContext(ctx)),
				slog.String("trace_id", dto.TraceID(c)),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			dto.Fail(c, dto.ErrorCodeInternal, "an internal error occurred", nil)
		}()

		c.Next()
	}
}
