package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// CancelOnDrain cancels the request context once done is closed. It is
// meant for event streams, which otherwise hold shutdown open until the
// client leaves. A nil done disables it.
func CancelOnDrain(done <-chan struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		if done == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		go func() {
			select {
			case <-done:
				cancel()
			case <-ctx.Done():
			}
		}()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
