package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
)

// Timeout puts a deadline on the request context. Routes listed in
// overrides (by gin full path, e.g. "/api/v1/sync") get their own budget.
// A handler that gives up on the deadline without writing anything is
// answered with 503.
func Timeout(timeout time.Duration, overrides map[string]time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		budget := timeout
		if d, ok := overrides[c.FullPath()]; ok && d > 0 {
			budget = d
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), budget)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			abortWithCode(c, http.StatusServiceUnavailable, dto.ErrorCodeUnavailable, "request timed out")
		}
	}
}
