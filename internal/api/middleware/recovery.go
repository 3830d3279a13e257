package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// neutralInternalErrorBody is the fixed response body spec.md §7 mandates
// for internal errors ("any other failure is logged with stack context and
// surfaced as HTTP 500 with a neutral body"). The stack and correlation id
// go to the log only; the wire body carries nothing request-specific so a
// recovered panic never leaks internal detail to the EBICS-facing client.
var neutralInternalErrorBody = gin.H{
	"error": gin.H{
		"type":        "nexus-error",
		"description": "Internal server error",
	},
}

// Recovery middleware catches panics from an EBICS upload/download cycle or
// any handler, logs them with a stack trace and correlation id for
// operator tracing, and returns spec.md §7's neutral internal-error body.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				logger.Error("panic recovered",
					"error", r,
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"correlation_id", GetCorrelationID(c),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, neutralInternalErrorBody)
			}
		}()

		c.Next()
	}
}
