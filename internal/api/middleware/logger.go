package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger middleware logs HTTP request details including method, path,
// status, latency, client IP, and correlation ID if present. Requests
// scoped to a bank connection or bank account also log that resource's
// path parameter, so an operator can grep one connection's or account's
// HTTP activity out of nexusd's log stream without cross-referencing IDs.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		correlationID := GetCorrelationID(c)

		requestLogger := logger
		if correlationID != "" {
			requestLogger = logger.With("correlation_id", correlationID)
		}
		if conn := c.Param("name"); conn != "" && strings.HasPrefix(c.FullPath(), "/bank-connections/") {
			requestLogger = requestLogger.With("bank_connection", conn)
		}
		if account := c.Param("account"); account != "" {
			requestLogger = requestLogger.With("bank_account_id", account)
		}

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		if raw != "" {
			path = path + "?" + raw
		}

		requestLogger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", statusCode,
			"latency", latency,
			"client_ip", clientIP,
			"user_agent", c.Request.UserAgent(),
		)
	}
}
