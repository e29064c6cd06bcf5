package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// StructuredLoggingMiddleware provides structured logging with request
// latency and query parameters, and records the same data into the
// Prometheus collectors in metrics.go.
func StructuredLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Log request start with query parameters
		logger.Info("request started",
			"method", method,
			"path", path,
			"query_params", c.Request.URL.Query().Encode(),
			"remote_addr", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		// Process request
		c.Next()

		// Calculate latency
		latency := time.Since(start)
		statusCode := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())

		// Log request completion
		logger.Info("request completed",
			"method", method,
			"path", path,
			"status_code", statusCode,
			"latency_ms", latency.Milliseconds(),
			"latency", latency.String(),
			"bytes_written", c.Writer.Size(),
		)

		// Log errors if any
		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				logger.Error("request error",
					"method", method,
					"path", path,
					"error", err.Error(),
					"latency_ms", latency.Milliseconds(),
				)
			}
		}
	}
}

