package middleware

import (
	"time"

	"flowtechs/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one access line per request. Query strings are left out since
// the OAuth callback carries codes in them.
func Logger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		log := logger.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case status >= 500:
			log.Error("Request failed")
		case status >= 400:
			log.Warn("Request rejected")
		default:
			log.Debug("Request served")
		}
	}
}
