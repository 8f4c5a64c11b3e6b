package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"flowtechs/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns panics into a JSON 500. A client that hung up mid-response
// (common on the source stream) is not logged as a failure.
func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && isBrokenConnection(err) {
			c.Abort()
			return
		}

		log := logger.With("method", c.Request.Method, "path", c.Request.URL.Path)
		if gin.IsDebugging() {
			log.Error("[Recovery] panic recovered: %v\n%s", recovered, string(debug.Stack()))
		} else {
			log.Error("[Recovery] panic recovered: %v", recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func isBrokenConnection(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
