package handlers

import (
	"net/http"

	"flowtechs/internal/auth"

	"github.com/gin-gonic/gin"
)

func userFromContext(c *gin.Context) (*auth.User, bool) {
	return auth.UserFromContext(c)
}

// requireUser writes a 401 when no user is attached to the request.
func requireUser(c *gin.Context) (*auth.User, bool) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	return user, true
}
