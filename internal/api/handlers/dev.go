package handlers

import (
	"net/http"

	"flowtechs/internal/auth"
	"flowtechs/internal/config"

	"github.com/gin-gonic/gin"
)

const bypassCookieMaxAge = 24 * 60 * 60

type DevHandler struct {
	config *config.Config
}

func NewDevHandler(cfg *config.Config) *DevHandler {
	return &DevHandler{config: cfg}
}

// BypassAuth sets the development auth bypass cookie and sends the browser to /sources.
func (h *DevHandler) BypassAuth(c *gin.Context) {
	if !h.config.IsDevelopment() {
		c.JSON(http.StatusForbidden, gin.H{"error": "This endpoint is only available in development mode"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.BypassCookie, "true", bypassCookieMaxAge, "/", "", false, true)
	c.Redirect(http.StatusFound, "/sources")
}
