package handlers

import (
	"net/http"

	"flowtechs/internal/auth"
	"flowtechs/internal/config"
	"flowtechs/internal/logger"

	"github.com/gin-gonic/gin"
)

const loginPath = "/auth/login"

type AuthHandler struct {
	auth   *auth.Authenticator
	config *config.Config
	logger *logger.Logger
}

func NewAuthHandler(authenticator *auth.Authenticator, cfg *config.Config, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: authenticator, config: cfg, logger: logger}
}

// Logout signs the session out and clears the auth cookies. The cookies are
// cleared and the browser redirected even when the auth server call fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.SignOut(c.Request); err != nil {
		h.logger.Warn("Failed to sign out session: %v", err)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.AccessTokenCookie, "", -1, "/", "", h.config.IsProduction(), true)
	c.SetCookie(auth.BypassCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, loginPath)
}
