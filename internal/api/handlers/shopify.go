package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"flowtechs/internal/config"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/models"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
	"flowtechs/internal/services/sources"

	"github.com/gin-gonic/gin"
)

const (
	StateCookie             = "shopify_oauth_state"
	ConnectionSuccessCookie = "shopify_connection_success"
	ConnectionDetailsCookie = "shopify_connection_details"

	stateCookieMaxAge      = 10 * 60
	connectionCookieMaxAge = 5 * 60
)

const (
	msgMissingShop = "Missing shop parameter"
	msgInvalidShop = "Invalid shop URL format. Must be a .myshopify.com domain"
)

type ShopifyHandler struct {
	sources *sources.Service
	oauth   *shopify.OAuthService
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewShopifyHandler(sourceService *sources.Service, oauth *shopify.OAuthService, cfg *config.Config, logger *logger.Logger, m *metrics.Metrics) *ShopifyHandler {
	return &ShopifyHandler{
		sources: sourceService,
		oauth:   oauth,
		config:  cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Auth starts the OAuth flow: it sets the state cookie and redirects to Shopify.
func (h *ShopifyHandler) Auth(c *gin.Context) {
	shop := c.Query("shop")

	authURL, state, err := h.oauth.GenerateAuthURL(shop)
	if err != nil {
		switch {
		case errors.Is(err, shopify.ErrMissingShop):
			h.metrics.OAuthInitiations.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingShop})
		case errors.Is(err, shopify.ErrInvalidShopDomain):
			h.metrics.OAuthInitiations.WithLabelValues("rejected").Inc()
			h.logger.Warn("Invalid shop URL format: %s", shop)
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidShop})
		default:
			h.metrics.OAuthInitiations.WithLabelValues("error").Inc()
			h.logger.Error("Failed to generate auth URL: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authorization URL"})
		}
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(StateCookie, state, stateCookieMaxAge, "/", "", h.config.IsProduction(), true)

	h.metrics.OAuthInitiations.WithLabelValues("redirected").Inc()
	h.logger.Info("Redirecting %s to Shopify authorization", shop)
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the OAuth flow. Every failure redirects back to the add
// page with a readable error; nothing is written unless all checks pass.
func (h *ShopifyHandler) Callback(c *gin.Context) {
	shop := c.Query("shop")
	code := c.Query("code")

	if shop == "" || code == "" {
		h.fail(c, shop, &sources.ConnectError{Code: sources.CodeMissingParams})
		return
	}

	expectedState, _ := c.Cookie(StateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(StateCookie, "", -1, "/", "", h.config.IsProduction(), true)

	if err := h.oauth.VerifyCallback(c.Request.URL, h.now()); err != nil {
		h.fail(c, shop, &sources.ConnectError{Code: sources.CodeInvalidSignature, Err: err})
		return
	}
	state := c.Query("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		h.fail(c, shop, &sources.ConnectError{Code: sources.CodeInvalidState})
		return
	}

	var userID string
	if user, ok := userFromContext(c); ok {
		userID = user.ID
	}

	result, err := h.sources.CompleteOAuth(c.Request.Context(), sources.OAuthCallback{
		Shop:   shop,
		Code:   code,
		UserID: userID,
	})
	if err != nil {
		h.fail(c, shop, err)
		return
	}

	details, err := json.Marshal(models.ConnectionDetails{
		ShopName:  result.Source.Name,
		Shop:      shop,
		SourceID:  result.Source.ID,
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		h.fail(c, shop, &sources.ConnectError{Code: sources.CodeUnexpected, Err: err})
		return
	}

	c.SetCookie(ConnectionSuccessCookie, "true", connectionCookieMaxAge, "/", "", h.config.IsProduction(), true)
	c.SetCookie(ConnectionDetailsCookie, string(details), connectionCookieMaxAge, "/", "", h.config.IsProduction(), true)

	h.metrics.OAuthCallbacks.WithLabelValues("success").Inc()
	c.Redirect(http.StatusFound, fmt.Sprintf("/sources?shopify=success&new=%t&shop=%s", result.Created, url.QueryEscape(shop)))
}

func (h *ShopifyHandler) fail(c *gin.Context, shop string, err error) {
	code := sources.CodeOf(err)
	h.metrics.OAuthCallbacks.WithLabelValues(string(code)).Inc()
	h.logger.Error("Shopify callback for %q failed: %v", shop, err)

	location := "/sources/add?status=error&error=" + url.QueryEscape(code.Message())
	if code != sources.CodeMissingParams {
		location += "&shop=" + url.QueryEscape(shop)
	}
	c.Redirect(http.StatusFound, location)
}

type connectRequest struct {
	Shop             string `json:"shop"`
	ConfirmReconnect bool   `json:"confirmReconnect"`
}

// Connect backs the connect form: it normalizes the shop, reports an existing
// source for confirmation, and otherwise returns the auth redirect.
func (h *ShopifyHandler) Connect(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.sources.PrepareConnect(c.Request.Context(), user.ID, req.Shop, req.ConfirmReconnect)
	if err != nil {
		switch {
		case errors.Is(err, shopify.ErrMissingShop):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingShop})
		case errors.Is(err, shopify.ErrInvalidShopDomain):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidShop})
		default:
			h.logger.Error("Failed to check existing sources: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing sources"})
		}
		return
	}

	if intent.NeedsConfirmation {
		c.JSON(http.StatusConflict, gin.H{
			"status": "duplicate",
			"shop":   intent.Shop,
			"source": intent.Existing,
		})
		return
	}

	c.JSON(http.StatusOK, intent)
}

type updateCredentialsRequest struct {
	SourceID    string                 `json:"sourceId"`
	Credentials map[string]interface{} `json:"credentials"`
}

// UpdateCredentials replaces the credentials of one of the caller's Shopify sources.
func (h *ShopifyHandler) UpdateCredentials(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req updateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SourceID == "" || len(req.Credentials) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	err := h.sources.UpdateShopifyCredentials(c.Request.Context(), user.ID, req.SourceID, req.Credentials)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found or access denied"})
	case errors.Is(err, sources.ErrNotShopify):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a Shopify source"})
	case errors.Is(err, shopify.ErrInvalidShopDomain):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidShop})
	case errors.Is(err, repository.ErrDuplicateShop):
		c.JSON(http.StatusConflict, gin.H{"error": "A source for this shop already exists"})
	default:
		h.logger.Error("Failed to update source %s: %v", req.SourceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
	}
}
