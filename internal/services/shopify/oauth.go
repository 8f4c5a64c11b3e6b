package shopify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flowtechs/internal/config"
	"flowtechs/internal/logger"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

var (
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrNoAccessToken    = errors.New("no access token received")
	ErrInvalidSignature = errors.New("invalid callback signature")
	ErrExpiredCallback  = errors.New("callback timestamp outside the accepted window")
)

// MaxCallbackAge bounds how old a signed callback timestamp may be.
const MaxCallbackAge = time.Hour

type OAuthService struct {
	config *config.Config
	logger *logger.Logger
	app    goshopify.App
	opts   options
}

func NewOAuthService(cfg *config.Config, logger *logger.Logger, opts ...Option) *OAuthService {
	return &OAuthService{
		config: cfg,
		logger: logger,
		app: goshopify.App{
			ApiKey:      cfg.ShopifyAPIKey,
			ApiSecret:   cfg.ShopifyAPISecret,
			RedirectUrl: cfg.RedirectURI(),
			Scope:       cfg.ShopifyScopes,
		},
		opts: newOptions(opts),
	}
}

// GenerateAuthURL validates the shop and returns the authorization URL along
// with the state nonce embedded in it.
func (s *OAuthService) GenerateAuthURL(shop string) (string, string, error) {
	if err := ValidateShopDomain(shop); err != nil {
		return "", "", err
	}

	state, err := s.generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	authURL := fmt.Sprintf(
		"%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		s.opts.shopURL(shop),
		url.QueryEscape(s.config.ShopifyAPIKey),
		s.config.ShopifyScopes,
		url.QueryEscape(s.config.RedirectURI()),
		state,
	)

	return authURL, state, nil
}

// ExchangeCodeForToken exchanges the authorization code for an access token
func (s *OAuthService) ExchangeCodeForToken(ctx context.Context, shop, code string) (*TokenResponse, error) {
	tokenURL := s.opts.shopURL(shop) + "/admin/oauth/access_token"

	payload, err := json.Marshal(map[string]string{
		"client_id":     s.config.ShopifyAPIKey,
		"client_secret": s.config.ShopifyAPISecret,
		"code":          code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("Failed to exchange code for token for %s: %d - %s", shop, resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: status %d", ErrTokenExchange, resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrTokenExchange, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	return &tokenResp, nil
}

// VerifyCallback checks the hmac Shopify appends to the callback query string
// and that the signed timestamp is recent.
func (s *OAuthService) VerifyCallback(u *url.URL, now time.Time) error {
	q := u.Query()
	if q.Get("hmac") == "" {
		return ErrInvalidSignature
	}

	ok, err := s.app.VerifyAuthorizationURL(u)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	if err != nil {
		return ErrExpiredCallback
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > MaxCallbackAge || age < -MaxCallbackAge {
		return ErrExpiredCallback
	}
	return nil
}

// NewClient returns an Admin API client for the shop sharing this service's transport.
func (s *OAuthService) NewClient(shop, accessToken string) *Client {
	return newClient(shop, accessToken, s.logger, s.opts)
}

// generateState generates a cryptographically secure random state
func (s *OAuthService) generateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
