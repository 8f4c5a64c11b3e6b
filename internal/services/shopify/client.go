package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"flowtechs/internal/logger"
)

// APIVersion is the Admin REST API version used for shop metadata.
const APIVersion = "2023-07"

var ErrShopInfo = errors.New("failed to fetch shop details")

// APIError carries a non-2xx Admin API response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is a 401/403 from the Admin API,
// meaning the access token was revoked or lacks scope.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

type Client struct {
	shopDomain  string
	accessToken string
	opts        options
	logger      *logger.Logger
}

func NewClient(shopDomain, accessToken string, logger *logger.Logger, opts ...Option) *Client {
	return newClient(shopDomain, accessToken, logger, newOptions(opts))
}

func newClient(shopDomain, accessToken string, logger *logger.Logger, opts options) *Client {
	return &Client{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		opts:        opts,
		logger:      logger,
	}
}

// GetShopInfo fetches shop information
func (c *Client) GetShopInfo(ctx context.Context) (*Shop, error) {
	url := fmt.Sprintf("%s/admin/api/%s/shop.json", c.opts.shopURL(c.shopDomain), APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShopInfo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("Shop info request for %s failed: %d", c.shopDomain, resp.StatusCode)
		return nil, fmt.Errorf("%w: %w", ErrShopInfo, &APIError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var shopResp struct {
		Shop Shop `json:"shop"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shopResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrShopInfo, err)
	}

	return &shopResp.Shop, nil
}
