package shopify

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound Shopify call.
const DefaultTimeout = 30 * time.Second

type options struct {
	httpClient *http.Client
	shopURL    func(shop string) string
}

type Option func(*options)

// WithHTTPClient replaces the default 30s-timeout client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithShopURL overrides how a shop domain maps to its base URL.
// Tests point this at an httptest server.
func WithShopURL(fn func(shop string) string) Option {
	return func(o *options) {
		o.shopURL = fn
	}
}

func newOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		shopURL: func(shop string) string {
			return "https://" + shop
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
