package shopify

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"flowtechs/internal/config"
	"flowtechs/internal/logger"
	"flowtechs/internal/services/shopify/shopifytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppURL:           "http://localhost:3000",
		ShopifyAPIKey:    "test-key",
		ShopifyAPISecret: "test-secret",
		ShopifyScopes:    "read_products,read_orders",
	}
}

func newTestService(t *testing.T) (*OAuthService, *shopifytest.Server) {
	t.Helper()
	srv := shopifytest.NewServer()
	t.Cleanup(srv.Close)
	svc := NewOAuthService(testConfig(), logger.NewNop(), WithShopURL(srv.ShopURL))
	return svc, srv
}

func TestGenerateAuthURL(t *testing.T) {
	svc := NewOAuthService(testConfig(), logger.NewNop())

	authURL, state, err := svc.GenerateAuthURL("test-store.myshopify.com")
	require.NoError(t, err)
	assert.Len(t, state, 32)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "test-store.myshopify.com", u.Host)
	assert.Equal(t, "/admin/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "test-key", q.Get("client_id"))
	assert.Equal(t, "read_products,read_orders", q.Get("scope"))
	assert.Equal(t, "http://localhost:3000/api/shopify/callback", q.Get("redirect_uri"))
	assert.Equal(t, state, q.Get("state"))
}

func TestGenerateAuthURL_UniqueState(t *testing.T) {
	svc := NewOAuthService(testConfig(), logger.NewNop())
	_, a, err := svc.GenerateAuthURL("a.myshopify.com")
	require.NoError(t, err)
	_, b, err := svc.GenerateAuthURL("a.myshopify.com")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerateAuthURL_RejectsInvalidShop(t *testing.T) {
	svc := NewOAuthService(testConfig(), logger.NewNop())

	_, _, err := svc.GenerateAuthURL("")
	assert.ErrorIs(t, err, ErrMissingShop)

	_, _, err = svc.GenerateAuthURL("evil.com")
	assert.ErrorIs(t, err, ErrInvalidShopDomain)
}

func TestExchangeCodeForToken(t *testing.T) {
	svc, srv := newTestService(t)

	tok, err := svc.ExchangeCodeForToken(context.Background(), "test-store.myshopify.com", "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "shpat_test_token", tok.AccessToken)
	assert.Equal(t, "auth-code", srv.LastTokenCode)
}

func TestExchangeCodeForToken_Non2xx(t *testing.T) {
	svc, srv := newTestService(t)
	srv.TokenStatus = http.StatusBadRequest

	_, err := svc.ExchangeCodeForToken(context.Background(), "test-store.myshopify.com", "bad")
	assert.ErrorIs(t, err, ErrTokenExchange)
}

func TestExchangeCodeForToken_EmptyToken(t *testing.T) {
	svc, srv := newTestService(t)
	srv.AccessToken = ""

	_, err := svc.ExchangeCodeForToken(context.Background(), "test-store.myshopify.com", "code")
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestExchangeCodeForToken_HonoursContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ExchangeCodeForToken(ctx, "test-store.myshopify.com", "code")
	assert.ErrorIs(t, err, ErrTokenExchange)
}

func callbackURL(params url.Values) *url.URL {
	return &url.URL{Path: "/api/shopify/callback", RawQuery: params.Encode()}
}

func TestVerifyCallback(t *testing.T) {
	svc := NewOAuthService(testConfig(), logger.NewNop())
	now := time.Now()

	params := url.Values{
		"shop":      {"test-store.myshopify.com"},
		"code":      {"abc"},
		"state":     {"nonce"},
		"timestamp": {strconv.FormatInt(now.Unix(), 10)},
	}
	signed := shopifytest.Sign(params, "test-secret")

	assert.NoError(t, svc.VerifyCallback(callbackURL(signed), now))
}

func TestVerifyCallback_Rejects(t *testing.T) {
	svc := NewOAuthService(testConfig(), logger.NewNop())
	now := time.Now()
	base := url.Values{
		"shop":      {"test-store.myshopify.com"},
		"code":      {"abc"},
		"timestamp": {strconv.FormatInt(now.Unix(), 10)},
	}

	t.Run("missing hmac", func(t *testing.T) {
		assert.ErrorIs(t, svc.VerifyCallback(callbackURL(base), now), ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed := shopifytest.Sign(base, "other-secret")
		assert.ErrorIs(t, svc.VerifyCallback(callbackURL(signed), now), ErrInvalidSignature)
	})

	t.Run("tampered parameter", func(t *testing.T) {
		signed := shopifytest.Sign(base, "test-secret")
		signed.Set("shop", "evil.myshopify.com")
		assert.ErrorIs(t, svc.VerifyCallback(callbackURL(signed), now), ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := url.Values{}
		for k, v := range base {
			old[k] = v
		}
		old.Set("timestamp", strconv.FormatInt(now.Add(-2*MaxCallbackAge).Unix(), 10))
		signed := shopifytest.Sign(old, "test-secret")
		assert.ErrorIs(t, svc.VerifyCallback(callbackURL(signed), now), ErrExpiredCallback)
	})
}

func TestOAuthService_NewClientSharesTransport(t *testing.T) {
	svc, srv := newTestService(t)

	shop, err := svc.NewClient("test-store.myshopify.com", "tok").GetShopInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test Store", shop.Name)
	assert.Equal(t, "tok", srv.LastShopHeader)
	assert.True(t, strings.HasPrefix(srv.URL, "http://"))
}
