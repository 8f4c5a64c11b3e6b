package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"flowtechs/internal/config"
	"flowtechs/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(env string) *gin.Engine {
	cfg := &config.Config{Env: env, DevUserID: "dev-user"}
	a := NewAuthenticator(StaticResolver{"good": {ID: "u1", Email: "a@example.com"}}, cfg, logger.NewNop())

	r := gin.New()
	whoami := func(c *gin.Context) {
		user, ok := UserFromContext(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, user.ID)
	}
	r.GET("/private", a.RequireAuth(), whoami)
	r.GET("/public", a.OptionalAuth(), whoami)
	return r
}

func do(r http.Handler, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newTestRouter("production")

	w := do(r, "/private", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	w = do(r, "/private", func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	w = do(r, "/private", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})
	})
	assert.Equal(t, "u1", w.Body.String())

	w = do(r, "/private", func(req *http.Request) { req.Header.Set("Authorization", "Bearer bad") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBypassCookieOnlyInDevelopment(t *testing.T) {
	bypass := func(req *http.Request) { req.AddCookie(&http.Cookie{Name: BypassCookie, Value: "true"}) }

	w := do(newTestRouter("development"), "/private", bypass)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev-user", w.Body.String())

	w = do(newTestRouter("production"), "/private", bypass)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	r := newTestRouter("production")

	assert.Equal(t, "anonymous", do(r, "/public", nil).Body.String())
	assert.Equal(t, "u1", do(r, "/public", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer good")
	}).Body.String())
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(req))
}

func TestSignOut(t *testing.T) {
	resolver := StaticResolver{"good": {ID: "u1"}}
	a := NewAuthenticator(resolver, &config.Config{Env: "test"}, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})
	require.NoError(t, a.SignOut(req))

	_, err := a.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, a.SignOut(httptest.NewRequest(http.MethodPost, "/logout", nil)))
}
