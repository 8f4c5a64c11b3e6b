package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"flowtechs/internal/config"
	"flowtechs/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/supabase-community/gotrue-go"
)

const (
	AccessTokenCookie = "sb-access-token"
	BypassCookie      = "bypassAuth"

	userContextKey = "auth.user"
)

var ErrUnauthenticated = errors.New("authentication required")

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Resolver turns a session access token into the user it belongs to and
// can end that session.
type Resolver interface {
	ResolveUser(ctx context.Context, token string) (*User, error)
	SignOut(ctx context.Context, token string) error
}

// SupabaseResolver validates tokens against the Supabase auth server.
type SupabaseResolver struct {
	client gotrue.Client
}

func NewSupabaseResolver(supabaseURL, anonKey string) *SupabaseResolver {
	client := gotrue.New("", anonKey).WithCustomGoTrueURL(strings.TrimRight(supabaseURL, "/") + "/auth/v1")
	return &SupabaseResolver{client: client}
}

func (r *SupabaseResolver) ResolveUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := r.client.WithToken(token).GetUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return &User{ID: resp.ID.String(), Email: resp.Email}, nil
}

// SignOut revokes the session's refresh tokens on the auth server.
func (r *SupabaseResolver) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.client.WithToken(token).Logout(); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticator resolves the caller of a request. In development the
// bypassAuth cookie stands in for a session and maps to DevUserID.
type Authenticator struct {
	resolver Resolver
	config   *config.Config
	logger   *logger.Logger
}

func NewAuthenticator(resolver Resolver, cfg *config.Config, logger *logger.Logger) *Authenticator {
	return &Authenticator{resolver: resolver, config: cfg, logger: logger}
}

func (a *Authenticator) Authenticate(r *http.Request) (*User, error) {
	if a.config.IsDevelopment() {
		if cookie, err := r.Cookie(BypassCookie); err == nil && cookie.Value == "true" {
			return &User{ID: a.config.DevUserID, Email: "dev@localhost"}, nil
		}
	}
	return a.resolver.ResolveUser(r.Context(), TokenFromRequest(r))
}

// SignOut ends the request's session, if it carries one. The bypass cookie
// has no server-side session.
func (a *Authenticator) SignOut(r *http.Request) error {
	return a.resolver.SignOut(r.Context(), TokenFromRequest(r))
}

// RequireAuth rejects unauthenticated requests with 401.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.Authenticate(c.Request)
		if err != nil {
			a.logger.Debug("Rejected request to %s: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when one resolves and lets the request through either way.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := a.Authenticate(c.Request); err == nil {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

func UserFromContext(c *gin.Context) (*User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*User)
	return user, ok && user != nil
}

// SetUser is used by tests and by handlers that resolve the user themselves.
func SetUser(c *gin.Context, user *User) {
	c.Set(userContextKey, user)
}

// StaticResolver maps fixed tokens to users.
type StaticResolver map[string]*User

func (s StaticResolver) ResolveUser(_ context.Context, token string) (*User, error) {
	if user, ok := s[token]; ok {
		return user, nil
	}
	return nil, ErrUnauthenticated
}

// SignOut forgets the token.
func (s StaticResolver) SignOut(_ context.Context, token string) error {
	delete(s, token)
	return nil
}
