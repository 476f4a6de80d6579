package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"saas-subscription-billing/internal/config"
	"saas-subscription-billing/internal/domain/model"
)

// ===== Session/JWT primitives =====

type AuthManager struct {
	secret       []byte
	cookieName   string
	cookieDomain string
	secureCookie bool
	ttl          time.Duration
}

func NewAuthManager(cfg config.AuthConfig) *AuthManager {
	return &AuthManager{
		secret:       []byte(cfg.JWTSecret),
		cookieName:   "session",
		cookieDomain: cfg.CookieDomain,
		secureCookie: cfg.SecureCookie,
		ttl:          cfg.SessionTTL,
	}
}

type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (a *AuthManager) Mint(w http.ResponseWriter, user *model.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: user.Email,
		Name:  user.Name,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   user.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    signed,
		Path:     "/",
		Domain:   a.cookieDomain,
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*SessionClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	// Cookie
	if c, err := r.Cookie(a.cookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ===== Request-scoped user =====

type userCtxKey struct{}

func userFromClaims(c *SessionClaims) *model.User {
	return &model.User{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Role:  model.UserRole(c.Role),
	}
}

// UserFromContext returns the authenticated user placed by the auth
// middleware, or nil on unauthenticated routes.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userCtxKey{}).(*model.User)
	return u
}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}
