package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	tokenIDKey   contextKey = "token_id"
)

// SessionLookup confirms that a token id has not been revoked.
type SessionLookup interface {
	Get(ctx context.Context, jti string) (*Session, error)
}

type Authenticator struct {
	Tokens     *TokenManager
	Sessions   SessionLookup
	CookieName string
	Logger     *logger.Logger
}

func NewAuthenticator(tokens *TokenManager, sessions SessionLookup, cookieName string, log *logger.Logger) *Authenticator {
	return &Authenticator{Tokens: tokens, Sessions: sessions, CookieName: cookieName, Logger: log}
}

func (a *Authenticator) authenticate(r *http.Request) (models.Principal, string, error) {
	raw, err := ExtractTokenFromRequest(r, a.CookieName)
	if err != nil {
		return models.Principal{}, "", err
	}
	claims, err := a.Tokens.Parse(raw)
	if err != nil {
		return models.Principal{}, "", err
	}
	if _, err := a.Sessions.Get(r.Context(), claims.ID); err != nil {
		return models.Principal{}, "", fmt.Errorf("session %s: %w", claims.ID, err)
	}
	p, err := claims.Principal()
	if err != nil {
		return models.Principal{}, "", err
	}
	return p, claims.ID, nil
}

// Middleware rejects requests without a valid, unrevoked token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, jti, err := a.authenticate(r)
		if err != nil {
			a.Logger.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", models.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p, jti)))
	})
}

// Optional attaches a principal when valid credentials are present and lets anonymous requests through.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, jti, err := a.authenticate(r); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p, jti))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows staff and principals holding role.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", models.ErrUnauthorized.Error())
				return
			}
			if !p.IsStaff && p.Role != role {
				utils.WriteError(w, http.StatusForbidden, "Forbidden", "only "+string(role)+"s can do this")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal, jti string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenIDKey, jti)
}

func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// TokenID returns the jti of the token that authenticated the request.
func TokenID(ctx context.Context) string {
	jti, _ := ctx.Value(tokenIDKey).(string)
	return jti
}

// IsUnauthorized reports whether err came from a missing or rejected credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionNotFound)
}
