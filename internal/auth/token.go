package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qr-entry/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "qr-entry"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of a session token. Subject holds the account id.
type Claims struct {
	Role  models.Role `json:"role"`
	Staff bool        `json:"staff"`
	Name  string      `json:"name"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() (models.Principal, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return models.Principal{AccountID: id, Username: c.Name, Role: c.Role, IsStaff: c.Staff}, nil
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for account. The returned claims carry the jti used as the session key.
func (m *TokenManager) Issue(account *models.Account) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		Role:  account.Role(),
		Staff: account.IsStaff,
		Name:  account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(account.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature, algorithm, issuer and expiry of raw.
func (m *TokenManager) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// ExtractTokenFromRequest reads a Bearer token, falling back to the session cookie.
func ExtractTokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.New("authorization header format must be 'Bearer {token}'")
		}
		return parts[1], nil
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.New("no credentials supplied")
}
