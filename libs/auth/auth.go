// Package auth verifies HS256 bearer tokens and carries the claims through
// request contexts.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the HS256 secret and expected issuer.
type Config struct {
	Secret string
	Issuer string
}

// Claims is the verified identity of a caller.
type Claims struct {
	Subject   string
	Email     string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps every signature, issuer, expiry or shape failure.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// scopeList decodes the "scopes" claim, which identity providers send either
// as a space separated string or as an array.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		*s = strings.Fields(joined)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("scopes claim: %w", err)
	}
	*s = list
	return nil
}

type tokenClaims struct {
	Email  string    `json:"email,omitempty"`
	Scopes scopeList `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Parse validates an HS256 token against cfg and returns its claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(tc.Subject) == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	out := &Claims{
		Subject: tc.Subject,
		Email:   tc.Email,
		Scopes:  make(map[string]struct{}, len(tc.Scopes)),
	}
	for _, scope := range tc.Scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			out.Scopes[scope] = struct{}{}
		}
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

// HasScope reports whether the claim set includes scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

// Issue signs an HS256 token for subject. It exists for tests and local
// tooling; production tokens come from the identity provider.
func Issue(cfg Config, subject, email string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		Email:  email,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString([]byte(cfg.Secret))
}
