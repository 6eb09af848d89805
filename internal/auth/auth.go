// Package auth adapts the shared token library to the carbon API: the scopes
// it grants, the routes that stay public and the viewer a token identifies.
package auth

import (
	"context"
	"net/http"

	"example.com/ecotrack/internal/carbon"
	authlib "example.com/ecotrack/libs/auth"
)

type (
	Claims = authlib.Claims
	Config = authlib.Config
)

const (
	ScopeEntriesWrite = "entries:write"
	ScopeEntriesRead  = "entries:read"
)

var publicPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// NewMiddleware guards every route except health, metrics and CORS preflight.
func NewMiddleware(cfg Config) authlib.Middleware {
	return authlib.NewMiddleware(cfg, isPublic)
}

func isPublic(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	_, ok := publicPaths[r.URL.Path]
	return ok
}

// CanRead reports whether c may read entries. Write implies read.
func CanRead(c *Claims) bool {
	return c.HasScope(ScopeEntriesRead) || CanWrite(c)
}

func CanWrite(c *Claims) bool {
	return c.HasScope(ScopeEntriesWrite)
}

// Viewer describes the token holder for leaderboard labelling.
func Viewer(c *Claims) *carbon.Viewer {
	if c == nil {
		return nil
	}
	return &carbon.Viewer{UserID: c.Subject, Email: c.Email}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return authlib.WithClaims(ctx, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}
