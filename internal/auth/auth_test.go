package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScopes(t *testing.T) {
	writer := &Claims{Subject: "u", Scopes: map[string]struct{}{ScopeEntriesWrite: {}}}
	reader := &Claims{Subject: "u", Scopes: map[string]struct{}{ScopeEntriesRead: {}}}

	require.True(t, CanRead(writer))
	require.True(t, CanWrite(writer))
	require.True(t, CanRead(reader))
	require.False(t, CanWrite(reader))
	require.False(t, CanRead(&Claims{Subject: "u"}))
}

func TestMiddlewareLeavesPublicRoutesOpen(t *testing.T) {
	cfg := Config{Secret: "s3cret", Issuer: "ecotrack.test"}
	h := NewMiddleware(cfg).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusNoContent},
		{http.MethodGet, "/metrics", http.StatusNoContent},
		{http.MethodOptions, "/v1/entries", http.StatusNoContent},
		{http.MethodGet, "/v1/entries", http.StatusUnauthorized},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, tc.want, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestViewerCarriesSubjectAndEmail(t *testing.T) {
	require.Nil(t, Viewer(nil))

	v := Viewer(&Claims{Subject: "carol", Email: "carol@example.com", ExpiresAt: time.Now()})
	require.Equal(t, "carol", v.UserID)
	require.Equal(t, "carol@example.com", v.Email)
}
