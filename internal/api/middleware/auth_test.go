package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdesk/eventdesk/internal/api/middleware"
	"github.com/eventdesk/eventdesk/internal/auth"
)

func newTestVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.Config{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://accounts.eventdesk.app",
		Audience:   "eventdesk-api",
	})
	require.NoError(t, err)
	return v
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_RejectsBadHeaders(t *testing.T) {
	handler := middleware.Auth(newTestVerifier(t))(okHandler())

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing", "", "missing authorization header"},
		{"no bearer prefix", "token123", "invalid authorization header format"},
		{"basic auth", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"just bearer", "Bearer", "invalid authorization header format"},
		{"empty bearer", "Bearer   ", "missing bearer token"},
		{"garbage token", "Bearer invalid.jwt.token", "invalid access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me/pins", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.detail)
			assert.Contains(t, rec.Body.String(), "/v1/me/pins")
		})
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue("usr_123", -time.Minute*5)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.Auth(v)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token has expired")
}

func TestAuth_ValidTokenAnyBearerCase(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue("usr_testuser123", time.Hour)
	require.NoError(t, err)

	var captured string
	handler := middleware.Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			captured = ""
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "usr_testuser123", captured)
		})
	}
}

func TestGetUserID_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetUserID(req.Context()))
	assert.Equal(t, "usr_1", middleware.GetUserID(middleware.WithUserID(req.Context(), "usr_1")))
}
