package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/eventdesk/eventdesk/internal/calendar"
)

type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	lastForm map[string]string
	reject   bool
}

func (ts *tokenServer) form(key string) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastForm[key]
}

func (ts *tokenServer) setReject(v bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.reject = v
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		ts.mu.Lock()
		defer ts.mu.Unlock()
		ts.lastForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"code":          r.PostForm.Get("code"),
			"refresh_token": r.PostForm.Get("refresh_token"),
			"redirect_uri":  r.PostForm.Get("redirect_uri"),
		}

		w.Header().Set("Content-Type", "application/json")
		if ts.reject {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + r.PostForm.Get("grant_type"),
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"email":         "planner@example.com",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestSession(ts *tokenServer, repo calendar.ConnectionRepository) *Session {
	return NewSession(SessionConfig{
		Source: calendar.SourceGoogle,
		OAuth: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "https://app.example.com/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   ts.URL + "/auth",
				TokenURL:  ts.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		Connections: repo,
		Logger:      zerolog.Nop(),
	})
}

func TestSession_SignInPersistsToken(t *testing.T) {
	ts := newTokenServer(t)
	repo := calendar.NewInMemoryConnectionRepository()
	s := newTestSession(ts, repo)
	ctx := context.Background()

	assert.False(t, s.IsAuthenticated(ctx))

	ok, err := s.SignIn(ctx, calendar.Grant{Code: "code-1", RedirectURL: "eventdesk://oauth"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.IsAuthenticated(ctx))
	assert.Equal(t, "code-1", ts.form("code"))
	assert.Equal(t, "eventdesk://oauth", ts.form("redirect_uri"))

	conn, err := repo.GetByProvider(ctx, calendar.SourceGoogle)
	require.NoError(t, err)
	assert.True(t, conn.IsConnected)
	assert.Equal(t, "access-authorization_code", conn.AccessToken)
	assert.Equal(t, "refresh-1", conn.RefreshToken)
	assert.Equal(t, "planner@example.com", conn.Email)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-authorization_code", tok.AccessToken)
}

func TestSession_SignInCancelled(t *testing.T) {
	ts := newTokenServer(t)
	s := newTestSession(ts, calendar.NewInMemoryConnectionRepository())

	ok, err := s.SignIn(context.Background(), calendar.Grant{})

	assert.False(t, ok)
	assert.ErrorIs(t, err, calendar.ErrSignInCancelled)
	assert.Empty(t, ts.form("code"))
}

func TestSession_SignInRejected(t *testing.T) {
	ts := newTokenServer(t)
	ts.setReject(true)
	s := newTestSession(ts, calendar.NewInMemoryConnectionRepository())

	ok, err := s.SignIn(context.Background(), calendar.Grant{Code: "bad"})

	assert.False(t, ok)
	require.Error(t, err)
	assert.NotErrorIs(t, err, calendar.ErrSignInCancelled)
}

func TestSession_LoadAndExpiry(t *testing.T) {
	ts := newTokenServer(t)
	repo := calendar.NewInMemoryConnectionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &calendar.CalendarConnection{
		ID:           "conn-1",
		Provider:     calendar.SourceGoogle,
		IsConnected:  true,
		AccessToken:  "stored",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	s := newTestSession(ts, repo)
	require.NoError(t, s.Load(ctx))

	assert.False(t, s.IsAuthenticated(ctx), "expired token must not authenticate")
	_, err := s.Token()
	assert.ErrorIs(t, err, calendar.ErrNotAuthenticated)

	ok, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refresh_token", ts.form("grant_type"))
	assert.Equal(t, "refresh-0", ts.form("refresh_token"))
	assert.True(t, s.IsAuthenticated(ctx))

	conn, err := repo.GetByProvider(ctx, calendar.SourceGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", conn.AccessToken)
}

func TestSession_LoadExpiredConnectionKeepsRefreshToken(t *testing.T) {
	ts := newTokenServer(t)
	repo := calendar.NewInMemoryConnectionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &calendar.CalendarConnection{
		ID:           "conn-1",
		Provider:     calendar.SourceGoogle,
		IsConnected:  false,
		AccessToken:  "stale",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	s := newTestSession(ts, repo)
	require.NoError(t, s.Load(ctx))
	assert.False(t, s.IsAuthenticated(ctx))

	ok, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refresh-0", ts.form("refresh_token"))
	assert.True(t, s.IsAuthenticated(ctx))

	conn, err := repo.GetByProvider(ctx, calendar.SourceGoogle)
	require.NoError(t, err)
	assert.True(t, conn.IsConnected)
	assert.Equal(t, "access-refresh_token", conn.AccessToken)
}

func TestSession_LoadWithoutTokens(t *testing.T) {
	repo := calendar.NewInMemoryConnectionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &calendar.CalendarConnection{
		ID:       "conn-1",
		Provider: calendar.SourceGoogle,
	}))

	s := newTestSession(newTokenServer(t), repo)
	require.NoError(t, s.Load(ctx))

	_, err := s.RefreshToken(ctx)
	assert.ErrorIs(t, err, calendar.ErrNotAuthenticated)
}

func TestSession_RefreshRejectedEndsSession(t *testing.T) {
	ts := newTokenServer(t)
	repo := calendar.NewInMemoryConnectionRepository()
	s := newTestSession(ts, repo)
	ctx := context.Background()

	_, err := s.SignIn(ctx, calendar.Grant{Code: "code-1"})
	require.NoError(t, err)

	ts.setReject(true)
	ok, err := s.RefreshToken(ctx)

	assert.False(t, ok)
	assert.ErrorIs(t, err, calendar.ErrTokenExpired)
	assert.False(t, s.IsAuthenticated(ctx))
}

func TestSession_RefreshWithoutToken(t *testing.T) {
	s := newTestSession(newTokenServer(t), calendar.NewInMemoryConnectionRepository())

	_, err := s.RefreshToken(context.Background())
	assert.ErrorIs(t, err, calendar.ErrNotAuthenticated)
}

func TestSession_SignOut(t *testing.T) {
	ts := newTokenServer(t)
	repo := calendar.NewInMemoryConnectionRepository()
	s := newTestSession(ts, repo)
	ctx := context.Background()

	_, err := s.SignIn(ctx, calendar.Grant{Code: "code-1"})
	require.NoError(t, err)
	require.NoError(t, s.SignOut(ctx))

	assert.False(t, s.IsAuthenticated(ctx))
	conn, err := repo.GetByProvider(ctx, calendar.SourceGoogle)
	require.NoError(t, err)
	assert.False(t, conn.IsConnected)
	assert.Empty(t, conn.AccessToken)
}
