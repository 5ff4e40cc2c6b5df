// Package oauth keeps the OAuth2 token for one calendar provider and
// persists it on the provider's CalendarConnection.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/eventdesk/eventdesk/internal/calendar"
)

// SessionConfig holds configuration for a provider session.
type SessionConfig struct {
	Source      calendar.Source
	OAuth       *oauth2.Config
	Connections calendar.ConnectionRepository
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Session is the signed-in state of one provider. It implements
// calendar.Authenticator and oauth2.TokenSource.
//
// Tokens are never refreshed implicitly: once the access token expires the
// session reports unauthenticated until RefreshToken succeeds.
type Session struct {
	source      calendar.Source
	oauth       *oauth2.Config
	connections calendar.ConnectionRepository
	logger      zerolog.Logger
	now         func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token
}

var (
	_ calendar.Authenticator = (*Session)(nil)
	_ oauth2.TokenSource     = (*Session)(nil)
)

// NewSession creates a signed-out session.
func NewSession(cfg SessionConfig) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		source:      cfg.Source,
		oauth:       cfg.OAuth,
		connections: cfg.Connections,
		logger:      cfg.Logger.With().Str("source", string(cfg.Source)).Logger(),
		now:         now,
	}
}

// Load restores the token from the stored connection, if any. A
// connection that expired keeps only its refresh token, so the session
// stays signed out until RefreshToken succeeds.
func (s *Session) Load(ctx context.Context) error {
	conn, err := s.connections.GetByProvider(ctx, s.source)
	if errors.Is(err, calendar.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s connection: %w", s.source, err)
	}

	connected := conn.IsConnected && conn.AccessToken != ""
	if !connected && conn.RefreshToken == "" {
		return nil
	}

	tok := &oauth2.Token{
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if connected {
		tok.AccessToken = conn.AccessToken
		tok.Expiry = conn.ExpiresAt
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

// Source returns the provider this session belongs to.
func (s *Session) Source() calendar.Source {
	return s.source
}

// IsAuthenticated reports whether the access token is present and unexpired.
func (s *Session) IsAuthenticated(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid()
}

func (s *Session) valid() bool {
	if s.token == nil || s.token.AccessToken == "" {
		return false
	}
	return s.token.Expiry.IsZero() || s.token.Expiry.After(s.now())
}

// Token returns the current access token. It implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.valid() {
		return nil, calendar.ErrNotAuthenticated
	}
	tok := *s.token
	return &tok, nil
}

// HTTPClient returns a client that authorizes requests with the session
// token. A base client in ctx under oauth2.HTTPClient is honoured.
func (s *Session) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s)
}

// SignIn exchanges the grant's authorization code for a token.
// An empty code means the user cancelled and yields ErrSignInCancelled.
func (s *Session) SignIn(ctx context.Context, grant calendar.Grant) (bool, error) {
	if grant.Code == "" {
		return false, calendar.ErrSignInCancelled
	}

	cfg := *s.oauth
	if grant.RedirectURL != "" {
		cfg.RedirectURL = grant.RedirectURL
	}

	tok, err := cfg.Exchange(ctx, grant.Code)
	if err != nil {
		return false, fmt.Errorf("exchanging authorization code: %w", err)
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	if err := s.persist(ctx, tok); err != nil {
		return true, fmt.Errorf("saving %s token: %w", s.source, err)
	}

	s.logger.Info().Time("expires_at", tok.Expiry).Msg("calendar signed in")
	return true, nil
}

// SignOut forgets the token and clears it from storage.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()

	conn, err := s.connections.GetByProvider(ctx, s.source)
	if errors.Is(err, calendar.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	conn.IsConnected = false
	conn.AccessToken = ""
	conn.RefreshToken = ""
	conn.ExpiresAt = time.Time{}
	conn.UpdatedAt = s.now()
	return s.connections.Upsert(ctx, conn)
}

// RefreshToken trades the refresh token for a new access token.
// A rejected refresh ends the session and wraps ErrTokenExpired.
func (s *Session) RefreshToken(ctx context.Context) (bool, error) {
	s.mu.RLock()
	var refresh string
	if s.token != nil {
		refresh = s.token.RefreshToken
	}
	s.mu.RUnlock()

	if refresh == "" {
		return false, calendar.ErrNotAuthenticated
	}

	// An expired copy forces the token source to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: refresh, Expiry: time.Unix(1, 0)}
	tok, err := s.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		s.mu.Lock()
		s.token = nil
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("calendar token refresh rejected")
		return false, fmt.Errorf("%w: %v", calendar.ErrTokenExpired, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refresh
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	if err := s.persist(ctx, tok); err != nil {
		return true, fmt.Errorf("saving %s token: %w", s.source, err)
	}
	return true, nil
}

func (s *Session) persist(ctx context.Context, tok *oauth2.Token) error {
	now := s.now()

	conn, err := s.connections.GetByProvider(ctx, s.source)
	if errors.Is(err, calendar.ErrConnectionNotFound) {
		conn = &calendar.CalendarConnection{
			ID:        "conn_" + uuid.New().String()[:22],
			Provider:  s.source,
			CreatedAt: now,
		}
	} else if err != nil {
		return err
	}

	if email, ok := tok.Extra("email").(string); ok && email != "" {
		conn.Email = email
	}
	conn.IsConnected = true
	conn.AccessToken = tok.AccessToken
	conn.RefreshToken = tok.RefreshToken
	conn.ExpiresAt = tok.Expiry
	conn.UpdatedAt = now
	return s.connections.Upsert(ctx, conn)
}
