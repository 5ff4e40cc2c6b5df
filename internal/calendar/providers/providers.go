// Package providers builds the Google and Outlook calendar clients from
// process configuration.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/google"
	"github.com/eventdesk/eventdesk/internal/calendar/oauth"
	"github.com/eventdesk/eventdesk/internal/calendar/outlook"
	"github.com/eventdesk/eventdesk/internal/config"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
)

// OutlookScopes are requested from Microsoft identity.
var OutlookScopes = []string{"offline_access", "User.Read", "Calendars.Read"}

// Config holds what Build needs.
type Config struct {
	Google      config.OAuthProviderConfig
	Outlook     config.OAuthProviderConfig
	Connections calendar.ConnectionRepository
	Registry    *resilience.Registry
	Logger      zerolog.Logger
}

// Set is the configured providers. A provider without client credentials
// is nil.
type Set struct {
	Google  *google.Client
	Outlook *outlook.Client

	sessions []*oauth.Session
}

// Build creates a session and client for each configured provider.
// Stored tokens are not loaded; call Load.
func Build(ctx context.Context, cfg Config) (*Set, error) {
	set := &Set{}

	if cfg.Google.Enabled() {
		session := oauth.NewSession(oauth.SessionConfig{
			Source: calendar.SourceGoogle,
			OAuth: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				RedirectURL:  cfg.Google.RedirectURL,
				Endpoint:     googleoauth.Endpoint,
				Scopes:       []string{gcal.CalendarReadonlyScope},
			},
			Connections: cfg.Connections,
			Logger:      cfg.Logger,
		})

		client, err := google.NewClient(ctx, google.ClientConfig{
			Session: session,
			Logger:  cfg.Logger.With().Str("provider", "google").Logger(),
		})
		if err != nil {
			return nil, fmt.Errorf("google calendar: %w", err)
		}
		set.Google = client
		set.sessions = append(set.sessions, session)
	}

	if cfg.Outlook.Enabled() {
		session := oauth.NewSession(oauth.SessionConfig{
			Source: calendar.SourceOutlook,
			OAuth: &oauth2.Config{
				ClientID:     cfg.Outlook.ClientID,
				ClientSecret: cfg.Outlook.ClientSecret,
				RedirectURL:  cfg.Outlook.RedirectURL,
				Endpoint:     microsoft.AzureADEndpoint(cfg.Outlook.Tenant),
				Scopes:       OutlookScopes,
			},
			Connections: cfg.Connections,
			Logger:      cfg.Logger,
		})

		set.Outlook = outlook.NewClient(outlook.ClientConfig{
			Session:  session,
			Registry: cfg.Registry,
			Logger:   cfg.Logger.With().Str("provider", "outlook").Logger(),
		})
		set.sessions = append(set.sessions, session)
	}

	return set, nil
}

// Load restores every session's token from its stored connection.
func (s *Set) Load(ctx context.Context) error {
	var errs []error
	for _, session := range s.sessions {
		if err := session.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GoogleProvider returns the Google client, or nil when unconfigured.
func (s *Set) GoogleProvider() calendar.GoogleProvider {
	if s.Google == nil {
		return nil
	}
	return s.Google
}

// OutlookProvider returns the Outlook client, or nil when unconfigured.
func (s *Set) OutlookProvider() calendar.OutlookProvider {
	if s.Outlook == nil {
		return nil
	}
	return s.Outlook
}

// Authenticators returns the configured providers for the connection manager.
func (s *Set) Authenticators() []calendar.Authenticator {
	var out []calendar.Authenticator
	if s.Google != nil {
		out = append(out, s.Google)
	}
	if s.Outlook != nil {
		out = append(out, s.Outlook)
	}
	return out
}

// Diagnosers returns the configured providers for health checks.
func (s *Set) Diagnosers() []calendar.Diagnoser {
	var out []calendar.Diagnoser
	if s.Google != nil {
		out = append(out, s.Google)
	}
	if s.Outlook != nil {
		out = append(out, s.Outlook)
	}
	return out
}
