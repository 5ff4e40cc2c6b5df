// Package google reads events from Google Calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/oauth"
)

const (
	// DefaultCalendarID is the signed-in user's main calendar.
	DefaultCalendarID = "primary"

	// DefaultPageSize is the number of events requested per page.
	DefaultPageSize = 250
)

// ClientConfig holds configuration for the Google Calendar client.
type ClientConfig struct {
	// Session supplies the OAuth token (required).
	Session *oauth.Session

	// CalendarID selects the calendar. Default: "primary".
	CalendarID string

	// Endpoint overrides the API base URL (optional, for tests).
	Endpoint string

	// HTTPClient is the transport under the OAuth layer (optional).
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// Client is a calendar.GoogleProvider backed by the Calendar v3 API.
type Client struct {
	*oauth.Session

	svc        *gcal.Service
	calendarID string
	logger     zerolog.Logger
}

var (
	_ calendar.GoogleProvider = (*Client)(nil)
	_ calendar.Diagnoser      = (*Client)(nil)
)

// NewClient creates a Google Calendar client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Session == nil {
		return nil, errors.New("google calendar: session is required")
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	opts := []option.ClientOption{option.WithHTTPClient(cfg.Session.HTTPClient(ctx))}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	return &Client{
		Session:    cfg.Session,
		svc:        svc,
		calendarID: calendarID,
		logger:     cfg.Logger,
	}, nil
}

// GetEvents lists the events in w with recurring events expanded.
func (c *Client) GetEvents(ctx context.Context, w calendar.Window) ([]*gcal.Event, error) {
	if !c.IsAuthenticated(ctx) {
		return nil, calendar.ErrNotAuthenticated
	}

	call := c.svc.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(DefaultPageSize)
	if !w.Start.IsZero() {
		call = call.TimeMin(w.Start.Format(time.RFC3339))
	}
	if !w.End.IsZero() {
		call = call.TimeMax(w.End.Format(time.RFC3339))
	}

	var events []*gcal.Event
	err := call.Pages(ctx, func(page *gcal.Events) error {
		events = append(events, page.Items...)
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	c.logger.Debug().
		Int("count", len(events)).
		Str("calendar_id", c.calendarID).
		Msg("fetched google calendar events")

	return events, nil
}

// Diagnose checks that the calendar is reachable with the current token.
func (c *Client) Diagnose(ctx context.Context) error {
	if !c.IsAuthenticated(ctx) {
		return calendar.ErrNotAuthenticated
	}
	if _, err := c.svc.CalendarList.Get(c.calendarID).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", calendar.ErrTokenExpired, gerr.Message)
		case gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: google returned %d", calendar.ErrProviderUnavailable, gerr.Code)
		}
	}
	if errors.Is(err, calendar.ErrNotAuthenticated) {
		return err
	}
	return fmt.Errorf("google calendar: %w", err)
}
