// Package calendar merges events from Google Calendar, Outlook, the
// backend database and locally created entries into one list.
//
// Every event id carries a source prefix. A provider refresh replaces
// exactly the events with that provider's prefix and leaves the rest
// untouched, so concurrent refreshes never clobber one another.
package calendar

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors.
var (
	ErrUnknownProvider     = errors.New("unknown calendar provider")
	ErrConnectInProgress   = errors.New("calendar connection already in progress")
	ErrNotAuthenticated    = errors.New("calendar provider not authenticated")
	ErrTokenExpired        = errors.New("calendar token expired")
	ErrProviderUnavailable = errors.New("calendar provider unavailable")
	ErrConnectionNotFound  = errors.New("calendar connection not found")
	ErrEventNotFound       = errors.New("calendar event not found")
	ErrSignInCancelled     = errors.New("sign-in cancelled")
)

// Source identifies where an event came from.
type Source string

// Event sources.
const (
	SourceGoogle  Source = "google"
	SourceOutlook Source = "outlook"
	SourceDB      Source = "db"
	SourceLocal   Source = "local"
)

// mergeOrder is the fixed order of sources in the merged list.
var mergeOrder = [...]Source{SourceGoogle, SourceOutlook, SourceDB, SourceLocal}

// Prefix returns the id prefix for events from s.
func (s Source) Prefix() string {
	return string(s) + "_"
}

// Color returns the display color for events from s.
func (s Source) Color() string {
	switch s {
	case SourceGoogle:
		return "#4285f4"
	case SourceOutlook:
		return "#0078d4"
	case SourceDB:
		return "#10b981"
	case SourceLocal:
		return "#8b5cf6"
	default:
		return ""
	}
}

// IsProvider reports whether s is an external calendar provider.
func (s Source) IsProvider() bool {
	return s == SourceGoogle || s == SourceOutlook
}

// ParseSource parses a provider or source name.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range mergeOrder {
		if s == known {
			return s, nil
		}
	}
	return "", ErrUnknownProvider
}

// SourceOf returns the source encoded in an event id's prefix.
func SourceOf(id string) (Source, bool) {
	for _, s := range mergeOrder {
		if strings.HasPrefix(id, s.Prefix()) {
			return s, true
		}
	}
	return "", false
}

// EventType classifies events.
type EventType string

// Event types. Events from external providers are always TypeEvent.
const (
	TypeMeeting  EventType = "Meeting"
	TypeCallBack EventType = "Call Back"
	TypeTask     EventType = "Task"
	TypeProject  EventType = "Project"
	TypeEvent    EventType = "Event"
)

// EventStatus is the display status of an event.
type EventStatus string

// Event statuses.
const (
	StatusLive     EventStatus = "Live"
	StatusUpcoming EventStatus = "Upcoming"
)

// statusFromProvider maps a provider status; only "confirmed" is Live.
func statusFromProvider(status string) EventStatus {
	if strings.EqualFold(status, "confirmed") {
		return StatusLive
	}
	return StatusUpcoming
}

// CalendarEvent is the unified event shown in every view.
type CalendarEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Type        EventType   `json:"type"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	Attendees   []string    `json:"attendees"`
	Status      EventStatus `json:"status"`
	Color       string      `json:"color"`
	Source      Source      `json:"source"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location,omitempty"`
}

// Window bounds a fetch. Zero values mean "use the default window".
type Window struct {
	Start time.Time
	End   time.Time
}

// Resolve fills zero bounds: one month back and two months ahead of now.
func (w Window) Resolve(now time.Time) Window {
	if w.Start.IsZero() {
		w.Start = now.AddDate(0, -1, 0)
	}
	if w.End.IsZero() {
		w.End = w.Start.AddDate(0, 3, 0)
	}
	return w
}

// Contains reports whether e overlaps the window.
func (w Window) Contains(e CalendarEvent) bool {
	if !w.Start.IsZero() && e.EndDate.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && e.StartDate.After(w.End) {
		return false
	}
	return true
}

// CalendarConnection is the persisted link between the workspace and a
// provider account.
type CalendarConnection struct {
	ID           string    `json:"id"`
	Provider     Source    `json:"provider"`
	Email        string    `json:"email"`
	IsConnected  bool      `json:"isConnected"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StoredEvent is an event owned by the backend database.
type StoredEvent struct {
	ID          string
	Title       string
	Type        EventType
	Status      EventStatus
	StartsAt    time.Time
	EndsAt      time.Time
	Attendees   []string
	Description string
	Location    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grant carries what the client obtained from the provider's consent
// screen. An empty Code means the user dismissed it.
type Grant struct {
	Code        string
	RedirectURL string
}

// LocalEventInput is a user-created event kept for the session only.
type LocalEventInput struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Type        EventType   `json:"type" validate:"omitempty,oneof=Meeting 'Call Back' Task Project Event"`
	Status      EventStatus `json:"status" validate:"omitempty,oneof=Live Upcoming"`
	Start       time.Time   `json:"start" validate:"required"`
	End         time.Time   `json:"end" validate:"required,gtefield=Start"`
	Attendees   []string    `json:"attendees" validate:"omitempty,dive,email"`
	Description string      `json:"description" validate:"max=2000"`
	Location    string      `json:"location" validate:"max=200"`
}
