package calendar

import (
	"context"
	"strings"

	gcal "google.golang.org/api/calendar/v3"
)

// Authenticator is the sign-in surface every calendar provider exposes.
type Authenticator interface {
	Source() Source
	IsAuthenticated(ctx context.Context) bool
	SignIn(ctx context.Context, grant Grant) (bool, error)
	SignOut(ctx context.Context) error
	RefreshToken(ctx context.Context) (bool, error)
}

// GoogleProvider fetches raw Google Calendar events.
type GoogleProvider interface {
	Authenticator
	GetEvents(ctx context.Context, w Window) ([]*gcal.Event, error)
}

// OutlookProvider fetches raw Microsoft Graph events.
type OutlookProvider interface {
	Authenticator
	GetEvents(ctx context.Context, w Window) ([]OutlookEvent, error)
}

// Diagnoser is implemented by providers that can self-check their setup.
type Diagnoser interface {
	Diagnose(ctx context.Context) error
}

// OutlookEvent is the subset of a Microsoft Graph event the aggregator reads.
type OutlookEvent struct {
	ID             string                 `json:"id"`
	Subject        string                 `json:"subject"`
	BodyPreview    string                 `json:"bodyPreview"`
	Start          *OutlookDateTime       `json:"start"`
	End            *OutlookDateTime       `json:"end"`
	Location       *OutlookLocation       `json:"location"`
	Attendees      []OutlookAttendee      `json:"attendees"`
	IsAllDay       bool                   `json:"isAllDay"`
	IsCancelled    bool                   `json:"isCancelled"`
	ShowAs         string                 `json:"showAs"`
	ResponseStatus *OutlookResponseStatus `json:"responseStatus"`
}

// OutlookDateTime is Graph's dateTimeTimeZone: a wall-clock time without
// offset plus an IANA or Windows zone name.
type OutlookDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// OutlookLocation is an event location.
type OutlookLocation struct {
	DisplayName string `json:"displayName"`
}

// OutlookAttendee is an event attendee.
type OutlookAttendee struct {
	Type         string              `json:"type"`
	EmailAddress OutlookEmailAddress `json:"emailAddress"`
}

// OutlookEmailAddress is a named mailbox.
type OutlookEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// OutlookResponseStatus is the signed-in user's response to an event.
type OutlookResponseStatus struct {
	Response string `json:"response"`
}

// ProviderStatus normalises the Graph response to Google's vocabulary.
// Events the user organises or accepted are "confirmed".
func (e OutlookEvent) ProviderStatus() string {
	if e.IsCancelled {
		return "cancelled"
	}
	if e.ResponseStatus == nil {
		return "tentative"
	}
	switch strings.ToLower(e.ResponseStatus.Response) {
	case "organizer", "accepted":
		return "confirmed"
	default:
		return "tentative"
	}
}
