package calendar

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

const untitled = "Untitled Event"

// graphDateTimeLayout matches Graph's offset-less dateTime values.
const graphDateTimeLayout = "2006-01-02T15:04:05.9999999"

// TimeFormatter renders the hour:minute strings shown next to events.
type TimeFormatter struct {
	// Layout is a time layout. Default: "15:04".
	Layout string
	// Location is the display time zone. Default: time.Local.
	Location *time.Location
	// Now supplies the fallback timestamp for events without times.
	Now func() time.Time
}

func (f TimeFormatter) layout() string {
	if f.Layout == "" {
		return "15:04"
	}
	return f.Layout
}

func (f TimeFormatter) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

func (f TimeFormatter) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// Format renders t in the display zone.
func (f TimeFormatter) Format(t time.Time) string {
	return t.In(f.location()).Format(f.layout())
}

// ConvertGoogleEvent maps a Google Calendar event into a CalendarEvent.
func ConvertGoogleEvent(ev *gcal.Event, f TimeFormatter) CalendarEvent {
	now := f.now()
	start := googleTime(ev.Start, f.location(), now)
	end := googleTime(ev.End, f.location(), now)

	attendees := make([]string, 0, len(ev.Attendees))
	for _, a := range ev.Attendees {
		if a != nil && a.Email != "" {
			attendees = append(attendees, a.Email)
		}
	}

	title := ev.Summary
	if title == "" {
		title = untitled
	}

	return CalendarEvent{
		ID:          SourceGoogle.Prefix() + ev.Id,
		Title:       title,
		Type:        TypeEvent,
		StartDate:   start,
		EndDate:     end,
		StartTime:   f.Format(start),
		EndTime:     f.Format(end),
		Attendees:   attendees,
		Status:      statusFromProvider(ev.Status),
		Color:       SourceGoogle.Color(),
		Source:      SourceGoogle,
		Description: ev.Description,
		Location:    ev.Location,
	}
}

// googleTime reads a timed or all-day boundary, falling back to now.
func googleTime(edt *gcal.EventDateTime, loc *time.Location, now time.Time) time.Time {
	if edt == nil {
		return now
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.ParseInLocation(time.DateOnly, edt.Date, loc); err == nil {
			return t
		}
	}
	return now
}

// ConvertOutlookEvent maps a Graph event into a CalendarEvent.
func ConvertOutlookEvent(ev OutlookEvent, f TimeFormatter) CalendarEvent {
	now := f.now()
	start := outlookTime(ev.Start, now)
	end := outlookTime(ev.End, now)

	attendees := make([]string, 0, len(ev.Attendees))
	for _, a := range ev.Attendees {
		if a.EmailAddress.Address != "" {
			attendees = append(attendees, a.EmailAddress.Address)
		}
	}

	title := ev.Subject
	if title == "" {
		title = untitled
	}

	var location string
	if ev.Location != nil {
		location = ev.Location.DisplayName
	}

	return CalendarEvent{
		ID:          SourceOutlook.Prefix() + ev.ID,
		Title:       title,
		Type:        TypeEvent,
		StartDate:   start,
		EndDate:     end,
		StartTime:   f.Format(start),
		EndTime:     f.Format(end),
		Attendees:   attendees,
		Status:      statusFromProvider(ev.ProviderStatus()),
		Color:       SourceOutlook.Color(),
		Source:      SourceOutlook,
		Description: ev.BodyPreview,
		Location:    location,
	}
}

func outlookTime(dt *OutlookDateTime, now time.Time) time.Time {
	if dt == nil || dt.DateTime == "" {
		return now
	}

	loc := time.UTC
	if dt.TimeZone != "" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}

	if t, err := time.ParseInLocation(graphDateTimeLayout, dt.DateTime, loc); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
		return t
	}
	return now
}

// ConvertStoredEvent maps a database event into a CalendarEvent.
func ConvertStoredEvent(ev StoredEvent, f TimeFormatter) CalendarEvent {
	now := f.now()
	start, end := ev.StartsAt, ev.EndsAt
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = start
	}

	title := ev.Title
	if title == "" {
		title = untitled
	}

	typ := ev.Type
	if typ == "" {
		typ = TypeEvent
	}

	status := ev.Status
	if status == "" {
		status = StatusUpcoming
	}

	attendees := ev.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	return CalendarEvent{
		ID:          SourceDB.Prefix() + ev.ID,
		Title:       title,
		Type:        typ,
		StartDate:   start,
		EndDate:     end,
		StartTime:   f.Format(start),
		EndTime:     f.Format(end),
		Attendees:   attendees,
		Status:      status,
		Color:       SourceDB.Color(),
		Source:      SourceDB,
		Description: ev.Description,
		Location:    ev.Location,
	}
}
