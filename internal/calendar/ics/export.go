// Package ics renders calendar events as an iCalendar feed.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/eventdesk/eventdesk/internal/calendar"
)

// ProductID is the PRODID written to every feed.
const ProductID = "-//eventdesk//calendar feed//EN"

// Export renders events as a VCALENDAR named name. stamp is written as
// DTSTAMP on every event.
func Export(events []calendar.CalendarEvent, name string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + "@eventdesk")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.StartDate)
		ve.SetEndAt(ev.EndDate)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		for _, a := range ev.Attendees {
			ve.AddAttendee(a)
		}
		status := ical.ObjectStatusTentative
		if ev.Status == calendar.StatusLive {
			status = ical.ObjectStatusConfirmed
		}
		ve.SetProperty(ical.ComponentPropertyStatus, string(status))
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Type))
	}

	return cal.Serialize()
}
