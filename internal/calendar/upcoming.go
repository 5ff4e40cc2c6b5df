package calendar

import (
	"sort"
	"time"
)

// Upcoming returns the events starting after now, earliest first.
// The input is not modified.
func Upcoming(events []CalendarEvent, now time.Time) []CalendarEvent {
	out := make([]CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.StartDate.After(now) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}
