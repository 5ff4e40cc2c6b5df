package calendar

import (
	"context"
	"sync"

	gcal "google.golang.org/api/calendar/v3"
)

// fakeAuth is a switchable session shared by the fake providers.
type fakeAuth struct {
	mu            sync.Mutex
	source        Source
	authenticated bool
	signInErr     error
	signInOK      bool
	signOuts      int
	canRefresh    bool
	refreshErr    error
}

func (f *fakeAuth) Source() Source { return f.source }

func (f *fakeAuth) IsAuthenticated(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeAuth) setAuthenticated(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = v
}

func (f *fakeAuth) SignIn(context.Context, Grant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return false, f.signInErr
	}
	if f.signInOK {
		f.authenticated = true
	}
	return f.signInOK, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	f.authenticated = false
	return nil
}

func (f *fakeAuth) RefreshToken(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		f.authenticated = false
		return false, f.refreshErr
	}
	if f.canRefresh {
		f.authenticated = true
	}
	return f.authenticated, nil
}

type fakeGoogle struct {
	fakeAuth
	events []*gcal.Event
	err    error
	calls  int
}

func newFakeGoogle(events ...*gcal.Event) *fakeGoogle {
	return &fakeGoogle{
		fakeAuth: fakeAuth{source: SourceGoogle, authenticated: true, signInOK: true},
		events:   events,
	}
}

func (f *fakeGoogle) GetEvents(context.Context, Window) ([]*gcal.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.events, f.err
}

func (f *fakeGoogle) set(err error, events ...*gcal.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events, f.err = events, err
}

type fakeOutlook struct {
	fakeAuth
	events []OutlookEvent
	err    error
	panics bool

	// When gate is set GetEvents signals started and blocks until gate closes.
	started chan struct{}
	gate    chan struct{}
}

func newFakeOutlook(events ...OutlookEvent) *fakeOutlook {
	return &fakeOutlook{
		fakeAuth: fakeAuth{source: SourceOutlook, authenticated: true, signInOK: true},
		events:   events,
	}
}

func (f *fakeOutlook) GetEvents(context.Context, Window) ([]OutlookEvent, error) {
	if f.gate != nil {
		f.started <- struct{}{}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("graph client exploded")
	}
	return f.events, f.err
}

func (f *fakeOutlook) set(err error, events ...OutlookEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events, f.err = events, err
}

func gEvent(id, summary, start, end string) *gcal.Event {
	return &gcal.Event{
		Id:      id,
		Summary: summary,
		Status:  "confirmed",
		Start:   &gcal.EventDateTime{DateTime: start},
		End:     &gcal.EventDateTime{DateTime: end},
	}
}

func oEvent(id, subject, start, end string) OutlookEvent {
	return OutlookEvent{
		ID:      id,
		Subject: subject,
		Start:   &OutlookDateTime{DateTime: start, TimeZone: "UTC"},
		End:     &OutlookDateTime{DateTime: end, TimeZone: "UTC"},
	}
}

func ids(events []CalendarEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}
