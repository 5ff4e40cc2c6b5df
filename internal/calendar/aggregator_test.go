package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdesk/eventdesk/internal/kvstore"
	"github.com/eventdesk/eventdesk/internal/sequence"
	"github.com/eventdesk/eventdesk/internal/validation"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type aggregatorFixture struct {
	google  *fakeGoogle
	outlook *fakeOutlook
	conns   *InMemoryConnectionRepository
	events  *InMemoryEventRepository
	cache   *kvstore.MemoryStore
	agg     *Aggregator
}

func newAggregatorFixture(t *testing.T, mutate func(*AggregatorConfig)) *aggregatorFixture {
	t.Helper()

	f := &aggregatorFixture{
		google:  newFakeGoogle(),
		outlook: newFakeOutlook(),
		conns:   NewInMemoryConnectionRepository(),
		events:  NewInMemoryEventRepository(),
		cache:   kvstore.NewMemoryStore(),
	}

	ctx := context.Background()
	require.NoError(t, f.conns.Upsert(ctx, &CalendarConnection{ID: "conn-g", Provider: SourceGoogle, IsConnected: true}))
	require.NoError(t, f.conns.Upsert(ctx, &CalendarConnection{ID: "conn-o", Provider: SourceOutlook, IsConnected: true}))

	cfg := AggregatorConfig{
		Google:      f.google,
		Outlook:     f.outlook,
		Connections: f.conns,
		Events:      f.events,
		Cache:       f.cache,
		Formatter:   TimeFormatter{Location: time.UTC},
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.agg = NewAggregator(cfg)
	return f
}

func TestRefresh_MergeOrder(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	f.google.set(nil, gEvent("g1", "Standup", "2026-03-11T09:00:00Z", "2026-03-11T09:15:00Z"))
	f.outlook.set(nil, oEvent("o1", "Review", "2026-03-09T10:00:00", "2026-03-09T11:00:00"))
	require.NoError(t, f.events.Create(ctx, &StoredEvent{
		ID:       "7",
		Title:    "Board",
		Type:     TypeMeeting,
		StartsAt: testNow.Add(time.Hour),
		EndsAt:   testNow.Add(2 * time.Hour),
	}))
	_, err := f.agg.AddLocalEvent(ctx, LocalEventInput{
		Title: "Lunch",
		Start: testNow.Add(-time.Hour),
		End:   testNow,
	})
	require.NoError(t, err)

	events := f.agg.Refresh(ctx, Window{})

	require.Len(t, events, 4)
	assert.Equal(t, "google_g1", events[0].ID)
	assert.Equal(t, "outlook_o1", events[1].ID)
	assert.Equal(t, "db_7", events[2].ID)
	assert.Equal(t, SourceLocal, events[3].Source)
	assert.Equal(t, TypeMeeting, events[2].Type)
}

func TestRefresh_ReplacesOnlyOwnPrefix(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	f.google.set(nil,
		gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"),
		gEvent("123", "B", "2026-03-12T09:00:00Z", "2026-03-12T10:00:00Z"),
	)
	f.outlook.set(nil, oEvent("9", "C", "2026-03-13T09:00:00", "2026-03-13T10:00:00"))
	f.agg.Refresh(ctx, Window{})

	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	events := f.agg.Refresh(ctx, Window{})

	assert.Equal(t, []string{"google_1", "outlook_9"}, ids(events))
}

func TestRefresh_ProviderIsolation(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	f.outlook.set(nil, oEvent("9", "C", "2026-03-13T09:00:00", "2026-03-13T10:00:00"))
	f.agg.Refresh(ctx, Window{})

	f.google.set(errors.New("503 from google"))
	events := f.agg.Refresh(ctx, Window{})

	assert.Equal(t, []string{"outlook_9"}, ids(events))
}

func TestRefresh_ProviderPanicIsContained(t *testing.T) {
	f := newAggregatorFixture(t, nil)

	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	f.outlook.panics = true

	events := f.agg.Refresh(context.Background(), Window{})

	assert.Equal(t, []string{"google_1"}, ids(events))
}

func TestRefresh_SignedOutProviderContributesNothing(t *testing.T) {
	f := newAggregatorFixture(t, nil)

	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	f.google.setAuthenticated(false)
	f.outlook.set(nil, oEvent("9", "C", "2026-03-13T09:00:00", "2026-03-13T10:00:00"))

	events := f.agg.Refresh(context.Background(), Window{})

	assert.Equal(t, []string{"outlook_9"}, ids(events))
	assert.Zero(t, f.google.calls)
}

func TestRefresh_CachesAndFallsBack(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	f.outlook.set(nil, oEvent("9", "C", "2026-03-13T09:00:00", "2026-03-13T10:00:00"))
	f.agg.Refresh(ctx, Window{})

	var cached []CalendarEvent
	found, err := f.cache.Get(ctx, CacheKey("conn-g"), &cached)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"google_1"}, ids(cached))

	f.google.set(errors.New("offline"))
	f.outlook.set(errors.New("offline"))
	events := f.agg.Refresh(ctx, Window{})

	assert.Equal(t, []string{"google_1", "outlook_9"}, ids(events))
}

func TestRefresh_CacheFallbackKeepsRequestedWindow(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, CacheKey("conn-g"), []CalendarEvent{
		{
			ID:        "google_old",
			Source:    SourceGoogle,
			StartDate: time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:        "google_soon",
			Source:    SourceGoogle,
			StartDate: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
		},
	}, 0))

	events := f.agg.Refresh(ctx, Window{})

	assert.Equal(t, []string{"google_soon"}, ids(events))
}

func TestWindow_Contains(t *testing.T) {
	w := Window{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	at := func(start, end time.Time) CalendarEvent {
		return CalendarEvent{StartDate: start, EndDate: end}
	}

	assert.True(t, w.Contains(at(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))))
	assert.True(t, w.Contains(at(time.Date(2026, 2, 28, 22, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))), "overlaps start")
	assert.False(t, w.Contains(at(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))))
	assert.False(t, w.Contains(at(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC))))
	assert.True(t, Window{}.Contains(at(time.Time{}, time.Time{})))
}

func TestRefresh_CacheFallbackDisabled(t *testing.T) {
	f := newAggregatorFixture(t, func(cfg *AggregatorConfig) {
		cfg.CacheFallback = func() bool { return false }
	})
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, CacheKey("conn-g"), []CalendarEvent{{ID: "google_old", Source: SourceGoogle}}, 0))

	events := f.agg.Refresh(ctx, Window{})

	assert.Empty(t, events)
}

func TestRefresh_CacheFallbackSkipsDisconnected(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, CacheKey("conn-o"), []CalendarEvent{{ID: "outlook_old", Source: SourceOutlook}}, 0))
	require.NoError(t, f.conns.Upsert(ctx, &CalendarConnection{ID: "conn-o", Provider: SourceOutlook, IsConnected: false}))

	events := f.agg.Refresh(ctx, Window{})

	assert.Empty(t, events)
}

func TestRefresh_StoredEventFailureIsEmpty(t *testing.T) {
	f := newAggregatorFixture(t, func(cfg *AggregatorConfig) {
		cfg.Events = failingEvents{}
	})
	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))

	events := f.agg.Refresh(context.Background(), Window{})

	assert.Equal(t, []string{"google_1"}, ids(events))
}

type failingEvents struct{}

func (failingEvents) ListInWindow(context.Context, Window) ([]StoredEvent, error) {
	return nil, errors.New("connection refused")
}

func (failingEvents) Create(context.Context, *StoredEvent) error { return nil }

func (failingEvents) Delete(context.Context, string) error { return nil }

func TestApply_StrictOrderingDropsStaleResults(t *testing.T) {
	f := newAggregatorFixture(t, func(cfg *AggregatorConfig) {
		cfg.Ordering = sequence.Strict
	})

	older := f.agg.counter.Next()
	newer := f.agg.counter.Next()

	f.agg.apply(newer, SourceGoogle, []CalendarEvent{{ID: "google_new"}})
	f.agg.apply(older, SourceGoogle, []CalendarEvent{{ID: "google_old"}})

	assert.Equal(t, []string{"google_new"}, ids(f.agg.Events()))
}

func TestApply_LenientOrderingLastWriterWins(t *testing.T) {
	f := newAggregatorFixture(t, nil)

	older := f.agg.counter.Next()
	newer := f.agg.counter.Next()

	f.agg.apply(newer, SourceGoogle, []CalendarEvent{{ID: "google_new"}})
	f.agg.apply(older, SourceGoogle, []CalendarEvent{{ID: "google_old"}})

	assert.Equal(t, []string{"google_old"}, ids(f.agg.Events()))
}

func TestApply_FiltersForeignPrefixesAndDuplicates(t *testing.T) {
	f := newAggregatorFixture(t, nil)

	f.agg.apply(f.agg.counter.Next(), SourceGoogle, []CalendarEvent{
		{ID: "google_1"},
		{ID: "outlook_2"},
		{ID: "google_1"},
	})

	assert.Equal(t, []string{"google_1"}, ids(f.agg.Events()))
}

func TestPurgeSource(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	f.outlook.set(nil, oEvent("9", "C", "2026-03-13T09:00:00", "2026-03-13T10:00:00"))
	f.agg.Refresh(context.Background(), Window{})

	n := f.agg.PurgeSource(SourceOutlook)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"google_1"}, ids(f.agg.Events()))
}

func refreshWithPurgeMidFetch(t *testing.T, f *aggregatorFixture) []CalendarEvent {
	t.Helper()

	f.outlook.set(nil, oEvent("o1", "Standup", "2026-03-12T09:00:00", "2026-03-12T09:15:00"))
	f.outlook.started = make(chan struct{})
	f.outlook.gate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.agg.Refresh(context.Background(), Window{})
	}()

	<-f.outlook.started
	f.agg.PurgeSource(SourceOutlook)
	close(f.outlook.gate)
	<-done

	return f.agg.Events()
}

func TestPurgeSource_StrictOrderingDropsInFlightFetch(t *testing.T) {
	f := newAggregatorFixture(t, func(cfg *AggregatorConfig) {
		cfg.Ordering = sequence.Strict
	})

	assert.Empty(t, refreshWithPurgeMidFetch(t, f))
}

func TestPurgeSource_LenientOrderingKeepsInFlightFetch(t *testing.T) {
	f := newAggregatorFixture(t, nil)

	assert.Equal(t, []string{"outlook_o1"}, ids(refreshWithPurgeMidFetch(t, f)))
}

func TestAddLocalEvent(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	ev, err := f.agg.AddLocalEvent(ctx, LocalEventInput{
		Title:     "Call supplier",
		Type:      TypeCallBack,
		Start:     testNow.Add(time.Hour),
		End:       testNow.Add(90 * time.Minute),
		Attendees: []string{"ops@example.com"},
	})
	require.NoError(t, err)

	assert.Contains(t, ev.ID, "local_")
	assert.Equal(t, "#8b5cf6", ev.Color)
	assert.Equal(t, StatusUpcoming, ev.Status)
	assert.Equal(t, "13:00", ev.StartTime)

	f.google.set(nil, gEvent("1", "A", "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z"))
	events := f.agg.Refresh(ctx, Window{})
	assert.Equal(t, []string{"google_1", ev.ID}, ids(events))

	require.NoError(t, f.agg.RemoveLocalEvent(ev.ID))
	assert.ErrorIs(t, f.agg.RemoveLocalEvent(ev.ID), ErrEventNotFound)
}

func TestAddLocalEvent_Validation(t *testing.T) {
	f := newAggregatorFixture(t, nil)

	tests := []struct {
		name  string
		input LocalEventInput
		field string
	}{
		{
			name:  "missing title",
			input: LocalEventInput{Start: testNow, End: testNow},
			field: "title",
		},
		{
			name:  "end before start",
			input: LocalEventInput{Title: "x", Start: testNow, End: testNow.Add(-time.Minute)},
			field: "end",
		},
		{
			name:  "unknown type",
			input: LocalEventInput{Title: "x", Type: "Party", Start: testNow, End: testNow},
			field: "type",
		},
		{
			name:  "bad attendee",
			input: LocalEventInput{Title: "x", Start: testNow, End: testNow, Attendees: []string{"nope"}},
			field: "attendees[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.agg.AddLocalEvent(context.Background(), tt.input)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), "fields: %+v", verr.Fields)
		})
	}

	assert.Empty(t, f.agg.Events())
}
