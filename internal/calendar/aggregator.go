package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eventdesk/eventdesk/internal/sequence"
	"github.com/eventdesk/eventdesk/internal/telemetry"
	"github.com/eventdesk/eventdesk/internal/validation"
)

// EventCache stores provider events from earlier syncs.
type EventCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CacheKey is the cache key for a connection's events.
func CacheKey(connectionID string) string {
	return "calendar:events:" + connectionID
}

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	// Google and Outlook are optional; a nil provider contributes nothing.
	Google  GoogleProvider
	Outlook OutlookProvider

	Connections ConnectionRepository
	Events      EventRepository
	Cache       EventCache

	// CacheTTL bounds how long synced events stay cached. Zero keeps them.
	CacheTTL time.Duration

	Formatter TimeFormatter
	Logger    zerolog.Logger
	Metrics   *telemetry.ProviderMetrics

	// CacheFallback gates reading cached events when no provider
	// returned any. Nil means enabled.
	CacheFallback func() bool

	// Ordering decides whether stale provider results are dropped.
	// Nil keeps last-writer-wins.
	Ordering sequence.Policy

	Now func() time.Time
}

// Aggregator owns the merged event list.
type Aggregator struct {
	google        GoogleProvider
	outlook       OutlookProvider
	connections   ConnectionRepository
	events        EventRepository
	cache         EventCache
	cacheTTL      time.Duration
	formatter     TimeFormatter
	logger        zerolog.Logger
	metrics       *telemetry.ProviderMetrics
	cacheFallback func() bool
	now           func() time.Time

	counter sequence.Counter
	guards  map[Source]*sequence.Guard

	mu      sync.RWMutex
	subsets map[Source][]CalendarEvent
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	formatter := cfg.Formatter
	if formatter.Now == nil {
		formatter.Now = now
	}

	cacheFallback := cfg.CacheFallback
	if cacheFallback == nil {
		cacheFallback = func() bool { return true }
	}

	guards := make(map[Source]*sequence.Guard, len(mergeOrder))
	for _, s := range mergeOrder {
		guards[s] = sequence.NewGuard(cfg.Ordering)
	}

	return &Aggregator{
		google:        cfg.Google,
		outlook:       cfg.Outlook,
		connections:   cfg.Connections,
		events:        cfg.Events,
		cache:         cfg.Cache,
		cacheTTL:      cfg.CacheTTL,
		formatter:     formatter,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		cacheFallback: cacheFallback,
		now:           now,
		guards:        guards,
		subsets:       make(map[Source][]CalendarEvent, len(mergeOrder)),
	}
}

// Refresh fetches every source for w and returns the merged list.
//
// Google, Outlook and the database are queried concurrently. A failing
// source contributes zero events and never fails the refresh. When
// neither provider yields events, cached events from earlier syncs are
// used for each connected provider.
func (a *Aggregator) Refresh(ctx context.Context, w Window) []CalendarEvent {
	w = w.Resolve(a.now())
	ticket := a.counter.Next()

	var googleCount, outlookCount int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		googleCount = a.refreshProvider(gctx, ticket, SourceGoogle, w)
		return nil
	})
	g.Go(func() error {
		outlookCount = a.refreshProvider(gctx, ticket, SourceOutlook, w)
		return nil
	})
	g.Go(func() error {
		a.refreshStored(gctx, ticket, w)
		return nil
	})
	_ = g.Wait()

	if googleCount == 0 && outlookCount == 0 && a.cacheFallback() {
		a.applyCached(ctx, ticket, w)
	}

	merged := a.Events()

	a.logger.Debug().
		Int("google", googleCount).
		Int("outlook", outlookCount).
		Int("total", len(merged)).
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Msg("calendar refreshed")

	return merged
}

func (a *Aggregator) refreshProvider(ctx context.Context, ticket sequence.Ticket, src Source, w Window) (count int) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("source", string(src)).
				Interface("panic", r).
				Msg("calendar provider panicked during fetch")
			a.apply(ticket, src, nil)
			count = 0
		}
	}()

	events, err := a.FetchSource(ctx, src, w)
	if err != nil && !errors.Is(err, ErrNotAuthenticated) {
		a.logger.Warn().Err(err).
			Str("source", string(src)).
			Msg("calendar fetch failed, treating as empty")
	}

	a.apply(ticket, src, events)

	if err == nil && len(events) > 0 {
		if cerr := a.CacheEvents(ctx, src, events); cerr != nil {
			a.logger.Warn().Err(cerr).
				Str("source", string(src)).
				Msg("failed to cache calendar events")
		}
	}

	return len(events)
}

// FetchSource fetches and converts one provider's events for w.
// It returns ErrNotAuthenticated when the provider is absent or signed out.
func (a *Aggregator) FetchSource(ctx context.Context, src Source, w Window) (events []CalendarEvent, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrNotAuthenticated) {
			a.metrics.RecordRequest(string(src), "events", time.Since(start), err)
		}
	}()

	switch src {
	case SourceGoogle:
		if a.google == nil || !a.google.IsAuthenticated(ctx) {
			return nil, ErrNotAuthenticated
		}
		raw, err := a.google.GetEvents(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("google: %w", err)
		}
		events = make([]CalendarEvent, 0, len(raw))
		for _, ev := range raw {
			if ev == nil {
				continue
			}
			events = append(events, ConvertGoogleEvent(ev, a.formatter))
		}
		return events, nil

	case SourceOutlook:
		if a.outlook == nil || !a.outlook.IsAuthenticated(ctx) {
			return nil, ErrNotAuthenticated
		}
		raw, err := a.outlook.GetEvents(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("outlook: %w", err)
		}
		events = make([]CalendarEvent, 0, len(raw))
		for _, ev := range raw {
			events = append(events, ConvertOutlookEvent(ev, a.formatter))
		}
		return events, nil

	default:
		return nil, ErrUnknownProvider
	}
}

// CacheEvents stores events under the provider's connection.
func (a *Aggregator) CacheEvents(ctx context.Context, src Source, events []CalendarEvent) error {
	if a.cache == nil || a.connections == nil {
		return nil
	}
	conn, err := a.connections.GetByProvider(ctx, src)
	if err != nil {
		return err
	}
	return a.cache.Set(ctx, CacheKey(conn.ID), events, a.cacheTTL)
}

func (a *Aggregator) applyCached(ctx context.Context, ticket sequence.Ticket, w Window) {
	if a.cache == nil || a.connections == nil {
		return
	}

	conns, err := a.connections.List(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("listing calendar connections for cache fallback")
		return
	}

	for _, conn := range conns {
		if !conn.Provider.IsProvider() || !conn.IsConnected {
			continue
		}

		var cached []CalendarEvent
		found, err := a.cache.Get(ctx, CacheKey(conn.ID), &cached)
		if err != nil {
			a.logger.Warn().Err(err).
				Str("connection_id", conn.ID).
				Msg("reading cached calendar events")
			continue
		}
		if !found {
			continue
		}
		cached = withinWindow(cached, w)
		if len(cached) == 0 {
			continue
		}

		a.apply(ticket, conn.Provider, cached)
		a.metrics.RecordFallback(string(conn.Provider), "events")

		a.logger.Info().
			Str("source", string(conn.Provider)).
			Int("count", len(cached)).
			Msg("serving cached calendar events")
	}
}

// withinWindow filters events in place. Cached events may come from a
// sync that used a different window.
func withinWindow(events []CalendarEvent, w Window) []CalendarEvent {
	out := events[:0]
	for _, ev := range events {
		if w.Contains(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (a *Aggregator) refreshStored(ctx context.Context, ticket sequence.Ticket, w Window) {
	if a.events == nil {
		return
	}

	stored, err := a.events.ListInWindow(ctx, w)
	if err != nil {
		a.logger.Warn().Err(err).Msg("loading stored calendar events, treating as empty")
		a.apply(ticket, SourceDB, nil)
		return
	}

	events := make([]CalendarEvent, 0, len(stored))
	for _, ev := range stored {
		events = append(events, ConvertStoredEvent(ev, a.formatter))
	}
	a.apply(ticket, SourceDB, events)
}

// apply replaces the subset for src with events carrying its prefix.
func (a *Aggregator) apply(ticket sequence.Ticket, src Source, events []CalendarEvent) {
	if !a.guards[src].Accept(ticket) {
		a.logger.Debug().
			Str("source", string(src)).
			Uint64("ticket", uint64(ticket)).
			Msg("dropping stale calendar result")
		return
	}

	subset := make([]CalendarEvent, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if s, ok := SourceOf(ev.ID); !ok || s != src {
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		subset = append(subset, ev)
	}

	a.mu.Lock()
	a.subsets[src] = subset
	a.mu.Unlock()
}

// Events returns a copy of the merged list: Google, Outlook, database,
// then local events.
func (a *Aggregator) Events() []CalendarEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := 0
	for _, s := range mergeOrder {
		n += len(a.subsets[s])
	}

	merged := make([]CalendarEvent, 0, n)
	for _, s := range mergeOrder {
		merged = append(merged, a.subsets[s]...)
	}
	return merged
}

// PurgeSource drops every event from src. Under strict ordering, fetches
// already in flight for src are discarded when they complete.
func (a *Aggregator) PurgeSource(src Source) int {
	if g, ok := a.guards[src]; ok {
		g.Accept(a.counter.Next())
	}

	a.mu.Lock()
	n := len(a.subsets[src])
	delete(a.subsets, src)
	a.mu.Unlock()

	a.logger.Info().
		Str("source", string(src)).
		Int("count", n).
		Msg("purged calendar events")
	return n
}

// AddLocalEvent validates input and adds a session-only event.
func (a *Aggregator) AddLocalEvent(_ context.Context, input LocalEventInput) (CalendarEvent, error) {
	if err := validation.Struct(input); err != nil {
		return CalendarEvent{}, err
	}

	typ := input.Type
	if typ == "" {
		typ = TypeEvent
	}
	status := input.Status
	if status == "" {
		status = StatusUpcoming
	}
	attendees := input.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	ev := CalendarEvent{
		ID:          SourceLocal.Prefix() + uuid.New().String(),
		Title:       input.Title,
		Type:        typ,
		StartDate:   input.Start,
		EndDate:     input.End,
		StartTime:   a.formatter.Format(input.Start),
		EndTime:     a.formatter.Format(input.End),
		Attendees:   attendees,
		Status:      status,
		Color:       SourceLocal.Color(),
		Source:      SourceLocal,
		Description: input.Description,
		Location:    input.Location,
	}

	a.mu.Lock()
	a.subsets[SourceLocal] = append(a.subsets[SourceLocal], ev)
	a.mu.Unlock()

	return ev, nil
}

// RemoveLocalEvent deletes a session-only event.
func (a *Aggregator) RemoveLocalEvent(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	local := a.subsets[SourceLocal]
	for i, ev := range local {
		if ev.ID == id {
			a.subsets[SourceLocal] = append(local[:i:i], local[i+1:]...)
			return nil
		}
	}
	return ErrEventNotFound
}
