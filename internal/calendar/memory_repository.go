package calendar

import (
	"context"
	"sort"
	"sync"
)

// InMemoryConnectionRepository is an in-memory ConnectionRepository.
type InMemoryConnectionRepository struct {
	mu    sync.RWMutex
	conns map[Source]*CalendarConnection
}

var _ ConnectionRepository = (*InMemoryConnectionRepository)(nil)

// NewInMemoryConnectionRepository creates an empty repository.
func NewInMemoryConnectionRepository() *InMemoryConnectionRepository {
	return &InMemoryConnectionRepository{conns: make(map[Source]*CalendarConnection)}
}

// List returns copies of all connections ordered by provider.
func (r *InMemoryConnectionRepository) List(_ context.Context) ([]*CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*CalendarConnection, 0, len(r.conns))
	for _, c := range r.conns {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// GetByProvider returns a copy of the provider's connection.
func (r *InMemoryConnectionRepository) GetByProvider(_ context.Context, provider Source) (*CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[provider]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

// Upsert stores a copy of conn.
func (r *InMemoryConnectionRepository) Upsert(_ context.Context, conn *CalendarConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *conn
	r.conns[conn.Provider] = &cp
	return nil
}

// Delete removes the provider's connection.
func (r *InMemoryConnectionRepository) Delete(_ context.Context, provider Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[provider]; !ok {
		return ErrConnectionNotFound
	}
	delete(r.conns, provider)
	return nil
}

// InMemoryEventRepository is an in-memory EventRepository.
type InMemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]StoredEvent
}

var _ EventRepository = (*InMemoryEventRepository)(nil)

// NewInMemoryEventRepository creates an empty repository.
func NewInMemoryEventRepository() *InMemoryEventRepository {
	return &InMemoryEventRepository{events: make(map[string]StoredEvent)}
}

// ListInWindow returns events overlapping w ordered by start.
func (r *InMemoryEventRepository) ListInWindow(_ context.Context, w Window) ([]StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StoredEvent, 0, len(r.events))
	for _, ev := range r.events {
		if !w.Start.IsZero() && ev.EndsAt.Before(w.Start) {
			continue
		}
		if !w.End.IsZero() && ev.StartsAt.After(w.End) {
			continue
		}
		cp := ev
		cp.Attendees = append([]string(nil), ev.Attendees...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// Create stores ev.
func (r *InMemoryEventRepository) Create(_ context.Context, ev *StoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *ev
	cp.Attendees = append([]string(nil), ev.Attendees...)
	r.events[ev.ID] = cp
	return nil
}

// Delete removes an event.
func (r *InMemoryEventRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}
