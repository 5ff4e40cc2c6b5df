package calendar

import "context"

// ConnectionRepository persists provider connections.
type ConnectionRepository interface {
	// List returns every stored connection.
	List(ctx context.Context) ([]*CalendarConnection, error)

	// GetByProvider returns the connection for provider.
	// Returns ErrConnectionNotFound if none exists.
	GetByProvider(ctx context.Context, provider Source) (*CalendarConnection, error)

	// Upsert creates or replaces the connection for conn.Provider.
	Upsert(ctx context.Context, conn *CalendarConnection) error

	// Delete removes the connection for provider.
	Delete(ctx context.Context, provider Source) error
}

// EventRepository stores backend-owned events.
type EventRepository interface {
	// ListInWindow returns events overlapping w, ordered by start.
	ListInWindow(ctx context.Context, w Window) ([]StoredEvent, error)

	// Create stores a new event.
	Create(ctx context.Context, ev *StoredEvent) error

	// Delete removes an event by id.
	Delete(ctx context.Context, id string) error
}
