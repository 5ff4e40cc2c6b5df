package calendar

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConnectionRepository is a PostgreSQL ConnectionRepository.
type PostgresConnectionRepository struct {
	pool *pgxpool.Pool
}

var _ ConnectionRepository = (*PostgresConnectionRepository)(nil)

// NewPostgresConnectionRepository creates a repository backed by pool.
func NewPostgresConnectionRepository(pool *pgxpool.Pool) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{pool: pool}
}

const connectionColumns = `
	id, provider, email, is_connected,
	access_token, refresh_token, expires_at,
	created_at, updated_at`

// List returns all connections.
func (r *PostgresConnectionRepository) List(ctx context.Context) ([]*CalendarConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections ORDER BY provider`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*CalendarConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conns, nil
}

// GetByProvider returns the connection for provider.
func (r *PostgresConnectionRepository) GetByProvider(ctx context.Context, provider Source) (*CalendarConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections WHERE provider = $1`

	c, err := scanConnection(r.pool.QueryRow(ctx, query, string(provider)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	return c, nil
}

// Upsert inserts or replaces the connection for conn.Provider.
func (r *PostgresConnectionRepository) Upsert(ctx context.Context, conn *CalendarConnection) error {
	query := `
		INSERT INTO calendar_connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider) DO UPDATE SET
			email = EXCLUDED.email,
			is_connected = EXCLUDED.is_connected,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		conn.ID,
		string(conn.Provider),
		conn.Email,
		conn.IsConnected,
		conn.AccessToken,
		conn.RefreshToken,
		conn.ExpiresAt,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	return err
}

// Delete removes the connection for provider.
func (r *PostgresConnectionRepository) Delete(ctx context.Context, provider Source) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM calendar_connections WHERE provider = $1`, string(provider))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*CalendarConnection, error) {
	var c CalendarConnection
	var provider string
	err := row.Scan(
		&c.ID,
		&provider,
		&c.Email,
		&c.IsConnected,
		&c.AccessToken,
		&c.RefreshToken,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Provider = Source(provider)
	return &c, nil
}

// PostgresEventRepository is a PostgreSQL EventRepository.
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

var _ EventRepository = (*PostgresEventRepository)(nil)

// NewPostgresEventRepository creates a repository backed by pool.
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// ListInWindow returns events overlapping w ordered by start.
func (r *PostgresEventRepository) ListInWindow(ctx context.Context, w Window) ([]StoredEvent, error) {
	query := `
		SELECT
			id, title, event_type, status,
			starts_at, ends_at, attendees,
			description, location,
			created_at, updated_at
		FROM calendar_events
		WHERE ends_at >= $1 AND starts_at <= $2
		ORDER BY starts_at
	`

	rows, err := r.pool.Query(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var typ, status string
		err := rows.Scan(
			&ev.ID,
			&ev.Title,
			&typ,
			&status,
			&ev.StartsAt,
			&ev.EndsAt,
			&ev.Attendees,
			&ev.Description,
			&ev.Location,
			&ev.CreatedAt,
			&ev.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		ev.Type = EventType(typ)
		ev.Status = EventStatus(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Create inserts ev.
func (r *PostgresEventRepository) Create(ctx context.Context, ev *StoredEvent) error {
	query := `
		INSERT INTO calendar_events (
			id, title, event_type, status,
			starts_at, ends_at, attendees,
			description, location,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		ev.ID,
		ev.Title,
		string(ev.Type),
		string(ev.Status),
		ev.StartsAt,
		ev.EndsAt,
		ev.Attendees,
		ev.Description,
		ev.Location,
		ev.CreatedAt,
		ev.UpdatedAt,
	)
	return err
}

// Delete removes an event by id.
func (r *PostgresEventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}
