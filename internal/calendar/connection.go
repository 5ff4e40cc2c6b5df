package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/notify"
)

// ConnectionState is a provider's place in the connect lifecycle.
type ConnectionState string

// Connection states.
const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateTokenExpired ConnectionState = "token_expired"
)

// Outcome is how a connect attempt ended.
type Outcome string

// Connect outcomes.
const (
	OutcomeConnected Outcome = "connected"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// ConnectResult reports a connect attempt.
type ConnectResult struct {
	Source  Source          `json:"source"`
	Outcome Outcome         `json:"outcome"`
	State   ConnectionState `json:"state"`
	Err     error           `json:"-"`
}

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	Providers   []Authenticator
	Connections ConnectionRepository
	Aggregator  *Aggregator
	Notifier    notify.Notifier
	Logger      zerolog.Logger
	Now         func() time.Time
}

// ConnectionManager drives each provider through
// Disconnected → Connecting → Connected → TokenExpired → Disconnected.
type ConnectionManager struct {
	providers   map[Source]Authenticator
	connections ConnectionRepository
	aggregator  *Aggregator
	notifier    notify.Notifier
	logger      zerolog.Logger
	now         func() time.Time

	mu     sync.Mutex
	states map[Source]ConnectionState
}

// NewConnectionManager creates a manager with every provider disconnected.
func NewConnectionManager(cfg ConnectionManagerConfig) *ConnectionManager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &ConnectionManager{
		providers:   make(map[Source]Authenticator, len(cfg.Providers)),
		connections: cfg.Connections,
		aggregator:  cfg.Aggregator,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
		now:         now,
		states:      make(map[Source]ConnectionState, len(cfg.Providers)),
	}
	for _, p := range cfg.Providers {
		m.providers[p.Source()] = p
		m.states[p.Source()] = StateDisconnected
	}
	return m
}

// Sources returns the managed providers in merge order.
func (m *ConnectionManager) Sources() []Source {
	out := make([]Source, 0, len(m.providers))
	for _, s := range mergeOrder {
		if _, ok := m.providers[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// State returns the current state of src.
func (m *ConnectionManager) State(src Source) ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[src]; ok {
		return st
	}
	return StateDisconnected
}

// States returns a snapshot of every provider's state.
func (m *ConnectionManager) States() map[Source]ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[Source]ConnectionState, len(m.states))
	for s, st := range m.states {
		out[s] = st
	}
	return out
}

func (m *ConnectionManager) setState(src Source, st ConnectionState) {
	m.mu.Lock()
	prev := m.states[src]
	m.states[src] = st
	m.mu.Unlock()

	if prev != st {
		m.logger.Debug().
			Str("source", string(src)).
			Str("from", string(prev)).
			Str("to", string(st)).
			Msg("calendar connection state changed")
	}
}

// Sync aligns states with what each provider reports. Call it at startup.
func (m *ConnectionManager) Sync(ctx context.Context) {
	for _, src := range m.Sources() {
		if m.providers[src].IsAuthenticated(ctx) {
			m.setState(src, StateConnected)
		} else {
			m.setState(src, StateDisconnected)
		}
	}
}

// Connect runs the provider sign-in with grant. Cancellation and failure
// both leave the provider Disconnected; the outcome tells them apart.
// A successful connect refreshes the aggregator.
func (m *ConnectionManager) Connect(ctx context.Context, src Source, grant Grant) (ConnectResult, error) {
	p, ok := m.providers[src]
	if !ok {
		return ConnectResult{}, ErrUnknownProvider
	}

	m.mu.Lock()
	if m.states[src] == StateConnecting {
		m.mu.Unlock()
		return ConnectResult{}, ErrConnectInProgress
	}
	m.states[src] = StateConnecting
	m.mu.Unlock()

	signedIn, err := p.SignIn(ctx, grant)
	switch {
	case errors.Is(err, ErrSignInCancelled) || (err == nil && !signedIn):
		m.setState(src, StateDisconnected)
		m.logger.Info().Str("source", string(src)).Msg("calendar sign-in cancelled")
		return ConnectResult{Source: src, Outcome: OutcomeCancelled, State: StateDisconnected}, nil

	case err != nil:
		m.setState(src, StateDisconnected)
		m.logger.Error().Err(err).Str("source", string(src)).Msg("calendar sign-in failed")
		return ConnectResult{Source: src, Outcome: OutcomeFailed, State: StateDisconnected, Err: err}, nil
	}

	m.setState(src, StateConnected)
	if err := m.markConnected(ctx, src, true); err != nil {
		m.logger.Warn().Err(err).Str("source", string(src)).Msg("failed to persist calendar connection")
	}

	m.logger.Info().Str("source", string(src)).Msg("calendar connected")

	if m.aggregator != nil {
		m.aggregator.Refresh(ctx, Window{})
	}

	return ConnectResult{Source: src, Outcome: OutcomeConnected, State: StateConnected}, nil
}

// Refresh trades the stored refresh token of src for a new access token.
// Success moves the provider to Connected and refreshes the aggregator.
// A rejected refresh token expires the connection. A provider with no
// refresh token reports ErrNotAuthenticated in the result.
func (m *ConnectionManager) Refresh(ctx context.Context, src Source) (ConnectResult, error) {
	p, ok := m.providers[src]
	if !ok {
		return ConnectResult{}, ErrUnknownProvider
	}
	if m.State(src) == StateConnecting {
		return ConnectResult{}, ErrConnectInProgress
	}

	refreshed, err := p.RefreshToken(ctx)
	switch {
	case errors.Is(err, ErrTokenExpired):
		m.Expire(ctx, src)
		return ConnectResult{Source: src, Outcome: OutcomeFailed, State: StateDisconnected, Err: err}, nil

	case errors.Is(err, ErrNotAuthenticated) || (err == nil && !refreshed):
		m.logger.Info().Str("source", string(src)).Msg("calendar has no refresh token")
		return ConnectResult{Source: src, Outcome: OutcomeFailed, State: m.State(src), Err: ErrNotAuthenticated}, nil

	case err != nil && !refreshed:
		m.logger.Error().Err(err).Str("source", string(src)).Msg("calendar token refresh failed")
		return ConnectResult{Source: src, Outcome: OutcomeFailed, State: m.State(src), Err: err}, nil

	case err != nil:
		m.logger.Warn().Err(err).Str("source", string(src)).Msg("calendar token refreshed but not saved")
	}

	m.setState(src, StateConnected)
	if err := m.markConnected(ctx, src, true); err != nil {
		m.logger.Warn().Err(err).Str("source", string(src)).Msg("failed to persist calendar connection")
	}

	m.logger.Info().Str("source", string(src)).Msg("calendar token refreshed")

	if m.aggregator != nil {
		m.aggregator.Refresh(ctx, Window{})
	}

	return ConnectResult{Source: src, Outcome: OutcomeConnected, State: StateConnected}, nil
}

// Disconnect signs out of src and removes its events.
func (m *ConnectionManager) Disconnect(ctx context.Context, src Source) error {
	p, ok := m.providers[src]
	if !ok {
		return ErrUnknownProvider
	}

	var signOutErr error
	if err := p.SignOut(ctx); err != nil {
		signOutErr = fmt.Errorf("signing out of %s: %w", src, err)
		m.logger.Warn().Err(err).Str("source", string(src)).Msg("calendar sign-out failed")
	}

	if m.aggregator != nil {
		m.aggregator.PurgeSource(src)
	}
	if err := m.markConnected(ctx, src, false); err != nil && !errors.Is(err, ErrConnectionNotFound) {
		m.logger.Warn().Err(err).Str("source", string(src)).Msg("failed to persist calendar disconnect")
	}
	m.setState(src, StateDisconnected)

	m.logger.Info().Str("source", string(src)).Msg("calendar disconnected")
	return signOutErr
}

// Expire handles a lost token: events from src are purged at once, the
// user is notified and the provider ends up Disconnected.
func (m *ConnectionManager) Expire(ctx context.Context, src Source) {
	m.setState(src, StateTokenExpired)

	purged := 0
	if m.aggregator != nil {
		purged = m.aggregator.PurgeSource(src)
	}

	if err := m.markConnected(ctx, src, false); err != nil && !errors.Is(err, ErrConnectionNotFound) {
		m.logger.Warn().Err(err).Str("source", string(src)).Msg("failed to persist calendar expiry")
	}

	if m.notifier != nil {
		alert := notify.Alert{
			Kind:       notify.KindCalendarDisconnected,
			Source:     string(src),
			Title:      "Calendar disconnected",
			Message:    fmt.Sprintf("Your %s calendar session expired. Reconnect to see its events.", src),
			OccurredAt: m.now(),
		}
		if err := m.notifier.Notify(ctx, alert); err != nil {
			m.logger.Warn().Err(err).Str("source", string(src)).Msg("failed to send calendar alert")
		}
	}

	m.setState(src, StateDisconnected)

	m.logger.Warn().
		Str("source", string(src)).
		Int("purged", purged).
		Msg("calendar token expired")
}

// CheckAuth expires every Connected provider that no longer reports a
// valid session and returns the expired sources.
func (m *ConnectionManager) CheckAuth(ctx context.Context) []Source {
	var expired []Source
	for _, src := range m.Sources() {
		if m.State(src) != StateConnected {
			continue
		}
		if m.providers[src].IsAuthenticated(ctx) {
			continue
		}
		m.Expire(ctx, src)
		expired = append(expired, src)
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	return expired
}

func (m *ConnectionManager) markConnected(ctx context.Context, src Source, connected bool) error {
	if m.connections == nil {
		return nil
	}

	now := m.now()
	conn, err := m.connections.GetByProvider(ctx, src)
	if errors.Is(err, ErrConnectionNotFound) {
		if !connected {
			return err
		}
		conn = &CalendarConnection{
			ID:        "conn_" + uuid.New().String()[:22],
			Provider:  src,
			CreatedAt: now,
		}
	} else if err != nil {
		return err
	}

	conn.IsConnected = connected
	conn.UpdatedAt = now
	return m.connections.Upsert(ctx, conn)
}
