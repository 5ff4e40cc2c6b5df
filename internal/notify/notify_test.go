package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Alert) error { return f.err }

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	alert := Alert{
		Kind:       KindCalendarDisconnected,
		Source:     "outlook",
		Title:      "Outlook disconnected",
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	err := Multi{a, nil, b, NewLogNotifier(zerolog.Nop())}.Notify(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, []Alert{alert}, a.Alerts())
	assert.Equal(t, []Alert{alert}, b.Alerts())
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := NewRecorder()

	err := Multi{failingNotifier{err: boom}, rec}.Notify(context.Background(), Alert{Kind: KindCalendarSyncFailed})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Alerts(), 1)
}

func TestGated_SuppressesWhileDisabled(t *testing.T) {
	rec := NewRecorder()
	suppressed := true
	g := Gated{Next: rec, Suppressed: func() bool { return suppressed }, Logger: zerolog.Nop()}

	require.NoError(t, g.Notify(context.Background(), Alert{Kind: KindCalendarSyncFailed}))
	assert.Empty(t, rec.Alerts())

	suppressed = false
	require.NoError(t, g.Notify(context.Background(), Alert{Kind: KindCalendarSyncFailed}))
	assert.Len(t, rec.Alerts(), 1)
}

func TestGated_NilNext(t *testing.T) {
	assert.NoError(t, Gated{}.Notify(context.Background(), Alert{}))
}
