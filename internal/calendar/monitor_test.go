package calendar

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthMonitor_InvalidSchedule(t *testing.T) {
	_, err := NewAuthMonitor(AuthMonitorConfig{Schedule: "every now and then", Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestAuthMonitor_CheckAndLifecycle(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.manager.Sync(ctx)

	m, err := NewAuthMonitor(AuthMonitorConfig{Manager: f.manager, Logger: zerolog.Nop()})
	require.NoError(t, err)

	m.Start()
	defer m.Stop()

	f.google.setAuthenticated(false)
	assert.Equal(t, []Source{SourceGoogle}, m.Check(ctx))
	assert.Equal(t, StateDisconnected, f.manager.State(SourceGoogle))
}
