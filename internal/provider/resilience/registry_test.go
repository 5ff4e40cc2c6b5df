package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdesk/eventdesk/internal/provider/resilience"
)

func newRegisteredClient(t *testing.T, registry *resilience.Registry, name string) *resilience.Client {
	t.Helper()
	cfg := resilience.DefaultClientConfig(name)
	cfg.MaxRetries = 0
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestRegistry_RegisteredOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newRegisteredClient(t, registry, "mapbox")

	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, "mapbox", client.Name())

	health := registry.GetHealth("mapbox")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.ConditionHealthy, health.Condition())
	assert.Zero(t, health.Trips)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_ClientRecordsOutcomes(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := newRegisteredClient(t, registry, "outlook")

	do := func() {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	do()
	health := registry.GetHealth("outlook")
	require.NotNil(t, health.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)

	status = http.StatusBadGateway
	do()
	health = registry.GetHealth("outlook")
	require.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Bad Gateway")
}

func TestRegistry_RecordsBreakerTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := newRegisteredClient(t, registry, "mapbox")

	for i := 0; i < 5; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		resp, _ := client.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
	}

	health := registry.GetHealth("mapbox")
	require.NotNil(t, health)
	assert.Equal(t, resilience.ConditionUnavailable, health.Condition())
	assert.Equal(t, 1, health.Trips)
	assert.NotNil(t, health.OpenedAt)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = newRegisteredClient(t, registry, "google")
	_ = newRegisteredClient(t, registry, "google")

	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_GetAllHealthSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"outlook", "exchangerate", "mapbox"} {
		_ = newRegisteredClient(t, registry, name)
	}

	health := registry.GetAllHealth()
	require.Len(t, health, 3)
	assert.Equal(t, "exchangerate", health[0].Name)
	assert.Equal(t, "mapbox", health[1].Name)
	assert.Equal(t, "outlook", health[2].Name)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.Nil(t, registry.GetHealth("nonexistent"))
	assert.NotPanics(t, func() {
		registry.RecordSuccess("nonexistent")
		registry.RecordFailure("nonexistent", assert.AnError)
	})
}

func TestProviderHealth_Condition(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  resilience.Condition
	}{
		{gobreaker.StateClosed, resilience.ConditionHealthy},
		{gobreaker.StateHalfOpen, resilience.ConditionDegraded},
		{gobreaker.StateOpen, resilience.ConditionUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.want, h.Condition())
		})
	}
}
