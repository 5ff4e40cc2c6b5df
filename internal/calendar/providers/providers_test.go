package providers_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/providers"
	"github.com/eventdesk/eventdesk/internal/config"
)

func TestBuild_NothingConfigured(t *testing.T) {
	set, err := providers.Build(context.Background(), providers.Config{
		Connections: calendar.NewInMemoryConnectionRepository(),
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Nil(t, set.GoogleProvider())
	assert.Nil(t, set.OutlookProvider())
	assert.Empty(t, set.Authenticators())
	assert.Empty(t, set.Diagnosers())
	assert.NoError(t, set.Load(context.Background()))
}

func TestBuild_LoadsStoredTokens(t *testing.T) {
	ctx := context.Background()
	repo := calendar.NewInMemoryConnectionRepository()
	require.NoError(t, repo.Upsert(ctx, &calendar.CalendarConnection{
		ID:          "conn_outlook",
		Provider:    calendar.SourceOutlook,
		IsConnected: true,
		AccessToken: "stored-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	set, err := providers.Build(ctx, providers.Config{
		Google: config.OAuthProviderConfig{ClientID: "g-id", ClientSecret: "g-secret"},
		Outlook: config.OAuthProviderConfig{
			ClientID:     "o-id",
			ClientSecret: "o-secret",
			Tenant:       "common",
		},
		Connections: repo,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NotNil(t, set.GoogleProvider())
	require.NotNil(t, set.OutlookProvider())
	assert.Len(t, set.Authenticators(), 2)
	assert.Len(t, set.Diagnosers(), 2)

	require.NoError(t, set.Load(ctx))
	assert.True(t, set.Outlook.IsAuthenticated(ctx))
	assert.False(t, set.Google.IsAuthenticated(ctx))
}
