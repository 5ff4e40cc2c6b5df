package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "@every 15m", cfg.Worker.SyncSchedule)
	assert.Equal(t, "@every 30s", cfg.Worker.AuthCheckSchedule)
	assert.Equal(t, 5*time.Minute, cfg.ExchangeRate.CacheTTL)
	assert.Equal(t, "common", cfg.Outlook.Tenant)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.PubSub.Enabled())
	assert.False(t, cfg.Google.Enabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("SYNC_SCHEDULE", "*/5 * * * *")
	t.Setenv("CALENDAR_TIME_ZONE", "Europe/Amsterdam")
	t.Setenv("JWT_SIGNING_KEY", "k")

	cfg, err := load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9090", cfg.HTTP.Addr())
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "redis:6379", cfg.Redis.Store().Addr)
	assert.True(t, cfg.Google.Enabled())
	assert.Equal(t, "*/5 * * * *", cfg.Worker.SyncSchedule)
	assert.Equal(t, "k", cfg.Auth.SigningKey)

	loc, err := cfg.Calendar.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAPBOX_ACCESS_TOKEN=pk.test\nSYNC_CONCURRENCY=4\n"), 0o600))

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "pk.test", cfg.Mapbox.AccessToken)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "db port", key: "DB_PORT", val: "70000"},
		{name: "concurrency", key: "SYNC_CONCURRENCY", val: "0"},
		{name: "time zone", key: "CALENDAR_TIME_ZONE", val: "Mars/Olympus"},
		{name: "idle conns", key: "DB_MAX_IDLE_CONNS", val: "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := load("")
			assert.Error(t, err)
		})
	}
}
