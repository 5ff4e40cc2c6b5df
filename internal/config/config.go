// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eventdesk/eventdesk/internal/auth"
	"github.com/eventdesk/eventdesk/internal/database"
	"github.com/eventdesk/eventdesk/internal/kvstore"
)

// Config is the complete process configuration.
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Database     database.Config
	Redis        RedisConfig
	Mapbox       MapboxConfig
	Google       OAuthProviderConfig
	Outlook      OAuthProviderConfig
	Calendar     CalendarConfig
	ExchangeRate ExchangeRateConfig
	Telemetry    TelemetryConfig
	Auth         auth.Config
	Worker       WorkerConfig
	PubSub       PubSubConfig
}

// AppConfig identifies the running process.
type AppConfig struct {
	Env      string
	LogLevel string
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RequireTLS   bool
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return ":" + c.Port
}

// RedisConfig configures the key-value store. An empty Addr selects the
// in-process store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Store returns the kvstore connection settings.
func (c RedisConfig) Store() kvstore.RedisConfig {
	return kvstore.RedisConfig{Addr: c.Addr, Password: c.Password, DB: c.DB, Prefix: c.Prefix}
}

// MapboxConfig configures directions and geocoding.
type MapboxConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// OAuthProviderConfig holds the OAuth client of one calendar provider.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Tenant is used by Microsoft identity only.
	Tenant string
}

// Enabled reports whether the provider has client credentials.
func (c OAuthProviderConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// CalendarConfig tunes the aggregator.
type CalendarConfig struct {
	TimeZone string
	CacheTTL time.Duration
}

// Location resolves TimeZone, defaulting to UTC.
func (c CalendarConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// ExchangeRateConfig configures the currency rates API.
type ExchangeRateConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// WorkerConfig configures background jobs.
type WorkerConfig struct {
	SyncSchedule      string
	AuthCheckSchedule string
	Concurrency       int
	Timeout           time.Duration
}

// PubSubConfig configures messaging. An empty ProjectID disables it.
type PubSubConfig struct {
	ProjectID        string
	SyncSubscription string
	AlertsTopic      string
}

// Enabled reports whether Pub/Sub is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "15s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "60s")
	v.SetDefault("REQUIRE_TLS", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "eventdesk")
	v.SetDefault("DB_PASSWORD", "localdev")
	v.SetDefault("DB_NAME", "eventdesk")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "eventdesk:")

	v.SetDefault("MAPBOX_BASE_URL", "https://api.mapbox.com")
	v.SetDefault("MAPBOX_TIMEOUT", "10s")

	v.SetDefault("GOOGLE_REDIRECT_URL", "")
	v.SetDefault("OUTLOOK_TENANT", "common")

	v.SetDefault("CALENDAR_TIME_ZONE", "UTC")
	v.SetDefault("CALENDAR_CACHE_TTL", "168h")

	v.SetDefault("EXCHANGE_RATE_BASE_URL", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("EXCHANGE_RATE_CACHE_TTL", "5m")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "eventdesk-api")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("SYNC_SCHEDULE", "@every 15m")
	v.SetDefault("AUTH_CHECK_SCHEDULE", "@every 30s")
	v.SetDefault("SYNC_CONCURRENCY", 2)
	v.SetDefault("SYNC_TIMEOUT", "30s")

	v.SetDefault("PUBSUB_SYNC_SUBSCRIPTION", "eventdesk-worker-jobs")
	v.SetDefault("PUBSUB_ALERTS_TOPIC", "eventdesk-alerts")
}

// Load reads configuration from the environment. Values in a .env file
// in the working directory are used when the variable is not set.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Port:         v.GetString("APP_PORT"),
			ReadTimeout:  v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("HTTP_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("HTTP_IDLE_TIMEOUT"),
			RequireTLS:   v.GetBool("REQUIRE_TLS"),
		},
		Database: database.Config{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		Mapbox: MapboxConfig{
			AccessToken: v.GetString("MAPBOX_ACCESS_TOKEN"),
			BaseURL:     v.GetString("MAPBOX_BASE_URL"),
			Timeout:     v.GetDuration("MAPBOX_TIMEOUT"),
		},
		Google: OAuthProviderConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		},
		Outlook: OAuthProviderConfig{
			ClientID:     v.GetString("OUTLOOK_CLIENT_ID"),
			ClientSecret: v.GetString("OUTLOOK_CLIENT_SECRET"),
			RedirectURL:  v.GetString("OUTLOOK_REDIRECT_URL"),
			Tenant:       v.GetString("OUTLOOK_TENANT"),
		},
		Calendar: CalendarConfig{
			TimeZone: v.GetString("CALENDAR_TIME_ZONE"),
			CacheTTL: v.GetDuration("CALENDAR_CACHE_TTL"),
		},
		ExchangeRate: ExchangeRateConfig{
			APIKey:   v.GetString("EXCHANGE_RATE_API_KEY"),
			BaseURL:  v.GetString("EXCHANGE_RATE_BASE_URL"),
			CacheTTL: v.GetDuration("EXCHANGE_RATE_CACHE_TTL"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Auth: auth.Config{
			SigningKey: v.GetString("JWT_SIGNING_KEY"),
			Issuer:     v.GetString("JWT_ISSUER"),
			Audience:   v.GetString("JWT_AUDIENCE"),
			Leeway:     v.GetDuration("JWT_LEEWAY"),
		},
		Worker: WorkerConfig{
			SyncSchedule:      v.GetString("SYNC_SCHEDULE"),
			AuthCheckSchedule: v.GetString("AUTH_CHECK_SCHEDULE"),
			Concurrency:       v.GetInt("SYNC_CONCURRENCY"),
			Timeout:           v.GetDuration("SYNC_TIMEOUT"),
		},
		PubSub: PubSubConfig{
			ProjectID:        v.GetString("PUBSUB_PROJECT_ID"),
			SyncSubscription: v.GetString("PUBSUB_SYNC_SUBSCRIPTION"),
			AlertsTopic:      v.GetString("PUBSUB_ALERTS_TOPIC"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("APP_PORT must not be empty"))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT %d out of range", c.Database.Port))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, errors.New("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("SYNC_CONCURRENCY must be positive"))
	}
	if _, err := c.Calendar.Location(); err != nil {
		errs = append(errs, fmt.Errorf("CALENDAR_TIME_ZONE: %w", err))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}
