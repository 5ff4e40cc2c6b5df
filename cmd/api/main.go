// Package main provides the entrypoint for the eventdesk API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api"
	"github.com/eventdesk/eventdesk/internal/api/handler"
	"github.com/eventdesk/eventdesk/internal/api/middleware"
	"github.com/eventdesk/eventdesk/internal/auth"
	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/providers"
	"github.com/eventdesk/eventdesk/internal/config"
	"github.com/eventdesk/eventdesk/internal/currency"
	"github.com/eventdesk/eventdesk/internal/database"
	"github.com/eventdesk/eventdesk/internal/featureflags"
	"github.com/eventdesk/eventdesk/internal/kvstore"
	"github.com/eventdesk/eventdesk/internal/notify"
	"github.com/eventdesk/eventdesk/internal/places"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
	"github.com/eventdesk/eventdesk/internal/routing"
	"github.com/eventdesk/eventdesk/internal/routing/mapbox"
	"github.com/eventdesk/eventdesk/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "eventdesk-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting eventdesk API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("provider metrics disabled")
	}

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	checks := []handler.DependencyCheck{
		{Name: "postgres", Check: pool.Ping},
	}

	// Key-value store: Redis when configured, in-process otherwise
	var store kvstore.Store = kvstore.NewMemoryStore()
	if cfg.Redis.Enabled() {
		redisClient, err := kvstore.Connect(ctx, cfg.Redis.Store(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()

		redisStore := kvstore.NewRedisStore(redisClient, cfg.Redis.Prefix)
		store = redisStore
		checks = append(checks, handler.DependencyCheck{Name: "redis", Check: redisStore.Ping})
	} else {
		log.Warn().Msg("REDIS_ADDR not set - using in-process key-value store")
	}

	registry := resilience.NewRegistry()

	// Initialize feature flags repository and service
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// JWT verifier
	if cfg.Auth.SigningKey == "" {
		cfg.Auth.SigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token verifier")
	}

	// Routing and places
	var directions routing.Provider
	var geocoder places.Geocoder
	if cfg.Mapbox.AccessToken != "" {
		mapboxClient := mapbox.NewClient(mapbox.ClientConfig{
			AccessToken: cfg.Mapbox.AccessToken,
			BaseURL:     cfg.Mapbox.BaseURL,
			Timeout:     cfg.Mapbox.Timeout,
			Registry:    registry,
			Metrics:     providerMetrics,
			Logger:      log,
		})
		directions = mapboxClient
		geocoder = mapboxClient
	} else {
		log.Warn().Msg("Mapbox not configured - routes use straight-line estimates")
	}

	navigator := routing.NewNavigator(
		routing.NewEstimator(routing.EstimatorConfig{
			Provider:        directions,
			Logger:          log,
			ProviderEnabled: ffService.Toggle(featureflags.FlagRoutingProviderEnabled),
		}),
		ffService.Toggle(featureflags.FlagStrictRequestOrdering),
	)
	placesService := places.NewService(places.ServiceConfig{
		Store:    store,
		Geocoder: geocoder,
		Logger:   log,
	})
	log.Info().Msg("routing service initialized")

	// Calendar
	connRepo := calendar.NewPostgresConnectionRepository(pool)
	calendarProviders, err := providers.Build(ctx, providers.Config{
		Google:      cfg.Google,
		Outlook:     cfg.Outlook,
		Connections: connRepo,
		Registry:    registry,
		Logger:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize calendar providers")
	}
	if err := calendarProviders.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore calendar sessions")
	}

	location, _ := cfg.Calendar.Location()
	aggregator := calendar.NewAggregator(calendar.AggregatorConfig{
		Google:        calendarProviders.GoogleProvider(),
		Outlook:       calendarProviders.OutlookProvider(),
		Connections:   connRepo,
		Events:        calendar.NewPostgresEventRepository(pool),
		Cache:         store,
		CacheTTL:      cfg.Calendar.CacheTTL,
		Formatter:     calendar.TimeFormatter{Location: location},
		Logger:        log,
		Metrics:       providerMetrics,
		CacheFallback: ffService.Toggle(featureflags.FlagCalendarCacheFallback),
		Ordering:      ffService.Toggle(featureflags.FlagStrictRequestOrdering),
	})

	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub client")
		}
		defer psClient.Close()

		alerts := notify.NewPubSubNotifier(psClient, cfg.PubSub.AlertsTopic)
		defer alerts.Stop()
		notifiers = append(notifiers, alerts)
	}

	manager := calendar.NewConnectionManager(calendar.ConnectionManagerConfig{
		Providers:   calendarProviders.Authenticators(),
		Connections: connRepo,
		Aggregator:  aggregator,
		Notifier: notify.Gated{
			Next:       notifiers,
			Suppressed: ffService.Toggle(featureflags.FlagDisableAlertsSending),
			Logger:     log,
		},
		Logger: log,
	})
	manager.Sync(ctx)

	monitor, err := calendar.NewAuthMonitor(calendar.AuthMonitorConfig{
		Manager:  manager,
		Schedule: cfg.Worker.AuthCheckSchedule,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule calendar auth monitor")
	}
	monitor.Start()
	defer monitor.Stop()

	log.Info().
		Int("providers", len(manager.Sources())).
		Msg("calendar service initialized")

	// Currency
	var rates currency.RateProvider
	if cfg.ExchangeRate.APIKey != "" {
		rates = currency.NewClient(currency.ClientConfig{
			APIKey:   cfg.ExchangeRate.APIKey,
			BaseURL:  cfg.ExchangeRate.BaseURL,
			Registry: registry,
			Metrics:  providerMetrics,
			Logger:   log,
		})
	} else {
		log.Warn().Msg("exchange rate API not configured - using static rates")
	}
	currencyService := currency.NewService(currency.ServiceConfig{
		Rates:     rates,
		CacheTTL:  cfg.ExchangeRate.CacheTTL,
		LiveRates: ffService.Toggle(featureflags.FlagCurrencyLiveRates),
		Metrics:   providerMetrics,
		Logger:    log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		RequireTLS:         cfg.HTTP.RequireTLS,
		Verifier:           verifier,
		Checks:             checks,
		Registry:           registry,
		FeatureFlagService: ffService,
		Navigator:          navigator,
		Aggregator:         aggregator,
		Connections:        manager,
		ConnectionRepo:     connRepo,
		CurrencyService:    currencyService,
		PlacesService:      placesService,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
