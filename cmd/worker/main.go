// Package main provides the entrypoint for the eventdesk calendar sync worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api/handler"
	"github.com/eventdesk/eventdesk/internal/api/middleware"
	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/providers"
	"github.com/eventdesk/eventdesk/internal/config"
	"github.com/eventdesk/eventdesk/internal/database"
	"github.com/eventdesk/eventdesk/internal/featureflags"
	"github.com/eventdesk/eventdesk/internal/kvstore"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
	"github.com/eventdesk/eventdesk/internal/telemetry"
	"github.com/eventdesk/eventdesk/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "eventdesk-worker"

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
		Msg("starting eventdesk worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("provider metrics disabled")
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	checks := []handler.DependencyCheck{
		{Name: "postgres", Check: pool.Ping},
	}

	// The worker only helps when the API can read what it caches.
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
		log.Warn().Msg("REDIS_ADDR not set - synced events stay in this process")
	}

	registry := resilience.NewRegistry()
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

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

	location, _ := cfg.Calendar.Location()
	aggregator := calendar.NewAggregator(calendar.AggregatorConfig{
		Google:      calendarProviders.GoogleProvider(),
		Outlook:     calendarProviders.OutlookProvider(),
		Connections: connRepo,
		Cache:       store,
		CacheTTL:    cfg.Calendar.CacheTTL,
		Formatter:   calendar.TimeFormatter{Location: location},
		Logger:      log,
		Metrics:     providerMetrics,
	})

	syncJob := worker.NewSyncJob(worker.SyncJobConfig{
		Config: worker.SyncConfig{
			Concurrency: cfg.Worker.Concurrency,
			Timeout:     cfg.Worker.Timeout,
		},
		Fetcher:     aggregator,
		Connections: connRepo,
		Sessions:    []worker.SessionLoader{calendarProviders},
		Diagnosers:  calendarProviders.Diagnosers(),
		Logger:      log,
	})

	scheduler, err := worker.NewScheduler(syncJob, cfg.Worker.SyncSchedule, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule calendar sync")
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.PubSub.Enabled() {
		psHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.SyncSubscription,
			SyncJob:          syncJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer psHandler.Close()

		go func() {
			if err := psHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("PUBSUB_PROJECT_ID not set - running on schedule only")
	}

	// Worker also exposes health endpoints for Cloud Run
	ops := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Checks:    checks,
		Registry:  registry,
		Flags:     ffService,
	})

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recovery(log))
	mux.Use(middleware.ContentTypeJSON)
	mux.Get("/health", ops.HealthCheck)
	mux.Get("/ready", ops.ReadinessCheck)
	mux.Get("/status", ops.SystemStatus)
	mux.Get("/metrics/sync", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, syncJob.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
