// Package api provides the HTTP API for eventdesk.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api/handler"
	"github.com/eventdesk/eventdesk/internal/api/middleware"
	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/currency"
	"github.com/eventdesk/eventdesk/internal/featureflags"
	"github.com/eventdesk/eventdesk/internal/places"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
	"github.com/eventdesk/eventdesk/internal/routing"
)

// RouterConfig holds configuration for the router. Nil services leave
// their routes unmounted.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Verifier middleware.TokenVerifier

	Checks             []handler.DependencyCheck
	Registry           *resilience.Registry
	FeatureFlagService *featureflags.Service
	Navigator          *routing.Navigator
	Aggregator         *calendar.Aggregator
	Connections        *calendar.ConnectionManager
	ConnectionRepo     calendar.ConnectionRepository
	CurrencyService    *currency.Service
	PlacesService      *places.Service
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "eventdesk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.Checks,
		Registry:  cfg.Registry,
		Flags:     cfg.FeatureFlagService,
	})

	authMiddleware := middleware.Auth(cfg.Verifier)

	connectRateLimit := middleware.RateLimitByUser(middleware.ConnectRateLimit)         // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)       // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)         // 100 req/min
	userRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)           // 100 req/min per user
	userExpensiveRateLimit := middleware.RateLimitByUser(middleware.ExpensiveRateLimit) // 30 req/min per user

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Navigator != nil {
			routeHandler := handler.NewRouteHandler(cfg.Navigator)

			r.With(standardRateLimit).Get("/geo/distance", routeHandler.Distance)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.With(userExpensiveRateLimit).Post("/routes:compute", routeHandler.ComputeRoute)
				r.With(userRateLimit).Get("/routes/current", routeHandler.CurrentRoute)
				r.With(userRateLimit).Delete("/routes/current", routeHandler.ClearRoute)
			})
		}

		if cfg.PlacesService != nil {
			placesHandler := handler.NewPlacesHandler(cfg.PlacesService, cfg.Logger)

			r.With(expensiveRateLimit).Get("/places/search", placesHandler.Search)

			r.Route("/me", func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(userRateLimit)

				r.Route("/pins", func(r chi.Router) {
					r.Get("/", placesHandler.ListPins)
					r.Post("/", placesHandler.CreatePin)
					r.Delete("/{pinId}", placesHandler.DeletePin)
				})
				r.Route("/areas", func(r chi.Router) {
					r.Get("/", placesHandler.ListAreas)
					r.Post("/", placesHandler.CreateArea)
					r.Delete("/{areaId}", placesHandler.DeleteArea)
				})
			})
		}

		if cfg.Aggregator != nil && cfg.Connections != nil {
			calendarHandler := handler.NewCalendarHandler(handler.CalendarHandlerConfig{
				Aggregator:  cfg.Aggregator,
				Manager:     cfg.Connections,
				Connections: cfg.ConnectionRepo,
				Logger:      cfg.Logger,
			})

			r.Route("/calendar", func(r chi.Router) {
				r.Use(authMiddleware)

				r.Group(func(r chi.Router) {
					r.Use(userRateLimit)
					r.Get("/events", calendarHandler.ListEvents)
					r.Post("/events", calendarHandler.CreateEvent)
					r.Get("/events/upcoming", calendarHandler.UpcomingEvents)
					r.Get("/events.ics", calendarHandler.ExportEvents)
					r.Delete("/events/{eventId}", calendarHandler.DeleteEvent)
					r.Get("/connections", calendarHandler.ListConnections)
				})

				// Provider sign-in hits third-party token endpoints.
				r.Group(func(r chi.Router) {
					r.Use(connectRateLimit)
					r.Post("/connections/{provider}:connect", calendarHandler.Connect)
					r.Post("/connections/{provider}:refresh", calendarHandler.RefreshConnection)
					r.Delete("/connections/{provider}", calendarHandler.Disconnect)
				})
			})
		}

		if cfg.CurrencyService != nil {
			currencyHandler := handler.NewCurrencyHandler(cfg.CurrencyService, cfg.Logger)
			r.With(standardRateLimit).Get("/currency/convert", currencyHandler.Convert)
		}

		if cfg.FeatureFlagService != nil {
			featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

			// Admin endpoints (authenticated) - for internal operations
			r.Route("/admin", func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(standardRateLimit)

				r.Route("/feature-flags", func(r chi.Router) {
					r.Get("/", featureFlagsHandler.ListFeatureFlags)
					r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
					r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
				})
			})
		}
	})

	return r
}
