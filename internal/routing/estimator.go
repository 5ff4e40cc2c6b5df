package routing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/geo"
)

// EstimatorConfig holds configuration for the route estimator.
type EstimatorConfig struct {
	// Provider is the directions provider. Nil means every estimate is a fallback.
	Provider Provider

	// Logger for estimator operations.
	Logger zerolog.Logger

	// ProviderEnabled gates provider calls at runtime. Nil means always enabled.
	ProviderEnabled func() bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Estimator computes route estimates.
type Estimator struct {
	provider        Provider
	logger          zerolog.Logger
	providerEnabled func() bool
	now             func() time.Time
}

// NewEstimator creates a new estimator.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	enabled := cfg.ProviderEnabled
	if enabled == nil {
		enabled = func() bool { return true }
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Estimator{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		providerEnabled: enabled,
		now:             now,
	}
}

// ComputeRoute returns a route from start to end for mode. It never fails:
// when the provider errors, finds nothing, or returns unusable data the
// result is a straight segment with a flat-earth distance. The provider is
// asked once. Duration is always derived from the mode's fixed speed.
func (e *Estimator) ComputeRoute(ctx context.Context, start, end geo.Point, mode TravelMode) *Route {
	route := &Route{
		ID:        "rte_" + uuid.New().String()[:22],
		Start:     start,
		End:       end,
		Mode:      mode,
		CreatedAt: e.now(),
	}

	if pr, err := e.fetch(ctx, start, end, mode); err == nil {
		route.Geometry = pr.Geometry
		route.DistanceMeters = pr.DistanceMeters
		route.Steps = pr.Steps
		if route.Steps == nil {
			route.Steps = []Step{}
		}
		route.Source = SourceProvider
		route.Provider = e.provider.Name()
	} else {
		if !errors.Is(err, errProviderSkipped) {
			e.logger.Warn().Err(err).
				Float64("start_lat", start.Lat).
				Float64("start_lon", start.Lon).
				Float64("end_lat", end.Lat).
				Float64("end_lon", end.Lon).
				Str("mode", string(mode)).
				Msg("directions unavailable, using straight-line estimate")
		}
		route.Geometry = []geo.Point{start, end}
		route.DistanceMeters = geo.FlatEarthApproxDistanceKm(start, end) * 1000
		route.Steps = []Step{}
		route.Source = SourceFallback
	}

	route.DurationSeconds = DurationSeconds(route.DistanceMeters, mode)

	e.logger.Debug().
		Str("route_id", route.ID).
		Str("source", string(route.Source)).
		Float64("distance_m", route.DistanceMeters).
		Float64("duration_s", route.DurationSeconds).
		Msg("route estimated")

	return route
}

var errProviderSkipped = errors.New("directions provider disabled")

func (e *Estimator) fetch(ctx context.Context, start, end geo.Point, mode TravelMode) (*ProviderRoute, error) {
	if e.provider == nil || !e.providerEnabled() {
		return nil, errProviderSkipped
	}

	resp, err := e.provider.GetDirections(ctx, DirectionsRequest{
		Origin:      start,
		Destination: end,
		Profile:     ProfileForMode(mode),
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Routes) == 0 {
		return nil, &Error{
			Provider: e.provider.Name(),
			Code:     "NO_ROUTES",
			Message:  "provider returned no routes",
			Err:      ErrNoRouteFound,
		}
	}

	pr := resp.Routes[0]
	if len(pr.Geometry) < 2 || pr.DistanceMeters < 0 || math.IsNaN(pr.DistanceMeters) || math.IsInf(pr.DistanceMeters, 0) {
		return nil, &Error{
			Provider: e.provider.Name(),
			Code:     "MALFORMED_ROUTE",
			Message:  "provider route is unusable",
			Err:      ErrMalformedResponse,
		}
	}

	return &pr, nil
}
