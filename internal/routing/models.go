// Package routing estimates routes and travel times between two points.
// A directions provider supplies geometry when it answers; otherwise a
// straight-line estimate is produced. Durations always come from the
// fixed per-mode speed table.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/eventdesk/eventdesk/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrMalformedResponse indicates the provider answered with data that cannot be used.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrUnknownMode is returned when parsing an unrecognised travel mode.
	ErrUnknownMode = errors.New("unknown travel mode")
)

// Provider defines the interface for directions providers.
type Provider interface {
	// GetDirections retrieves route directions between two points.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Profile is the provider-side routing profile.
type Profile string

// Provider profiles. Every transit mode is requested as driving.
const (
	ProfileWalking Profile = "walking"
	ProfileCycling Profile = "cycling"
	ProfileDriving Profile = "driving"
)

// DirectionsRequest is the request sent to a provider.
type DirectionsRequest struct {
	Origin      geo.Point
	Destination geo.Point
	Profile     Profile
}

// DirectionsResponse is a provider's answer.
type DirectionsResponse struct {
	Routes    []ProviderRoute
	Provider  string
	FetchedAt time.Time
}

// ProviderRoute is one route alternative as reported by a provider.
// DurationSeconds is informational only; estimates never use it.
type ProviderRoute struct {
	Geometry        []geo.Point
	DistanceMeters  float64
	DurationSeconds float64
	Steps           []Step
}

// Step is a single turn-by-turn instruction.
type Step struct {
	Instruction    string    `json:"instruction"`
	Name           string    `json:"name,omitempty"`
	Maneuver       string    `json:"maneuver,omitempty"`
	DistanceMeters float64   `json:"distanceMeters"`
	Location       geo.Point `json:"location"`
}

// Source records where a route's geometry came from.
type Source string

// Route sources.
const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// Route is an immutable estimate. A newer estimate replaces it wholesale.
type Route struct {
	ID              string
	Start           geo.Point
	End             geo.Point
	Mode            TravelMode
	Geometry        []geo.Point
	DistanceMeters  float64
	DurationSeconds float64
	Steps           []Step
	Source          Source
	Provider        string
	CreatedAt       time.Time
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
