// Package resilience wraps outbound provider HTTP calls with a circuit
// breaker, timeouts and bounded retries, and tracks per-provider health
// for the status endpoint.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Trip thresholds used by DefaultReadyToTrip.
const (
	tripMinRequests  = 5
	tripFailureRatio = 0.5
)

// CircuitBreakerConfig holds configuration for a provider's circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and the registry.
	Name string

	// HalfOpenProbes is the number of requests let through while half-open.
	// Default: 1
	HalfOpenProbes uint32

	// ResetInterval clears the counts periodically while closed.
	// Zero never clears them.
	ResetInterval time.Duration

	// OpenFor is how long the breaker stays open before probing again.
	// Default: 60 seconds
	OpenFor time.Duration

	// ReadyToTrip decides when a closed breaker opens.
	// Default: DefaultReadyToTrip
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange observes every transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker used by every provider client.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:           name,
		HalfOpenProbes: 1,
		OpenFor:        60 * time.Second,
		ReadyToTrip:    DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker once at least five requests were
// made and half or more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < tripMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= tripFailureRatio
}

// NewCircuitBreaker creates a breaker from cfg, filling zero fields with
// the defaults.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.OpenFor == 0 {
		cfg.OpenFor = 60 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = DefaultReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenProbes,
		Interval:      cfg.ResetInterval,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
