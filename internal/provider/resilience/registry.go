package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Condition summarizes a provider's breaker state for operators.
type Condition string

// Provider conditions.
const (
	ConditionHealthy     Condition = "healthy"
	ConditionDegraded    Condition = "degraded"
	ConditionUnavailable Condition = "unavailable"
)

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// Trips counts how often the breaker opened since startup.
	Trips int
	// OpenedAt is when the breaker last opened.
	OpenedAt *time.Time
}

// Condition maps the breaker state: closed is healthy, half-open is
// degraded and open is unavailable.
func (h *ProviderHealth) Condition() Condition {
	switch h.CircuitState {
	case gobreaker.StateHalfOpen:
		return ConditionDegraded
	case gobreaker.StateOpen:
		return ConditionUnavailable
	default:
		return ConditionHealthy
	}
}

// breaker is the part of Client the registry reads.
type breaker interface {
	CircuitBreakerState() gobreaker.State
	CircuitBreakerCounts() gobreaker.Counts
}

// Registry tracks provider clients (mapbox, google, outlook, exchangerate)
// and the outcome of their calls.
type Registry struct {
	now func() time.Time

	mu        sync.RWMutex
	providers map[string]*providerEntry
}

type providerEntry struct {
	breaker       breaker
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	trips         int
	openedAt      *time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:       time.Now,
		providers: make(map[string]*providerEntry),
	}
}

// Register adds a provider client. Registering a name again replaces it.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerEntry{breaker: client}
}

// RecordSuccess records a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(p *providerEntry, now time.Time) {
		p.lastSuccessAt = &now
	})
}

// RecordFailure records a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(p *providerEntry, now time.Time) {
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	})
}

// RecordTransition records a breaker state change.
func (r *Registry) RecordTransition(name string, _, to gobreaker.State) {
	if to != gobreaker.StateOpen {
		return
	}
	r.update(name, func(p *providerEntry, now time.Time) {
		p.trips++
		p.openedAt = &now
	})
}

func (r *Registry) update(name string, fn func(p *providerEntry, now time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		fn(p, r.now())
	}
}

// GetHealth returns the health of one provider, or nil if unknown.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// GetAllHealth returns every provider's health ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		health = append(health, p.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p *providerEntry) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  p.breaker.CircuitBreakerState(),
		Counts:        p.breaker.CircuitBreakerCounts(),
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
		Trips:         p.trips,
		OpenedAt:      p.openedAt,
	}
}
