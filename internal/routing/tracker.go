package routing

import (
	"context"
	"sync"

	"github.com/eventdesk/eventdesk/internal/geo"
	"github.com/eventdesk/eventdesk/internal/sequence"
)

// RouteTracker holds the route currently shown to one user. Each new
// estimate replaces the previous one wholesale.
type RouteTracker struct {
	counter sequence.Counter
	guard   *sequence.Guard

	mu      sync.RWMutex
	current *Route
}

// NewRouteTracker creates a tracker. With a nil or lenient policy the
// last estimate to finish wins, even if it was requested earlier.
func NewRouteTracker(policy sequence.Policy) *RouteTracker {
	return &RouteTracker{guard: sequence.NewGuard(policy)}
}

// Begin issues a ticket for a new estimate.
func (t *RouteTracker) Begin() sequence.Ticket {
	return t.counter.Next()
}

// Apply stores route as current unless the guard rejects the ticket.
func (t *RouteTracker) Apply(ticket sequence.Ticket, route *Route) bool {
	if !t.guard.Accept(ticket) {
		return false
	}
	t.mu.Lock()
	t.current = route
	t.mu.Unlock()
	return true
}

// Current returns the route on display, or nil.
func (t *RouteTracker) Current() *Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Clear drops the current route.
func (t *RouteTracker) Clear() {
	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()
}

// Navigator runs estimates on behalf of users and keeps each user's
// current route.
type Navigator struct {
	estimator *Estimator
	policy    sequence.Policy

	mu       sync.Mutex
	trackers map[string]*RouteTracker
}

// NewNavigator creates a navigator. policy is consulted on every result.
func NewNavigator(estimator *Estimator, policy sequence.Policy) *Navigator {
	return &Navigator{
		estimator: estimator,
		policy:    policy,
		trackers:  make(map[string]*RouteTracker),
	}
}

func (n *Navigator) tracker(userID string) *RouteTracker {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, ok := n.trackers[userID]
	if !ok {
		t = NewRouteTracker(n.policy)
		n.trackers[userID] = t
	}
	return t
}

// Navigate computes a route and makes it the user's current route. The
// computed route is always returned; applied is false when a newer
// request already replaced it.
func (n *Navigator) Navigate(ctx context.Context, userID string, start, end geo.Point, mode TravelMode) (route *Route, applied bool) {
	t := n.tracker(userID)
	ticket := t.Begin()
	route = n.estimator.ComputeRoute(ctx, start, end, mode)
	return route, t.Apply(ticket, route)
}

// Current returns the user's current route, or nil.
func (n *Navigator) Current(userID string) *Route {
	return n.tracker(userID).Current()
}

// Clear forgets the user's current route.
func (n *Navigator) Clear(userID string) {
	n.tracker(userID).Clear()
}
