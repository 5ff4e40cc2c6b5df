// Package sequence orders results of overlapping asynchronous requests.
//
// Each request takes a ticket from a Counter before it starts. When its
// result arrives the Guard decides whether it may be applied. In lenient
// mode every result is applied, so the last one to finish wins. In strict
// mode a result older than the latest applied one is dropped.
package sequence

import (
	"sync"
	"sync/atomic"
)

// Ticket identifies one request in issue order.
type Ticket uint64

// Counter issues monotonically increasing tickets.
type Counter struct {
	n atomic.Uint64
}

// Next returns a fresh ticket.
func (c *Counter) Next() Ticket {
	return Ticket(c.n.Add(1))
}

// Policy reports whether strict ordering is in force. It is evaluated on
// every Accept so a runtime flag can toggle it.
type Policy func() bool

// Lenient always allows out-of-order results.
func Lenient() bool { return false }

// Strict always drops stale results.
func Strict() bool { return true }

// Guard tracks the newest applied ticket for one piece of state.
type Guard struct {
	policy Policy

	mu      sync.Mutex
	applied Ticket
}

// NewGuard returns a guard using policy. A nil policy is lenient.
func NewGuard(policy Policy) *Guard {
	if policy == nil {
		policy = Lenient
	}
	return &Guard{policy: policy}
}

// Accept reports whether the result for t may be applied and, if so,
// records t as the newest applied ticket.
func (g *Guard) Accept(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.policy() && t < g.applied {
		return false
	}
	if t > g.applied {
		g.applied = t
	}
	return true
}

// Applied returns the newest ticket accepted so far.
func (g *Guard) Applied() Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applied
}
