// Package device selects the compute device used for backend inference and
// gates concurrent access to it.
package device

import (
	"context"
)

// DefaultGateLimit is the maximum concurrent backend invocations.
const DefaultGateLimit = 4

// Gate bounds the number of concurrently in-flight backend invocations.
// When the bound is reached, additional callers wait until a slot is
// available rather than failing.
type Gate struct {
	ch chan struct{}
}

// NewGate creates a Gate admitting at most limit concurrent holders.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultGateLimit
	}
	return &Gate{ch: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is available or the context is cancelled.
// Returns a release function that must be called when the invocation
// completes.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.ch <- struct{}{}:
		return func() { <-g.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire attempts to acquire a slot without blocking.
// Returns true and a release function if successful, false otherwise.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	select {
	case g.ch <- struct{}{}:
		return func() { <-g.ch }, true
	default:
		return nil, false
	}
}

// Active returns the number of slots currently held.
func (g *Gate) Active() int {
	return len(g.ch)
}

// Limit returns the admission bound.
func (g *Gate) Limit() int {
	return cap(g.ch)
}
