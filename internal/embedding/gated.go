package embedding

import (
	"context"
	"time"

	"github.com/aistage/aistage/internal/device"
	"github.com/aistage/aistage/internal/metrics"
)

// GatedBackend wraps a Backend with the device admission gate. Waiting for
// a slot honors the caller's context; once admitted, the invocation runs
// on a detached context so a disconnecting caller cannot abandon work
// half-done on the device.
type GatedBackend struct {
	inner Backend
	gate  *device.Gate
}

// NewGatedBackend wraps inner with the given gate.
func NewGatedBackend(inner Backend, gate *device.Gate) *GatedBackend {
	return &GatedBackend{inner: inner, gate: gate}
}

// Model returns the model of the wrapped backend.
func (g *GatedBackend) Model() Model {
	return g.inner.Model()
}

// Embed acquires a gate slot, then runs the wrapped backend to completion.
func (g *GatedBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	metrics.GateAcquired(time.Since(start).Seconds())
	defer func() {
		release()
		metrics.GateReleased()
	}()

	return g.inner.Embed(context.WithoutCancel(ctx), texts)
}
