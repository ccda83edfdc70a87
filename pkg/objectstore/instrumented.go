package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/aistage/aistage/internal/metrics"
)

// InstrumentedStore wraps a Store with Prometheus metrics.
type InstrumentedStore struct {
	inner Store
}

// NewInstrumentedStore creates a new instrumented store wrapper.
func NewInstrumentedStore(inner Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

// Get retrieves an object from the store.
func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	start := time.Now()
	reader, info, err := s.inner.Get(ctx, key)
	metrics.ObserveObjectStoreOp("get", time.Since(start).Seconds(), err)
	return reader, info, err
}

// Head retrieves metadata for an object.
func (s *InstrumentedStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.inner.Head(ctx, key)
	metrics.ObserveObjectStoreOp("head", time.Since(start).Seconds(), err)
	return info, err
}

// List lists objects in the store.
func (s *InstrumentedStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	start := time.Now()
	result, err := s.inner.List(ctx, opts)
	metrics.ObserveObjectStoreOp("list", time.Since(start).Seconds(), err)
	return result, err
}
