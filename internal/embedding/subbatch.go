package embedding

import (
	"context"
	"fmt"

	"github.com/aistage/aistage/internal/metrics"
)

// DefaultSubBatchSize is the number of texts per backend submission.
const DefaultSubBatchSize = 32

// SubBatcher splits a batch of texts into backend-sized sub-batches and
// reassembles the results in input order. A failed sub-batch is split in
// half and each half retried once; rows that still fail come back nil so
// siblings in other sub-batches are unaffected.
type SubBatcher struct {
	backend   Backend
	size      int
	normalize bool
}

// NewSubBatcher creates a SubBatcher submitting at most size texts per
// backend call.
func NewSubBatcher(backend Backend, size int, normalize bool) *SubBatcher {
	if size <= 0 {
		size = DefaultSubBatchSize
	}
	return &SubBatcher{backend: backend, size: size, normalize: normalize}
}

// EmbedAll returns one slot per input text, in input order. Empty texts
// map to nil without reaching the backend; failed rows are nil. The only
// error returned is context cancellation, which discards all results.
func (s *SubBatcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var indexes []int
	var pending []string
	for i, t := range texts {
		if t == "" {
			continue
		}
		indexes = append(indexes, i)
		pending = append(pending, t)
	}

	for start := 0; start < len(pending); start += s.size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + s.size
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		vectors, err := s.embedOnce(ctx, chunk)
		if err != nil {
			vectors = s.retryHalves(ctx, chunk)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j, vec := range vectors {
			out[indexes[start+j]] = vec
		}
	}

	return out, nil
}

// embedOnce performs a single backend submission and enforces the vector
// contract on what comes back.
func (s *SubBatcher) embedOnce(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer func() { metrics.ObserveEmbedSubBatch(err) }()

	vectors, err = s.backend.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("backend returned %d vectors for %d inputs", len(vectors), len(texts))
	}

	dims := s.backend.Model().Dimensions
	for _, vec := range vectors {
		if err = Validate(vec, dims); err != nil {
			return nil, err
		}
	}

	if s.normalize {
		for _, vec := range vectors {
			Normalize(vec)
		}
	}
	return vectors, nil
}

// retryHalves resubmits a failed sub-batch split in two, each half once.
// Rows in halves that fail again stay nil.
func (s *SubBatcher) retryHalves(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	spans := [][2]int{{0, len(texts)}}
	if len(texts) > 1 {
		mid := len(texts) / 2
		spans = [][2]int{{0, mid}, {mid, len(texts)}}
	}

	for _, span := range spans {
		if ctx.Err() != nil {
			return out
		}
		metrics.IncEmbedRetry()
		vectors, err := s.embedOnce(ctx, texts[span[0]:span[1]])
		if err != nil {
			continue
		}
		copy(out[span[0]:span[1]], vectors)
	}
	return out
}
