package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// Backend produces one vector per input text, preserving order. A Backend
// is bound to one model and one device at construction; callers submit
// sub-batches sized to the backend's capacity and may resubmit failed
// sub-batches.
type Backend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() Model
}

// Validate checks that a returned vector honors the model contract:
// exact dimensionality and finite values throughout.
func Validate(vec []float32, dims int) error {
	if len(vec) != dims {
		return fmt.Errorf("expected %d dimensions, got %d", dims, len(vec))
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("vector contains non-finite values")
		}
	}
	return nil
}

// Normalize scales vec to unit L2 norm in place. Zero vectors are left
// unchanged.
func Normalize(vec []float32) {
	v := blas32.Vector{N: len(vec), Inc: 1, Data: vec}
	norm := blas32.Nrm2(v)
	if norm == 0 {
		return
	}
	blas32.Scal(1/norm, v)
}
