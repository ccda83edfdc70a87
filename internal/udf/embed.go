package udf

import (
	"context"
	"fmt"

	"github.com/aistage/aistage/internal/embedding"
	"github.com/aistage/aistage/internal/metrics"
)

// Embed serves fixed-dimension text embeddings as a scalar function. The
// dimension is part of the function name so the warehouse-side signature
// stays stable if other model families are added later.
type Embed struct {
	batcher *embedding.SubBatcher
	model   embedding.Model
	name    string
}

func NewEmbed(backend embedding.Backend, subBatchSize int, normalize bool) *Embed {
	model := backend.Model()
	return &Embed{
		batcher: embedding.NewSubBatcher(backend, subBatchSize, normalize),
		model:   model,
		name:    fmt.Sprintf("ai_embed_%d", model.Dimensions),
	}
}

func (e *Embed) Signature() Signature {
	return Signature{
		Name:   e.name,
		Args:   []ArgType{ArgString},
		Kind:   KindScalar,
		Result: fmt.Sprintf("array(float32, %d)", e.model.Dimensions),
	}
}

// Call embeds one text per row. Null and empty inputs yield null outputs
// without reaching the backend; rows whose sub-batch failed both retry
// halves come back null as well.
func (e *Embed) Call(ctx context.Context, rows [][]any) ([]any, error) {
	texts := make([]string, len(rows))
	for i, row := range rows {
		text, null, err := textArg(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidArgument, i, err)
		}
		if !null {
			texts[i] = text
		}
	}

	vectors, err := e.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	outputs := make([]any, len(rows))
	for i, vec := range vectors {
		if vec == nil {
			if texts[i] != "" {
				metrics.IncRowFailure(e.name)
			}
			continue
		}
		outputs[i] = vec
	}
	return outputs, nil
}
