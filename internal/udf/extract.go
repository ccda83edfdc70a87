package udf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aistage/aistage/internal/device"
	"github.com/aistage/aistage/internal/docparse"
	"github.com/aistage/aistage/internal/metrics"
	"github.com/aistage/aistage/internal/stage"
	"github.com/aistage/aistage/pkg/objectstore"
)

// TextExtractor returns a document's full plain text without pagination.
type TextExtractor interface {
	ExtractText(data []byte, format docparse.Format) (string, error)
}

// ExtractText serves whole-document text reads as a scalar function. A row
// that cannot be read or parsed yields null; a document with no text layer
// yields the empty string, which is not the same value.
type ExtractText struct {
	stages    *stage.Cache
	extractor TextExtractor
	gate      *device.Gate
}

func NewExtractText(stages *stage.Cache, extractor TextExtractor, gate *device.Gate) *ExtractText {
	return &ExtractText{stages: stages, extractor: extractor, gate: gate}
}

func (e *ExtractText) Signature() Signature {
	return Signature{
		Name:   "ai_extract_text",
		Args:   []ArgType{ArgStage, ArgString},
		Kind:   KindScalar,
		Result: "string",
	}
}

func (e *ExtractText) Call(ctx context.Context, rows [][]any) ([]any, error) {
	outputs := make([]any, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, ok, err := e.extractRow(ctx, row)
		if err != nil {
			return nil, err
		}
		if ok {
			outputs[i] = text
		}
	}
	return outputs, nil
}

// extractRow returns the document text and whether the row produced a
// value. Row-level failures return ok=false with a nil error.
func (e *ExtractText) extractRow(ctx context.Context, row []any) (string, bool, error) {
	loc, err := stageArg(row[0])
	if err != nil {
		return e.rowFailure()
	}
	path, null, err := textArg(row[1])
	if err != nil {
		return "", false, invalidArg(err)
	}
	if null || path == "" {
		return "", false, nil
	}

	op, err := e.stages.Get(loc)
	if err != nil {
		return e.rowFailure()
	}
	key, err := stage.ResolveSubpath(loc, path)
	if err != nil {
		return "", false, invalidArg(err)
	}

	data, err := op.Read(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, objectstore.ErrNotFound):
			return e.rowFailure()
		case errors.Is(err, objectstore.ErrUnavailable):
			return "", false, fmt.Errorf("%w: %v", ErrStageUnreachable, err)
		default:
			return "", false, err
		}
	}

	format, err := docparse.Detect(path, "", data)
	if err != nil {
		return e.rowFailure()
	}

	text, err := e.extractGated(ctx, data, format)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return e.rowFailure()
	}
	return text, true, nil
}

func (e *ExtractText) extractGated(ctx context.Context, data []byte, format docparse.Format) (string, error) {
	start := time.Now()
	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return "", err
	}
	metrics.GateAcquired(time.Since(start).Seconds())
	defer func() {
		release()
		metrics.GateReleased()
	}()

	return e.extractor.ExtractText(data, format)
}

func (e *ExtractText) rowFailure() (string, bool, error) {
	metrics.IncRowFailure("ai_extract_text")
	return "", false, nil
}
