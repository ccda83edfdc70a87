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

// DocumentParser turns raw document bytes into ordered page contents.
type DocumentParser interface {
	Parse(data []byte, format docparse.Format) (*docparse.Result, error)
}

// ParseDocument reads a stage object and returns its parsed pages as a
// scalar variant per row. Parse problems stay inside the row: the payload
// carries errorInformation and the batch call still succeeds. Only an
// unreachable stage or caller cancellation aborts the batch.
type ParseDocument struct {
	stages *stage.Cache
	parser DocumentParser
	gate   *device.Gate
}

func NewParseDocument(stages *stage.Cache, parser DocumentParser, gate *device.Gate) *ParseDocument {
	return &ParseDocument{stages: stages, parser: parser, gate: gate}
}

func (p *ParseDocument) Signature() Signature {
	return Signature{
		Name:   "ai_parse_document",
		Args:   []ArgType{ArgStage, ArgString},
		Kind:   KindScalar,
		Result: "variant",
	}
}

func (p *ParseDocument) Call(ctx context.Context, rows [][]any) ([]any, error) {
	outputs := make([]any, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := p.parseRow(ctx, row)
		if err != nil {
			return nil, err
		}
		outputs[i] = doc
	}
	return outputs, nil
}

func (p *ParseDocument) parseRow(ctx context.Context, row []any) (*docparse.Document, error) {
	loc, err := stageArg(row[0])
	if err != nil {
		return p.failure(docparse.FailureConfig, err.Error()), nil
	}
	path, null, err := textArg(row[1])
	if err != nil {
		return nil, invalidArg(err)
	}
	if null || path == "" {
		return p.failure(docparse.FailureNotFound, "document path is empty"), nil
	}

	op, err := p.stages.Get(loc)
	if err != nil {
		return p.failure(docparse.FailureConfig, err.Error()), nil
	}
	key, err := stage.ResolveSubpath(loc, path)
	if err != nil {
		return nil, invalidArg(err)
	}

	data, err := op.Read(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, objectstore.ErrNotFound):
			return p.failure(docparse.FailureNotFound, fmt.Sprintf("stage object %q not found", path)), nil
		case errors.Is(err, objectstore.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrStageUnreachable, err)
		default:
			return nil, err
		}
	}

	format, err := docparse.Detect(path, "", data)
	if err != nil {
		return p.failure(docparse.FailureUnsupported, err.Error()), nil
	}

	res, err := p.parseGated(ctx, data, format)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return p.failure(docparse.FailureType(err), err.Error()), nil
	}
	if res.FallbackUsed {
		metrics.IncParseFallback()
	}
	return docparse.NewDocument(res.Pages, res.FallbackUsed), nil
}

// parseGated runs the parser inside the device admission gate, so parse
// work and embedding inference share the same concurrency cap.
func (p *ParseDocument) parseGated(ctx context.Context, data []byte, format docparse.Format) (*docparse.Result, error) {
	start := time.Now()
	release, err := p.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	metrics.GateAcquired(time.Since(start).Seconds())
	defer func() {
		release()
		metrics.GateReleased()
	}()

	return p.parser.Parse(data, format)
}

func (p *ParseDocument) failure(typ, message string) *docparse.Document {
	metrics.IncParseFailure()
	return docparse.NewFailure(typ, message)
}
