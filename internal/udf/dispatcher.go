// Package udf implements the UDF execution engine: a registry of
// SQL-callable functions, batch validation, and dispatch with the result
// framing each function kind requires. Scalar calls return one output per
// input row in input order; table calls return a row stream plus a single
// truncation flag.
package udf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aistage/aistage/internal/logging"
	"github.com/aistage/aistage/internal/metrics"
)

// DefaultMaxBatchRows bounds inbound batch size when none is configured.
const DefaultMaxBatchRows = 1024

// Dispatcher validates inbound batches and routes them to registered
// functions. It is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	maxRows  int
	logger   *logging.Logger
}

// NewDispatcher builds a dispatcher over the given registry. maxRows
// bounds the number of rows accepted per call.
func NewDispatcher(registry *Registry, maxRows int, logger *logging.Logger) *Dispatcher {
	if maxRows <= 0 {
		maxRows = DefaultMaxBatchRows
	}
	if logger == nil {
		logger = logging.New("info")
	}
	return &Dispatcher{registry: registry, maxRows: maxRows, logger: logger}
}

// Response frames the results of one call.
type Response struct {
	Kind      Kind
	Outputs   []any   // scalar: one value per input row
	Rows      [][]any // table: produced result rows
	Truncated bool    // table: more rows existed beyond the limit
}

// RowCount returns the number of produced outputs or rows.
func (r *Response) RowCount() int {
	if r.Kind == KindTable {
		return len(r.Rows)
	}
	return len(r.Outputs)
}

// Dispatch runs one batch call against the named function.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rows [][]any) (*Response, error) {
	fn, ok := d.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	sig := fn.Signature()

	if len(rows) > d.maxRows {
		return nil, fmt.Errorf("%w: %d rows exceed the limit of %d", ErrBatchTooLarge, len(rows), d.maxRows)
	}
	for i, row := range rows {
		if err := validateRow(sig, row); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidArgument, i, err)
		}
	}

	ctx = logging.ContextWithFunction(ctx, sig.Name)
	start := time.Now()
	resp, err := d.invoke(ctx, fn, sig, rows)

	rowsOut := 0
	if resp != nil {
		rowsOut = resp.RowCount()
	}
	elapsed := time.Since(start)
	metrics.ObserveUDFCall(sig.Name, elapsed.Seconds(), len(rows), rowsOut, err)

	logger := d.logger.WithContext(ctx)
	if err != nil {
		logger.Error("udf call failed",
			"function", sig.Name,
			"rows_in", len(rows),
			"elapsed_ms", float64(elapsed.Microseconds())/1000.0,
			"error", err)
	} else {
		logger.Info("udf call",
			"function", sig.Name,
			"rows_in", len(rows),
			"rows_out", rowsOut,
			"elapsed_ms", float64(elapsed.Microseconds())/1000.0)
	}
	return resp, err
}

func (d *Dispatcher) invoke(ctx context.Context, fn Function, sig Signature, rows [][]any) (*Response, error) {
	switch handler := fn.(type) {
	case ScalarFunc:
		if len(rows) == 0 {
			return &Response{Kind: KindScalar, Outputs: []any{}}, nil
		}
		outputs, err := handler.Call(ctx, rows)
		if err != nil {
			return nil, err
		}
		if len(outputs) != len(rows) {
			return nil, fmt.Errorf("function %q produced %d outputs for %d rows", sig.Name, len(outputs), len(rows))
		}
		return &Response{Kind: KindScalar, Outputs: outputs}, nil

	case TableFunc:
		if len(rows) == 0 {
			return &Response{Kind: KindTable, Rows: [][]any{}}, nil
		}
		if len(rows) != 1 {
			return nil, fmt.Errorf("%w: %q is table-valued and accepts exactly one argument row, got %d", ErrInvalidArgument, sig.Name, len(rows))
		}
		result, err := handler.CallTable(ctx, rows[0])
		if err != nil {
			return nil, err
		}
		return &Response{Kind: KindTable, Rows: result.Rows, Truncated: result.Truncated}, nil

	default:
		return nil, fmt.Errorf("%w: %q has no callable implementation", ErrUnknownFunction, sig.Name)
	}
}

// validateRow checks arity and shallow argument types against the
// declared signature. Deep decoding stays with the handlers.
func validateRow(sig Signature, row []any) error {
	if len(row) != len(sig.Args) {
		return fmt.Errorf("%q expects %d arguments, got %d", sig.Name, len(sig.Args), len(row))
	}
	for i, arg := range sig.Args {
		switch arg {
		case ArgStage:
			switch row[i].(type) {
			case map[string]any, json.RawMessage, []byte, string:
			default:
				return fmt.Errorf("argument %d must be a stage payload", i)
			}
		case ArgInt:
			switch row[i].(type) {
			case float64, int, int64, json.Number:
			default:
				return fmt.Errorf("argument %d must be an integer", i)
			}
		case ArgString:
			switch row[i].(type) {
			case string, nil:
			default:
				return fmt.Errorf("argument %d must be a string or null", i)
			}
		}
	}
	return nil
}
