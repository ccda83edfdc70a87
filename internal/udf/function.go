package udf

import (
	"context"
	"fmt"
)

// Kind distinguishes scalar functions, which map each input row to one
// output value, from table-valued functions, which expand one argument row
// into a stream of result rows.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindTable  Kind = "table"
)

// ArgType describes one declared argument of a function signature.
type ArgType string

const (
	ArgStage  ArgType = "stage"
	ArgString ArgType = "string"
	ArgInt    ArgType = "int"
)

// Signature declares a function's calling contract: its name, fixed
// argument types, result kind, and, for table functions, the output
// column schema. The warehouse registers functions from this.
type Signature struct {
	Name    string    `json:"name"`
	Args    []ArgType `json:"args"`
	Kind    Kind      `json:"kind"`
	Result  string    `json:"result"`
	Columns []string  `json:"columns,omitempty"`
}

// Function is the common surface of every registered UDF.
type Function interface {
	Signature() Signature
}

// ScalarFunc handles a full ordered batch. Implementations must return
// exactly one output per input row, in input order, with per-row failures
// encoded as nil slots rather than errors.
type ScalarFunc interface {
	Function
	Call(ctx context.Context, rows [][]any) ([]any, error)
}

// TableFunc expands a single row of call arguments into result rows plus
// a truncation flag.
type TableFunc interface {
	Function
	CallTable(ctx context.Context, args []any) (*TableResult, error)
}

// TableResult is the output of one table-valued call.
type TableResult struct {
	Rows      [][]any
	Truncated bool
}

// Registry maps function names to handlers. It is built once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	byName map[string]Function
	names  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Function)}
}

// Register adds a function. The declared kind must match the handler's
// call surface.
func (r *Registry) Register(fn Function) error {
	sig := fn.Signature()
	if sig.Name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if _, exists := r.byName[sig.Name]; exists {
		return fmt.Errorf("function %q already registered", sig.Name)
	}
	switch sig.Kind {
	case KindScalar:
		if _, ok := fn.(ScalarFunc); !ok {
			return fmt.Errorf("function %q declares kind scalar but is not callable as one", sig.Name)
		}
	case KindTable:
		if _, ok := fn.(TableFunc); !ok {
			return fmt.Errorf("function %q declares kind table but is not callable as one", sig.Name)
		}
	default:
		return fmt.Errorf("function %q has unknown kind %q", sig.Name, sig.Kind)
	}
	r.byName[sig.Name] = fn
	r.names = append(r.names, sig.Name)
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.byName[name]
	return fn, ok
}

// Signatures lists registered signatures in registration order.
func (r *Registry) Signatures() []Signature {
	out := make([]Signature, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name].Signature())
	}
	return out
}
