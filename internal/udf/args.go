package udf

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/aistage/aistage/internal/stage"
)

// stageArg decodes a stage location argument. The engine may hand the
// payload over as a decoded object or as raw JSON.
func stageArg(v any) (*stage.Location, error) {
	switch arg := v.(type) {
	case map[string]any:
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("stage payload: %v", err)
		}
		return stage.ParseLocation(raw)
	case json.RawMessage:
		return stage.ParseLocation(arg)
	case []byte:
		return stage.ParseLocation(arg)
	case string:
		return stage.ParseLocation([]byte(arg))
	case nil:
		return nil, fmt.Errorf("stage payload is null")
	default:
		return nil, fmt.Errorf("stage payload has unsupported type %T", v)
	}
}

// intArg coerces a numeric argument to an integer. Null is rejected.
func intArg(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n.String())
		}
		return i, nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("value has unsupported type %T", v)
	}
}

// textArg coerces a nullable string argument. The null flag reports an
// explicit SQL NULL, distinct from an empty string.
func textArg(v any) (text string, null bool, err error) {
	switch s := v.(type) {
	case string:
		return s, false, nil
	case nil:
		return "", true, nil
	default:
		return "", false, fmt.Errorf("value has unsupported type %T", v)
	}
}

// invalidArg wraps an argument decoding error as a batch-level failure.
func invalidArg(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
}
