package udf

import "errors"

// Batch-level errors abort the whole call. Row-level failures never use
// these; they are encoded in the output slots instead.
var (
	ErrUnknownFunction  = errors.New("unknown function")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrBatchTooLarge    = errors.New("batch too large")
	ErrStageUnreachable = errors.New("stage unreachable")
)
