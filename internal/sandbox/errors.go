package sandbox

import "errors"

// ErrOutputTooLarge is returned when combined stdout+stderr exceeds the
// configured cap (spec.md §4.5 step 5).
var ErrOutputTooLarge = errors.New("output_too_large")

// ErrTimeout is returned when a sandboxed invocation exceeds its wall-clock
// timeout and had to be killed.
var ErrTimeout = errors.New("sandbox: execution timed out")

// ToolError wraps a {success:false, error:"..."} result from the sandboxed
// function itself, as opposed to an infrastructure failure.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }
