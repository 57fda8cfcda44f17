package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExecution matches every error that prevented a run from producing a
// Result. Use errors.Is(err, ErrExecution) to tell these apart from a run
// that completed with a nonzero exit status.
var ErrExecution = errors.New("execution failed")

// LaunchError is returned when the tool could not be started at all,
// e.g. the binary is missing or not executable.
type LaunchError struct {
	Tool string
	Args []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrExecution }

// StreamReadError is returned when draining one of the child's output
// pipes failed. The child has been killed and reaped by the time it is
// returned.
type StreamReadError struct {
	Stream string // "stdout" or "stderr"
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Stream, e.Err)
}

func (e *StreamReadError) Unwrap() error { return e.Err }

func (e *StreamReadError) Is(target error) bool { return target == ErrExecution }
