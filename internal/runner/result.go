package runner

import (
	"strings"
	"time"
)

// FallbackExitStatus is reported when the child terminated without an exit
// code (killed by a signal, or its state could not be collected).
const FallbackExitStatus = 1

// Result holds the output of a single tool invocation.
type Result struct {
	RunID      string        // unique identifier for this run
	Args       []string      // arguments the tool was started with
	Output     string        // merged stdout/stderr, each line preceded by "\n"
	ExitStatus int           // exit code, or FallbackExitStatus
	StartedAt  time.Time     // when the process was started
	Duration   time.Duration // wall time until the process was reaped
}

// Success reports whether the tool exited with status 0.
func (r *Result) Success() bool {
	return r.ExitStatus == 0
}

// Lines returns the captured lines in the order they were observed.
func (r *Result) Lines() []string {
	if r.Output == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(r.Output, "\n"), "\n")
}
