// Package report provides persistence and retrieval of tool run results.
// Results are stored as typed structs keyed by run ID and their captured
// output can be searched line by line.
package report

import (
	"fmt"
	"regexp"
	"time"

	"github.com/deixis/rocker/internal/runner"
)

// Kind identifies the operation a run performed.
type Kind string

const (
	Build   Kind = "build"
	Create  Kind = "create"
	Copy    Kind = "copy"
	Remove  Kind = "remove"
	Version Kind = "version"
	// Extract is a pipeline run; its Steps reference the individual runs.
	Extract Kind = "extract"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the recorded outcome of a run.
type RunResult struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Args       []string      `json:"args,omitempty"`
	Output     string        `json:"output,omitempty"`
	ExitStatus int           `json:"exit_status"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`

	// Operation fields.
	Tag         string `json:"tag,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	Steps       []Step `json:"steps,omitempty"`
}

// Step references one run inside a pipeline.
type Step struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	RunID      string `json:"run_id,omitempty"`
	ExitStatus int    `json:"exit_status"`
}

// FromProcess records a process result under the given kind.
func FromProcess(kind Kind, res *runner.Result) *RunResult {
	return &RunResult{
		ID:         res.RunID,
		Kind:       kind,
		Args:       res.Args,
		Output:     res.Output,
		ExitStatus: res.ExitStatus,
		StartedAt:  res.StartedAt,
		Duration:   res.Duration,
	}
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Lines returns the captured output lines.
func (r *RunResult) Lines() []string {
	return (&runner.Result{Output: r.Output}).Lines()
}

// Line is a numbered output line.
type Line struct {
	Number int // 1-based
	Text   string
}

// Grep returns the output lines of result matching pattern, a regular
// expression. An empty pattern matches every line.
func Grep(result *RunResult, pattern string) ([]Line, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	var out []Line
	for i, text := range result.Lines() {
		if re == nil || re.MatchString(text) {
			out = append(out, Line{Number: i + 1, Text: text})
		}
	}
	return out, nil
}
