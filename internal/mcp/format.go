package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/deixis/rocker/internal/runner"
)

// tailLines bounds how much captured output a tool result carries inline.
const tailLines = 40

// field is an extra "Name: value" line in a run summary.
type field struct {
	name  string
	value string
}

// formatRun summarises a single process run: status, run ID, the command
// line, any extra fields and the tail of the captured output.
func formatRun(tool string, res *runner.Result, fields ...field) string {
	var b strings.Builder

	if res.Success() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintf(&b, "Status: FAIL (exit status %d)\n", res.ExitStatus)
	}
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Command: %s\n", shellquote.Join(append([]string{tool}, res.Args...)...))
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.name, f.value)
		}
	}
	fmt.Fprintln(&b)

	writeTail(&b, res.Lines())
	if !res.Success() {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Inspect with run_inspect(run_id=%q, pattern=\"<regexp>\").\n", res.RunID)
	}
	return b.String()
}

// writeTail writes the last tailLines lines, indented.
func writeTail(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		fmt.Fprintln(b, "Output: (none)")
		return
	}
	if len(lines) > tailLines {
		fmt.Fprintf(b, "Output (last %d of %d lines):\n", tailLines, len(lines))
		lines = lines[len(lines)-tailLines:]
	} else {
		fmt.Fprintln(b, "Output:")
	}
	for _, line := range lines {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

// executionError describes an error that kept a run from producing a result.
func executionError(op string, err error) string {
	var launch *runner.LaunchError
	if errors.As(err, &launch) {
		return fmt.Sprintf("%s failed to start %s: %v\n\nAction: install %s or set `tool` in .rocker.", op, launch.Tool, launch.Err, launch.Tool)
	}
	if errors.Is(err, runner.ErrExecution) {
		return fmt.Sprintf("%s failed to run: %v", op, err)
	}
	return fmt.Sprintf("%s: %v", op, err)
}
