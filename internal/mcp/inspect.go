package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker/internal/report"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a docker_* result"`
	Pattern string `json:"pattern,omitempty" jsonschema:"regular expression selecting output lines (e.g. ^Step|error). Default: all lines"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	lines, err := report.Grep(result, params.Pattern)
	if err != nil {
		return errorResult(err.Error())
	}

	return textResult(formatInspectOutput(h.current().tool(), result, params.Pattern, lines))
}

func formatInspectOutput(tool string, result *report.RunResult, pattern string, lines []report.Line) string {
	var b strings.Builder

	// Run header.
	fmt.Fprintf(&b, "Run: %s (%s)\n", result.ID, result.Kind)
	if len(result.Args) > 0 {
		fmt.Fprintf(&b, "Command: %s\n", shellquote.Join(append([]string{tool}, result.Args...)...))
	}
	fmt.Fprintf(&b, "Exit status: %d\n", result.ExitStatus)
	if !result.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s (took %s)\n", result.StartedAt.Format("2006-01-02 15:04:05"), result.Duration)
	}
	if result.Tag != "" {
		fmt.Fprintf(&b, "Tag: %s\n", result.Tag)
	}
	if result.ContainerID != "" {
		fmt.Fprintf(&b, "Container: %s\n", result.ContainerID)
	}
	fmt.Fprintln(&b)

	// Pipelines reference their step runs.
	if len(result.Steps) > 0 {
		fmt.Fprintln(&b, "Steps:")
		for _, s := range result.Steps {
			if s.RunID != "" {
				fmt.Fprintf(&b, "  %s: %s (run %s)\n", s.Name, s.Status, s.RunID)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", s.Name, s.Status)
			}
		}
		fmt.Fprintln(&b)
	}

	if len(lines) == 0 {
		if pattern != "" {
			fmt.Fprintf(&b, "No lines matching %q.\n", pattern)
		} else {
			fmt.Fprintln(&b, "No output captured.")
		}
		return b.String()
	}

	if pattern != "" {
		fmt.Fprintf(&b, "Lines matching %q (%d):\n", pattern, len(lines))
	} else {
		fmt.Fprintf(&b, "Output (%d lines):\n", len(lines))
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "%5d  %s\n", l.Number, l.Text)
	}
	return b.String()
}
