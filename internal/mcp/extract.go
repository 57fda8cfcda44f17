package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker/internal/docker"
)

type extractParams struct {
	From      string            `json:"from" jsonschema:"path inside the built image to copy out"`
	To        string            `json:"to" jsonschema:"local destination path, relative to the workspace"`
	Context   string            `json:"context,omitempty" jsonschema:"build context directory. Default: build.context from .rocker, else ."`
	File      string            `json:"file,omitempty" jsonschema:"Dockerfile path. Default: build.file from .rocker, else Dockerfile"`
	Tag       string            `json:"tag,omitempty" jsonschema:"image tag. Default: a generated rocker-extract tag"`
	BuildArgs map[string]string `json:"build_args,omitempty" jsonschema:"--build-arg values, merged over build.args from .rocker"`
}

func (h *handler) extractHandler(ctx context.Context, req *mcp.CallToolRequest, params extractParams) (*mcp.CallToolResult, any, error) {
	t := h.current()
	result, err := t.engine.Extract(ctx, docker.ExtractOptions{
		Build: docker.BuildOptions{
			Context:   params.Context,
			File:      params.File,
			Tag:       params.Tag,
			BuildArgs: params.BuildArgs,
		},
		From: params.From,
		To:   params.To,
	})
	if err != nil {
		return errorResult(executionError("extract", err))
	}
	return textResult(formatExtract(result))
}

func formatExtract(result *docker.ExtractResult) string {
	var b strings.Builder
	rr := result.RunResult

	allPassed := result.FailedIdx < 0
	if allPassed {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "Tag: %s\n", rr.Tag)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Steps:")
	for _, s := range result.Steps {
		if s.RunID != "" {
			fmt.Fprintf(&b, "  %s: %s (run %s)\n", s.Name, s.Status, s.RunID)
		} else {
			fmt.Fprintf(&b, "  %s: %s\n", s.Name, s.Status)
		}
	}
	fmt.Fprintln(&b)

	if allPassed {
		fmt.Fprintln(&b, "All extract steps passed.")
		return b.String()
	}

	failed := result.Steps[result.FailedIdx]
	fmt.Fprintf(&b, "Failed step: %s (exit status %d)\n", failed.Name, failed.ExitStatus)
	fmt.Fprintln(&b)
	if failed.Output != "" {
		writeTail(&b, strings.Split(failed.Output, "\n"))
		fmt.Fprintln(&b)
	}
	fmt.Fprintf(&b, "Inspect with run_inspect(run_id=%q, pattern=\"<regexp>\").\n", failed.RunID)
	return b.String()
}
