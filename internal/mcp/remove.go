package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker/internal/docker"
)

type removeParams struct {
	Container string `json:"container" jsonschema:"container ID or name"`
	Force     bool   `json:"force,omitempty" jsonschema:"remove the container even if it is running"`
}

func (h *handler) removeHandler(ctx context.Context, req *mcp.CallToolRequest, params removeParams) (*mcp.CallToolResult, any, error) {
	t := h.current()
	res, err := t.engine.Remove(ctx, docker.RemoveOptions{Container: params.Container, Force: params.Force})
	if err != nil {
		return errorResult(executionError("docker rm", err))
	}
	return textResult(formatRun(t.tool(), res))
}
