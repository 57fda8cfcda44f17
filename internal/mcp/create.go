package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker/internal/docker"
)

type createParams struct {
	Image string `json:"image" jsonschema:"image reference to create the container from"`
	Name  string `json:"name,omitempty" jsonschema:"container name. Default: assigned by docker"`
}

func (h *handler) createHandler(ctx context.Context, req *mcp.CallToolRequest, params createParams) (*mcp.CallToolResult, any, error) {
	t := h.current()
	res, err := t.engine.Create(ctx, docker.CreateOptions{Image: params.Image, Name: params.Name})
	if err != nil {
		return errorResult(executionError("docker create", err))
	}

	// The ID is only meaningful when create succeeded; otherwise the output
	// holds docker's diagnostics.
	var id string
	if res.Process.Success() {
		id = res.ContainerID
	}
	return textResult(formatRun(t.tool(), &res.Process, field{"Container", id}))
}
