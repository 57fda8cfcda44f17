package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker/internal/docker"
)

type copyParams struct {
	Container string `json:"container" jsonschema:"container ID or name"`
	From      string `json:"from" jsonschema:"path inside the container"`
	To        string `json:"to" jsonschema:"local destination path, relative to the workspace"`
}

func (h *handler) copyHandler(ctx context.Context, req *mcp.CallToolRequest, params copyParams) (*mcp.CallToolResult, any, error) {
	t := h.current()
	res, err := t.engine.Copy(ctx, docker.CopyOptions{
		Container: params.Container,
		From:      params.From,
		To:        params.To,
	})
	if err != nil {
		return errorResult(executionError("docker cp", err))
	}
	return textResult(formatRun(t.tool(), &res.Process))
}
