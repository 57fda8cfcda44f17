package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker/internal/docker"
)

type buildParams struct {
	Context   string            `json:"context,omitempty" jsonschema:"build context directory, relative to the workspace. Default: build.context from .rocker, else ."`
	File      string            `json:"file,omitempty" jsonschema:"Dockerfile path. Default: build.file from .rocker, else Dockerfile"`
	Tag       string            `json:"tag,omitempty" jsonschema:"image reference to tag the result with (e.g. myimage:latest)"`
	BuildArgs map[string]string `json:"build_args,omitempty" jsonschema:"--build-arg values, merged over build.args from .rocker"`
}

func (h *handler) buildHandler(ctx context.Context, req *mcp.CallToolRequest, params buildParams) (*mcp.CallToolResult, any, error) {
	t := h.current()
	res, err := t.engine.Build(ctx, docker.BuildOptions{
		Context:   params.Context,
		File:      params.File,
		Tag:       params.Tag,
		BuildArgs: params.BuildArgs,
	})
	if err != nil {
		return errorResult(executionError("docker build", err))
	}
	return textResult(formatRun(t.tool(), &res.Process, field{"Tag", res.Tag}))
}
