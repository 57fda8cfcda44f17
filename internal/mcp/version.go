package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/rocker"
	"github.com/deixis/rocker/internal/config"
)

type versionParams struct {
	Format string `json:"format,omitempty" jsonschema:"Go template passed to docker version --format (e.g. {{.Server.Version}})"`
}

func (h *handler) versionHandler(ctx context.Context, req *mcp.CallToolRequest, params versionParams) (*mcp.CallToolResult, any, error) {
	t := h.current()
	var b strings.Builder

	fmt.Fprintf(&b, "Rocker: %s\n", rocker.Version)
	fmt.Fprintf(&b, "Workspace: %s\n", t.workspace)
	cfgPath := filepath.Join(t.root, config.FileName)
	if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = "(defaults)"
	}
	fmt.Fprintf(&b, "Config: %s\n", cfgPath)
	fmt.Fprintf(&b, "Tool: %s\n", t.tool())
	fmt.Fprintln(&b)

	res, err := t.engine.Version(ctx, params.Format)
	if err != nil {
		return errorResult(b.String() + executionError("docker version", err))
	}
	if !res.Success() {
		return errorResult(b.String() + formatRun(t.tool(), res))
	}

	lines := res.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(&b, "Version: (no output)")
	}
	for _, line := range lines {
		fmt.Fprintln(&b, line)
	}
	return textResult(b.String())
}
