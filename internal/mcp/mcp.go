// Package mcp provides the Rocker MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/deixis/rocker"
	"github.com/deixis/rocker/internal/config"
	"github.com/deixis/rocker/internal/docker"
	"github.com/deixis/rocker/internal/report"
	"github.com/deixis/rocker/internal/runner"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	store report.Store

	mu     sync.RWMutex
	target *target // replaced, never mutated, when a client root is adopted
}

// target is the workspace tool calls run against.
type target struct {
	engine    *docker.Engine
	runner    *runner.Runner
	workspace string
	root      string // directory holding .rocker, or workspace
}

func (t *target) tool() string {
	if t.runner.Tool != "" {
		return t.runner.Tool
	}
	return runner.DefaultTool
}

// NewServer creates an MCP server with all Rocker tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, workspace string) *mcp.Server {
	h := newHandler(cfg, r, store, workspace)

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "rocker", Version: rocker.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "docker_build",
		Description: `Build an image with docker build.

Context, Dockerfile and build args default to the .rocker config. The captured output tail
is returned; the full output is stored for drill-down via run_inspect.`,
	}, h.buildHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "docker_create",
		Description: "Create (but do not start) a container from an image and return its ID.",
	}, h.createHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "docker_copy",
		Description: "Copy a path out of a container to the local filesystem with docker cp.",
	}, h.copyHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "docker_rm",
		Description: "Remove a container.",
	}, h.removeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "docker_extract",
		Description: `Build an image, create a container from it, copy a path out and remove the container.

Stops on the first failing step. The container is always removed once it was created.
Each step is stored separately for drill-down via run_inspect.`,
	}, h.extractHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "docker_version",
		Description: "Report the container CLI version together with the active workspace and config.",
	}, h.versionHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "run_inspect",
		Description: `Drill into the captured output of a previous run.

Use the run_id from any docker_* result. An optional regular expression narrows the output
to matching lines, each prefixed with its line number.`,
	}, h.inspectHandler)

	return s
}

func newHandler(cfg *config.Config, r *runner.Runner, store report.Store, workspace string) *handler {
	return &handler{
		store: store,
		target: &target{
			engine: &docker.Engine{
				Config: cfg,
				Runner: r,
				Store:  store,
				Logger: r.Logger,
			},
			runner:    r,
			workspace: workspace,
			root:      workspace, // updated via roots
		},
	}
}

// updateWorkspaceFromRoots queries the client for MCP roots and retargets
// the handler if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	if err := h.retarget(u.Path); err != nil {
		h.current().logger().WithError(err).WithField("workspace", u.Path).Warn("ignoring client root")
	}
}

// retarget loads the config of workspace and swaps in a runner and engine
// for it. Calls already in flight keep the target they started with.
func (h *handler) retarget(workspace string) error {
	loaded, err := config.Load(workspace)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r := *h.target.runner
	r.Dir = workspace
	r.Tool = loaded.Config.Tool()
	r.Timeout = loaded.Config.Timeout()

	h.target = &target{
		engine: &docker.Engine{
			Config: loaded.Config,
			Runner: &r,
			Store:  h.store,
			Logger: r.Logger,
		},
		runner:    &r,
		workspace: workspace,
		root:      loaded.Root,
	}
	return nil
}

// current returns the target for a tool call.
func (h *handler) current() *target {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.target
}

func (t *target) logger() logrus.FieldLogger {
	if t.runner.Logger != nil {
		return t.runner.Logger
	}
	return logrus.StandardLogger()
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
