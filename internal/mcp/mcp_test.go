package mcp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/deixis/rocker/internal/config"
	"github.com/deixis/rocker/internal/report"
	"github.com/deixis/rocker/internal/runner"
)

// fakeDocker answers the subcommands the server issues. cp fails for
// any source path under /missing.
const fakeDocker = `#!/bin/sh
case "$1" in
build)
	echo "Step 1/2 : FROM alpine"
	echo "Step 2/2 : RUN make"
	echo "args: $*"
	;;
create)
	echo abc123
	;;
cp)
	case "$2" in
	*:/missing*)
		echo "Error response from daemon: Could not find the file /missing in container abc123" >&2
		exit 1
		;;
	esac
	;;
rm)
	for last; do :; done
	echo "$last"
	;;
version)
	echo "Client: Docker Engine - Fake"
	echo " Version: 27.0.0"
	;;
esac
`

// setup creates a full Rocker MCP server + client over in-memory transports,
// with the container CLI replaced by fakeDocker.
func setup(t *testing.T, cfg *config.Config) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	workspace := t.TempDir()
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.RawTool == "" {
		tool := filepath.Join(t.TempDir(), "docker")
		if err := os.WriteFile(tool, []byte(fakeDocker), 0o755); err != nil {
			t.Fatalf("writing fake docker: %v", err)
		}
		cfg.RawTool = tool
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := report.NewLRUStore(5, report.NewDiskStore(t.TempDir()))
	r := &runner.Runner{
		Tool:    cfg.Tool(),
		Dir:     workspace,
		Timeout: 30 * time.Second,
		Echo:    io.Discard,
		Logger:  logger,
	}

	server := NewServer(cfg, r, store, workspace)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// runID returns the first "Run: <id>" value in text.
func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if id, ok := strings.CutPrefix(line, "Run: "); ok {
			return strings.Fields(id)[0]
		}
	}
	t.Fatalf("no run ID in output:\n%s", text)
	return ""
}

// --- docker_build ---

func TestDockerBuild(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_build", map[string]any{"tag": "myimage:latest"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Status: PASS") {
		t.Errorf("expected Status: PASS, got:\n%s", text)
	}
	if !strings.Contains(text, "Tag: myimage:latest") {
		t.Errorf("expected Tag line, got:\n%s", text)
	}
	if !strings.Contains(text, "args: build -f Dockerfile -t myimage:latest .") {
		t.Errorf("expected the tag to precede the context, got:\n%s", text)
	}
}

func TestDockerBuild_ConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Build: config.BuildConfig{
			File:    "build/Dockerfile",
			Context: "src",
			Args:    map[string]string{"GO_VERSION": "1.25"},
		},
	}
	cs := setup(t, cfg)
	res := callTool(t, cs, "docker_build", map[string]any{
		"build_args": map[string]any{"CGO_ENABLED": "0"},
	})
	text := resultText(res)
	want := "args: build -f build/Dockerfile --build-arg CGO_ENABLED=0 --build-arg GO_VERSION=1.25 src"
	if !strings.Contains(text, want) {
		t.Errorf("expected %q, got:\n%s", want, text)
	}
}

func TestDockerBuild_InvalidTag(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_build", map[string]any{"tag": "Not A Tag"})
	if !res.IsError {
		t.Fatalf("expected error result, got:\n%s", resultText(res))
	}
	if !strings.Contains(resultText(res), "invalid tag") {
		t.Errorf("expected invalid tag message, got:\n%s", resultText(res))
	}
}

func TestDockerBuild_ToolMissing(t *testing.T) {
	cfg := &config.Config{RawTool: filepath.Join(t.TempDir(), "no-such-docker")}
	cs := setup(t, cfg)
	res := callTool(t, cs, "docker_build", nil)
	text := resultText(res)
	if !res.IsError {
		t.Fatalf("expected error result, got:\n%s", text)
	}
	if !strings.Contains(text, "failed to start") {
		t.Errorf("expected launch failure, got:\n%s", text)
	}
}

// --- docker_create ---

func TestDockerCreate(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_create", map[string]any{"image": "alpine"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Container: abc123\n") {
		t.Errorf("expected trimmed container ID, got:\n%s", text)
	}
}

func TestDockerCreate_MissingImage(t *testing.T) {
	cs := setup(t, nil)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "docker_create",
		Arguments: map[string]any{},
	})
	if err == nil {
		t.Fatal("expected error for missing required image")
	}
}

// --- docker_copy / docker_rm ---

func TestDockerCopy_Failure(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_copy", map[string]any{
		"container": "abc123",
		"from":      "/missing",
		"to":        "out",
	})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("a nonzero exit is a result, not a tool error: %s", text)
	}
	if !strings.Contains(text, "Status: FAIL (exit status 1)") {
		t.Errorf("expected FAIL with exit status, got:\n%s", text)
	}
	if !strings.Contains(text, "Could not find the file /missing") {
		t.Errorf("expected stderr in output, got:\n%s", text)
	}
	if !strings.Contains(text, "run_inspect") {
		t.Errorf("expected run_inspect hint, got:\n%s", text)
	}
}

func TestDockerRm(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_rm", map[string]any{"container": "abc123", "force": true})
	text := resultText(res)
	if !strings.Contains(text, "Status: PASS") {
		t.Errorf("expected Status: PASS, got:\n%s", text)
	}
	if !strings.Contains(text, "rm -f abc123") {
		t.Errorf("expected forced rm command, got:\n%s", text)
	}
}

// --- docker_extract ---

func TestDockerExtract(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_extract", map[string]any{"from": "/out/app", "to": "app"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Status: PASS", "build: pass", "create: pass", "copy: pass", "remove: pass", "Tag: rocker-extract:"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q, got:\n%s", want, text)
		}
	}
}

func TestDockerExtract_CopyFailureStillRemoves(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_extract", map[string]any{"from": "/missing", "to": "app"})
	text := resultText(res)
	for _, want := range []string{"Status: FAIL", "copy: fail", "remove: pass", "Failed step: copy (exit status 1)"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q, got:\n%s", want, text)
		}
	}
}

// --- docker_version ---

func TestDockerVersion(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "docker_version", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Rocker:", "Workspace:", "Config: (defaults)", "Version: 27.0.0"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q, got:\n%s", want, text)
		}
	}
}

// --- run_inspect ---

func TestRunInspect(t *testing.T) {
	cs := setup(t, nil)
	build := resultText(callTool(t, cs, "docker_build", nil))
	id := runID(t, build)

	res := callTool(t, cs, "run_inspect", map[string]any{"run_id": id, "pattern": `^Step \d`})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Run: "+id+" (build)") {
		t.Errorf("expected run header, got:\n%s", text)
	}
	if !strings.Contains(text, "    1  Step 1/2 : FROM alpine") || !strings.Contains(text, "    2  Step 2/2 : RUN make") {
		t.Errorf("expected numbered matches, got:\n%s", text)
	}
	if strings.Contains(text, "args:") {
		t.Errorf("unmatched line leaked into output:\n%s", text)
	}
}

func TestRunInspect_ExtractSteps(t *testing.T) {
	cs := setup(t, nil)
	extract := resultText(callTool(t, cs, "docker_extract", map[string]any{"from": "/out", "to": "out"}))
	id := runID(t, extract)

	text := resultText(callTool(t, cs, "run_inspect", map[string]any{"run_id": id}))
	if !strings.Contains(text, "("+string(report.Extract)+")") || !strings.Contains(text, "copy: pass (run ") {
		t.Errorf("expected extract steps, got:\n%s", text)
	}
}

func TestRunInspect_UnknownRun(t *testing.T) {
	cs := setup(t, nil)
	res := callTool(t, cs, "run_inspect", map[string]any{"run_id": "00000000-0000-0000-0000-000000000000"})
	if !res.IsError {
		t.Errorf("expected error for unknown run, got:\n%s", resultText(res))
	}
}

func TestRunInspect_InvalidPattern(t *testing.T) {
	cs := setup(t, nil)
	id := runID(t, resultText(callTool(t, cs, "docker_build", nil)))
	res := callTool(t, cs, "run_inspect", map[string]any{"run_id": id, "pattern": "("})
	if !res.IsError {
		t.Errorf("expected error for invalid pattern, got:\n%s", resultText(res))
	}
}

// --- workspace roots ---

func newTestHandler(t *testing.T) (*handler, *runner.Runner) {
	t.Helper()
	tool := filepath.Join(t.TempDir(), "docker")
	if err := os.WriteFile(tool, []byte(fakeDocker), 0o755); err != nil {
		t.Fatalf("writing fake docker: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := &runner.Runner{Tool: tool, Dir: t.TempDir(), Echo: io.Discard, Logger: logger}
	store := report.NewLRUStore(5, report.NewDiskStore(t.TempDir()))
	return newHandler(&config.Config{RawTool: tool}, r, store, r.Dir), r
}

func TestRetarget(t *testing.T) {
	h, original := newTestHandler(t)

	workspace := t.TempDir()
	alt := filepath.Join(t.TempDir(), "podman")
	if err := os.WriteFile(alt, []byte(fakeDocker), 0o755); err != nil {
		t.Fatalf("writing fake podman: %v", err)
	}
	rc := "version: 1\ntool: " + alt + "\ntimeout: 1m\n"
	if err := os.WriteFile(filepath.Join(workspace, config.FileName), []byte(rc), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	before := h.current()
	if err := h.retarget(workspace); err != nil {
		t.Fatalf("retarget: %v", err)
	}
	after := h.current()

	if after.workspace != workspace || after.root != workspace {
		t.Errorf("workspace = %q, root = %q, want %q", after.workspace, after.root, workspace)
	}
	if after.tool() != alt || after.runner.Dir != workspace || after.runner.Timeout != time.Minute {
		t.Errorf("runner not retargeted: tool=%q dir=%q timeout=%s", after.tool(), after.runner.Dir, after.runner.Timeout)
	}
	// The previous target is left untouched for calls still using it.
	if before.runner != original || original.Dir == workspace || original.Tool == alt {
		t.Errorf("previous runner was mutated: %+v", original)
	}

	res, _, _ := h.versionHandler(context.Background(), nil, versionParams{})
	text := resultText(res)
	if !strings.Contains(text, "Workspace: "+workspace) || !strings.Contains(text, "Tool: "+alt) {
		t.Errorf("expected retargeted workspace and tool, got:\n%s", text)
	}
}

func TestRetarget_InvalidConfig(t *testing.T) {
	h, _ := newTestHandler(t)
	before := h.current()

	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, config.FileName), []byte("timeout: [\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if err := h.retarget(workspace); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if h.current() != before {
		t.Error("target changed despite invalid config")
	}
}

func TestRetarget_ConcurrentWithToolCalls(t *testing.T) {
	h, r := newTestHandler(t)
	workspaces := []string{t.TempDir(), t.TempDir()}
	for _, ws := range workspaces {
		rc := "tool: " + r.Tool + "\n"
		if err := os.WriteFile(filepath.Join(ws, config.FileName), []byte(rc), 0o644); err != nil {
			t.Fatalf("writing config: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := h.retarget(workspaces[i%2]); err != nil {
				t.Errorf("retarget: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			res, _, _ := h.removeHandler(context.Background(), nil, removeParams{Container: "abc123"})
			if res.IsError {
				t.Errorf("unexpected error: %s", resultText(res))
			}
		}()
	}
	wg.Wait()
}
