// Command rocker runs docker builds and container file extraction with
// recorded, inspectable output.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/deixis/rocker"
	"github.com/deixis/rocker/internal/config"
	"github.com/deixis/rocker/internal/docker"
	rockermcp "github.com/deixis/rocker/internal/mcp"
	"github.com/deixis/rocker/internal/report"
	"github.com/deixis/rocker/internal/runner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "build":
		err = buildMain(args)
	case "create":
		err = createMain(args)
	case "cp":
		err = copyMain(args)
	case "rm":
		err = removeMain(args)
	case "extract":
		err = extractMain(args)
	case "inspect":
		err = inspectMain(args)
	case "history":
		err = historyMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		err = versionMain(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "rocker: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			os.Exit(se.status)
		}
		fmt.Fprintf(os.Stderr, "rocker: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: rocker <command> [flags] [args]

Commands:
  build       Build an image (docker build)
  create      Create a container from an image (docker create)
  cp          Copy a path out of a container (docker cp)
  rm          Remove a container (docker rm)
  extract     Build, create, copy a path out and remove the container
  inspect     Show the recorded output of a run
  history     List recorded runs
  mcp         Start the MCP server
  version     Print the rocker and docker versions
  help        Show this help

Use "rocker <command> -h" for command-specific flags.`)
}

// statusError makes rocker exit with a child's nonzero exit status.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("exit status %d", e.status)
}

// exitWith returns a statusError for a failed run, nil otherwise.
func exitWith(res *runner.Result) error {
	if res.Success() {
		return nil
	}
	return &statusError{status: res.ExitStatus}
}

// commonFlags are shared by every command that runs docker.
type commonFlags struct {
	timeout time.Duration
	verbose bool
	json    bool
	noColor bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.DurationVar(&c.timeout, "timeout", 0, "override configured timeout (e.g. 5m)")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	fs.BoolVar(&c.json, "json", false, "output the recorded run as JSON")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored output")
}

// --- build ---

func buildMain(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	file := fs.String("f", "", "Dockerfile path (default: build.file from .rocker, else Dockerfile)")
	tag := fs.String("t", "", "tag the image (e.g. myimage:latest)")
	var buildArgs buildArgsFlag
	fs.Var(&buildArgs, "build-arg", "KEY=VALUE build argument; repeatable, shell-quoted lists allowed")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(common)
	if err != nil {
		return err
	}

	res, err := e.engine.Build(ctx, docker.BuildOptions{
		Context:   fs.Arg(0),
		File:      *file,
		Tag:       *tag,
		BuildArgs: buildArgs.values,
	})
	if err != nil {
		return err
	}
	if err := e.print(report.Build, &res.Process, common.json); err != nil {
		return err
	}
	return exitWith(&res.Process)
}

// --- create ---

func createMain(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	name := fs.String("name", "", "container name")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rocker create [-name name] <image>")
	}

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(common)
	if err != nil {
		return err
	}

	res, err := e.engine.Create(ctx, docker.CreateOptions{Image: fs.Arg(0), Name: *name})
	if err != nil {
		return err
	}
	if err := e.print(report.Create, &res.Process, common.json); err != nil {
		return err
	}
	if res.Process.Success() && !common.json {
		// The container ID is the only thing on stdout, for scripting.
		fmt.Println(res.ContainerID)
	}
	return exitWith(&res.Process)
}

// --- cp ---

func copyMain(args []string) error {
	fs := flag.NewFlagSet("cp", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: rocker cp <container>:<path> <dest>")
	}
	container, from, err := splitContainerPath(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(common)
	if err != nil {
		return err
	}

	res, err := e.engine.Copy(ctx, docker.CopyOptions{Container: container, From: from, To: fs.Arg(1)})
	if err != nil {
		return err
	}
	if err := e.print(report.Copy, &res.Process, common.json); err != nil {
		return err
	}
	return exitWith(&res.Process)
}

// --- rm ---

func removeMain(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	force := fs.Bool("f", false, "force removal of a running container")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rocker rm [-f] <container>")
	}

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(common)
	if err != nil {
		return err
	}

	res, err := e.engine.Remove(ctx, docker.RemoveOptions{Container: fs.Arg(0), Force: *force})
	if err != nil {
		return err
	}
	if err := e.print(report.Remove, res, common.json); err != nil {
		return err
	}
	return exitWith(res)
}

// --- extract ---

func extractMain(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	file := fs.String("f", "", "Dockerfile path (default: build.file from .rocker, else Dockerfile)")
	tag := fs.String("t", "", "image tag (default: generated)")
	buildContext := fs.String("context", "", "build context (default: build.context from .rocker, else .)")
	var buildArgs buildArgsFlag
	fs.Var(&buildArgs, "build-arg", "KEY=VALUE build argument; repeatable, shell-quoted lists allowed")
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: rocker extract [flags] <path-in-image> <dest>")
	}

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(common)
	if err != nil {
		return err
	}

	result, err := e.engine.Extract(ctx, docker.ExtractOptions{
		Build: docker.BuildOptions{
			Context:   *buildContext,
			File:      *file,
			Tag:       *tag,
			BuildArgs: buildArgs.values,
		},
		From: fs.Arg(0),
		To:   fs.Arg(1),
	})
	if err != nil {
		return err
	}

	if common.json {
		if err := writeJSON(result.RunResult); err != nil {
			return err
		}
	} else {
		fmt.Print(formatExtractCLI(result, common.verbose))
	}
	if result.FailedIdx >= 0 {
		return &statusError{status: result.RunResult.ExitStatus}
	}
	return nil
}

// --- inspect ---

func inspectMain(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	pattern := fs.String("grep", "", "only show output lines matching this regular expression")
	jsonFlag := fs.Bool("json", false, "output the recorded run as JSON")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rocker inspect [-grep pattern] <run-id>")
	}

	e, err := newEnv(commonFlags{})
	if err != nil {
		return err
	}

	rr, err := e.disk.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	if *jsonFlag {
		return writeJSON(rr)
	}

	lines, err := report.Grep(rr, *pattern)
	if err != nil {
		return err
	}
	fmt.Print(formatInspectCLI(e.runner.Tool, rr, lines))
	return nil
}

// --- history ---

func historyMain(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of runs to show (0 for all)")
	_ = fs.Parse(args)

	e, err := newEnv(commonFlags{})
	if err != nil {
		return err
	}

	runs, err := e.disk.List(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stderr, "No runs recorded in %s\n", e.disk.Dir())
		return nil
	}
	return writeHistory(os.Stdout, e.runner.Tool, runs)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(rockermcp.Instructions)
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(commonFlags{verbose: *verbose, noColor: true})
	if err != nil {
		return err
	}

	// Results stay hot in memory for run_inspect and are kept on disk too.
	store := report.NewLRUStore(32, e.disk)
	server := rockermcp.NewServer(e.cfg, e.runner, store, e.workspace)

	if *httpAddr != "" {
		return serveHTTP(ctx, e.logger, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, logger logrus.FieldLogger, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- version ---

func versionMain(args []string) error {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	format := fs.String("format", "", "Go template passed to docker version --format")
	short := fs.Bool("short", false, "only print the rocker version")
	_ = fs.Parse(args)

	fmt.Printf("rocker %s\n", rocker.Version)
	if *short {
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(commonFlags{})
	if err != nil {
		return err
	}
	res, err := e.engine.Version(ctx, *format)
	if err != nil {
		return err
	}
	return exitWith(res)
}

// --- shared ---

// env is the configured runtime shared by all commands.
type env struct {
	workspace string
	cfg       *config.Config
	logger    *logrus.Logger
	runner    *runner.Runner
	disk      *report.DiskStore
	engine    *docker.Engine
}

func newEnv(common commonFlags) (*env, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(cfg.LogLevel())
	if common.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if common.noColor {
		color.NoColor = true
	}

	timeout := cfg.Timeout()
	if common.timeout > 0 {
		timeout = common.timeout
	}

	r := &runner.Runner{
		Tool:    cfg.Tool(),
		Dir:     workspace,
		Timeout: timeout,
		Echo:    os.Stderr,
		Logger:  logger,
	}
	disk := report.NewDiskStore(cfg.HistoryDir(loaded.Root))

	return &env{
		workspace: workspace,
		cfg:       cfg,
		logger:    logger,
		runner:    r,
		disk:      disk,
		engine: &docker.Engine{
			Config: cfg,
			Runner: r,
			Store:  disk,
			Logger: logger,
		},
	}, nil
}

// print reports a finished run. The live output has already been echoed
// to stderr, so the text form is a one-line status.
func (e *env) print(kind report.Kind, res *runner.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(report.FromProcess(kind, res))
	}
	fmt.Fprintln(os.Stderr, formatStatus(res))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
