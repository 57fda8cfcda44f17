package docker

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/distribution/reference"
	"github.com/sirupsen/logrus"

	"github.com/deixis/rocker/internal/config"
	"github.com/deixis/rocker/internal/report"
	"github.com/deixis/rocker/internal/runner"
)

// Engine applies configured defaults to each operation, validates its
// inputs, runs it and records the result. It is consumed by both the MCP
// server and the CLI commands.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Store  report.Store       // optional; nil disables recording
	Logger logrus.FieldLogger // optional; defaults to the standard logger
}

// BuildOptions configures a build. Empty fields fall back to the config.
type BuildOptions struct {
	Context   string
	File      string
	Tag       string
	BuildArgs map[string]string // merged over config build args
}

// CreateOptions configures a create.
type CreateOptions struct {
	Image string
	Name  string
}

// CopyOptions configures a copy out of a container.
type CopyOptions struct {
	Container string
	From      string
	To        string
}

// RemoveOptions configures a container removal.
type RemoveOptions struct {
	Container string
	Force     bool
}

// containerName matches the names docker accepts for --name.
var containerName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

// BuildCommand returns the build described by opts with config defaults applied.
func (e *Engine) BuildCommand(opts BuildOptions) (BuildCommand, error) {
	b := Build()
	if c := firstNonEmpty(opts.Context, e.config().Build.Context); c != "" {
		b = b.Context(c)
	}
	if f := firstNonEmpty(opts.File, e.config().Build.File); f != "" {
		b = b.File(f)
	}
	if opts.Tag != "" {
		if _, err := reference.ParseNormalizedNamed(opts.Tag); err != nil {
			return BuildCommand{}, fmt.Errorf("invalid tag %q: %w", opts.Tag, err)
		}
		b = b.Tag(opts.Tag)
	}

	merged := make(map[string]string, len(e.config().Build.Args)+len(opts.BuildArgs))
	for k, v := range e.config().Build.Args {
		merged[k] = v
	}
	for k, v := range opts.BuildArgs {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b = b.BuildArg(k, merged[k])
	}
	return b, nil
}

// Build runs docker build.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	b, err := e.BuildCommand(opts)
	if err != nil {
		return nil, err
	}
	res, err := b.Run(ctx, e.Runner)
	if err != nil {
		return nil, fmt.Errorf("docker build: %w", err)
	}

	rr := report.FromProcess(report.Build, &res.Process)
	rr.Tag = res.Tag
	e.record(rr)
	return res, nil
}

// Create runs docker create.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("image is required")
	}
	// Image IDs and digests are accepted as well as names.
	if _, err := reference.ParseAnyReference(opts.Image); err != nil {
		return nil, fmt.Errorf("invalid image %q: %w", opts.Image, err)
	}
	c := Create(opts.Image)
	if opts.Name != "" {
		if !containerName.MatchString(opts.Name) {
			return nil, fmt.Errorf("invalid container name %q", opts.Name)
		}
		c = c.Name(opts.Name)
	}

	res, err := c.Run(ctx, e.Runner)
	if err != nil {
		return nil, fmt.Errorf("docker create: %w", err)
	}

	rr := report.FromProcess(report.Create, &res.Process)
	if res.Process.Success() {
		rr.ContainerID = res.ContainerID
	}
	e.record(rr)
	return res, nil
}

// Copy runs docker cp from a container to the local filesystem.
func (e *Engine) Copy(ctx context.Context, opts CopyOptions) (*CopyResult, error) {
	switch {
	case opts.Container == "":
		return nil, fmt.Errorf("container is required")
	case opts.From == "":
		return nil, fmt.Errorf("source path is required")
	case opts.To == "":
		return nil, fmt.Errorf("destination path is required")
	}

	res, err := Copy(opts.Container, opts.From, opts.To).Run(ctx, e.Runner)
	if err != nil {
		return nil, fmt.Errorf("docker cp: %w", err)
	}

	rr := report.FromProcess(report.Copy, &res.Process)
	rr.ContainerID = opts.Container
	e.record(rr)
	return res, nil
}

// Remove runs docker rm.
func (e *Engine) Remove(ctx context.Context, opts RemoveOptions) (*runner.Result, error) {
	if opts.Container == "" {
		return nil, fmt.Errorf("container is required")
	}
	c := Remove(opts.Container)
	if opts.Force {
		c = c.Force()
	}

	res, err := c.Run(ctx, e.Runner)
	if err != nil {
		return nil, fmt.Errorf("docker rm: %w", err)
	}

	rr := report.FromProcess(report.Remove, res)
	rr.ContainerID = opts.Container
	e.record(rr)
	return res, nil
}

// Version runs docker version. An empty format uses docker's default output.
func (e *Engine) Version(ctx context.Context, format string) (*runner.Result, error) {
	res, err := Version().Format(format).Run(ctx, e.Runner)
	if err != nil {
		return nil, fmt.Errorf("docker version: %w", err)
	}
	e.record(report.FromProcess(report.Version, res))
	return res, nil
}

// record saves rr to the store. A failed save is logged, not returned:
// the run itself already happened and its result is still handed back.
func (e *Engine) record(rr *report.RunResult) {
	if e.Store == nil {
		return
	}
	if err := e.Store.Save(rr); err != nil {
		e.logger().WithError(err).WithField("run_id", rr.ID).Warn("failed to save run result")
	}
}

func (e *Engine) config() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return &config.Config{}
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
