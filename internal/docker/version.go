package docker

import (
	"context"

	"github.com/deixis/rocker/internal/runner"
)

// VersionCommand reports client and server versions with `docker version`.
type VersionCommand struct {
	format string
}

// Version returns a version query with the default output.
func Version() VersionCommand {
	return VersionCommand{}
}

// Format sets a Go template for the output, e.g. "{{.Server.Version}}".
func (c VersionCommand) Format(tmpl string) VersionCommand {
	c.format = tmpl
	return c
}

// Args returns version [--format <tmpl>].
func (c VersionCommand) Args() []string {
	args := []string{"version"}
	if c.format != "" {
		args = append(args, "--format", c.format)
	}
	return args
}

// Run executes the query.
func (c VersionCommand) Run(ctx context.Context, r CommandRunner) (*runner.Result, error) {
	return r.Run(ctx, c)
}
