// Package docker assembles argument lists for the docker CLI and runs them
// through a CommandRunner. Each operation has an immutable builder whose
// configuration methods return a modified copy, and a terminal Run method
// that returns an operation-specific result.
package docker

import (
	"context"

	"github.com/deixis/rocker/internal/runner"
)

// CommandRunner executes a command descriptor.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (*runner.Result, error)
}

// Compile-time checks that every builder is a command descriptor.
var (
	_ runner.Command = BuildCommand{}
	_ runner.Command = CreateCommand{}
	_ runner.Command = CopyCommand{}
	_ runner.Command = RemoveCommand{}
	_ runner.Command = VersionCommand{}
	_ CommandRunner  = (*runner.Runner)(nil)
)
