package docker

import (
	"context"

	"github.com/deixis/rocker/internal/runner"
)

// RemoveCommand removes a container with `docker rm`.
type RemoveCommand struct {
	container string
	force     bool
}

// Remove returns a removal of the given container.
func Remove(container string) RemoveCommand {
	return RemoveCommand{container: container}
}

// Force removes the container even if it is running.
func (c RemoveCommand) Force() RemoveCommand {
	c.force = true
	return c
}

// Args returns rm [-f] <container>.
func (c RemoveCommand) Args() []string {
	args := []string{"rm"}
	if c.force {
		args = append(args, "-f")
	}
	return append(args, c.container)
}

// Run executes the removal.
func (c RemoveCommand) Run(ctx context.Context, r CommandRunner) (*runner.Result, error) {
	return r.Run(ctx, c)
}
