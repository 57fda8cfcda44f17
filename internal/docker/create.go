package docker

import (
	"context"
	"strings"

	"github.com/deixis/rocker/internal/runner"
)

// CreateCommand creates a container from an image with `docker create`.
type CreateCommand struct {
	image string
	name  string
}

// Create returns a create of the given image.
func Create(image string) CreateCommand {
	return CreateCommand{image: image}
}

// Name assigns a name to the container.
func (c CreateCommand) Name(name string) CreateCommand {
	c.name = name
	return c
}

// Args returns create [--name <name>] <image>.
func (c CreateCommand) Args() []string {
	args := []string{"create"}
	if c.name != "" {
		args = append(args, "--name", c.name)
	}
	return append(args, c.image)
}

// CreateResult is the outcome of a create.
//
// ContainerID is the trimmed output of the run. docker prints only the id
// on success, so any other line merged into the output (a pull progress
// message, a warning on stderr) ends up in ContainerID as well.
type CreateResult struct {
	Process     runner.Result
	ContainerID string
}

func newCreateResult(res *runner.Result) *CreateResult {
	return &CreateResult{
		Process:     *res,
		ContainerID: strings.TrimSpace(res.Output),
	}
}

// Run executes the create.
func (c CreateCommand) Run(ctx context.Context, r CommandRunner) (*CreateResult, error) {
	res, err := r.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return newCreateResult(res), nil
}
