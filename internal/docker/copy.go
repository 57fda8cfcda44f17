package docker

import (
	"context"

	"github.com/deixis/rocker/internal/runner"
)

// CopyCommand copies a path out of a container with `docker cp`.
type CopyCommand struct {
	container string
	from      string
	to        string
}

// Copy returns a copy of from inside container to the local path to.
func Copy(container, from, to string) CopyCommand {
	return CopyCommand{container: container, from: from, to: to}
}

// Container sets the source container.
func (c CopyCommand) Container(id string) CopyCommand {
	c.container = id
	return c
}

// From sets the path inside the container.
func (c CopyCommand) From(path string) CopyCommand {
	c.from = path
	return c
}

// To sets the local destination path.
func (c CopyCommand) To(path string) CopyCommand {
	c.to = path
	return c
}

// Args returns cp <container>:<from> <to>.
func (c CopyCommand) Args() []string {
	return []string{"cp", c.container + ":" + c.from, c.to}
}

// CopyResult is the outcome of a copy.
type CopyResult struct {
	Process runner.Result
}

// Run executes the copy.
func (c CopyCommand) Run(ctx context.Context, r CommandRunner) (*CopyResult, error) {
	res, err := r.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return &CopyResult{Process: *res}, nil
}
