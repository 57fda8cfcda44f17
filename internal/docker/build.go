package docker

import (
	"context"

	"github.com/deixis/rocker/internal/runner"
)

// Defaults used by Build.
const (
	DefaultContext    = "."
	DefaultDockerfile = "Dockerfile"
)

// BuildCommand builds an image with `docker build`.
type BuildCommand struct {
	context   string
	file      string
	tag       string
	buildArgs []string // KEY=VALUE, in the order they were added
}

// Build returns a build of ./Dockerfile in the current directory.
func Build() BuildCommand {
	return BuildCommand{
		context: DefaultContext,
		file:    DefaultDockerfile,
	}
}

// Context sets the build context directory.
func (b BuildCommand) Context(dir string) BuildCommand {
	b.context = dir
	return b
}

// File sets the Dockerfile path.
func (b BuildCommand) File(path string) BuildCommand {
	b.file = path
	return b
}

// Tag names the resulting image. An empty tag leaves the image untagged.
func (b BuildCommand) Tag(tag string) BuildCommand {
	b.tag = tag
	return b
}

// BuildArg adds a --build-arg KEY=VALUE pair.
func (b BuildCommand) BuildArg(key, value string) BuildCommand {
	args := make([]string, len(b.buildArgs), len(b.buildArgs)+1)
	copy(args, b.buildArgs)
	b.buildArgs = append(args, key+"="+value)
	return b
}

// Args returns build -f <file> [--build-arg k=v]... [-t <tag>] <context>.
func (b BuildCommand) Args() []string {
	args := []string{"build", "-f", b.file}
	for _, kv := range b.buildArgs {
		args = append(args, "--build-arg", kv)
	}
	if b.tag != "" {
		args = append(args, "-t", b.tag)
	}
	return append(args, b.context)
}

// BuildResult is the outcome of a build.
type BuildResult struct {
	Process runner.Result
	Tag     string // the requested tag, empty if none
}

// Run executes the build.
func (b BuildCommand) Run(ctx context.Context, r CommandRunner) (*BuildResult, error) {
	res, err := r.Run(ctx, b)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Process: *res, Tag: b.tag}, nil
}
