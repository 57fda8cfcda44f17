package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/rocker/internal/report"
	"github.com/deixis/rocker/internal/runner"
)

// ExtractOptions configures an extract: build an image, then copy a path
// out of a container created from it.
type ExtractOptions struct {
	Build BuildOptions // Tag defaults to a generated rocker-extract tag
	From  string       // path inside the container
	To    string       // local destination
}

// ExtractResult holds the full outcome of an extract run.
type ExtractResult struct {
	RunResult *report.RunResult
	Steps     []StepResult
	FailedIdx int // -1 if all passed
}

// StepResult holds the outcome of a single extract step.
type StepResult struct {
	Name       string
	Status     string // pass, fail, skipped
	RunID      string
	ExitStatus int
	Output     string // captured output (only on failure)
}

// Extract step names, in execution order.
const (
	StepBuild  = "build"
	StepCreate = "create"
	StepCopy   = "copy"
	StepRemove = "remove"
)

// Extract runs build, create, cp and rm in sequence, stopping on the first
// step that exits nonzero. Once a container has been created it is always
// removed, even when the copy failed. An execution error aborts the
// pipeline after that cleanup and is returned wrapped.
func (e *Engine) Extract(ctx context.Context, opts ExtractOptions) (*ExtractResult, error) {
	if opts.From == "" || opts.To == "" {
		return nil, fmt.Errorf("source and destination paths are required")
	}

	runID := uuid.New().String()
	if opts.Build.Tag == "" {
		opts.Build.Tag = "rocker-extract:" + strings.ReplaceAll(runID, "-", "")[:12]
	}

	names := []string{StepBuild, StepCreate, StepCopy, StepRemove}
	steps := make([]StepResult, len(names))
	for i, name := range names {
		steps[i] = StepResult{Name: name, Status: "skipped"}
	}
	failedIdx := -1
	var elapsed time.Duration
	finish := func(i int, res *runner.Result) bool {
		elapsed += res.Duration
		steps[i].RunID = res.RunID
		steps[i].ExitStatus = res.ExitStatus
		if res.Success() {
			steps[i].Status = "pass"
			return true
		}
		steps[i].Status = "fail"
		steps[i].Output = strings.TrimPrefix(res.Output, "\n")
		if failedIdx < 0 {
			failedIdx = i
		}
		return false
	}

	built, err := e.Build(ctx, opts.Build)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if finish(0, &built.Process) {
		created, err := e.Create(ctx, CreateOptions{Image: opts.Build.Tag})
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		if finish(1, &created.Process) {
			container := created.ContainerID

			copied, copyErr := e.Copy(ctx, CopyOptions{Container: container, From: opts.From, To: opts.To})
			if copyErr == nil {
				finish(2, &copied.Process)
			}

			removed, err := e.Remove(ctx, RemoveOptions{Container: container, Force: true})
			if copyErr != nil {
				return nil, fmt.Errorf("extract: %w", copyErr)
			}
			if err != nil {
				return nil, fmt.Errorf("extract: %w", err)
			}
			finish(3, removed)
		}
	}

	rr := &report.RunResult{
		ID:        runID,
		Kind:      report.Extract,
		Tag:       opts.Build.Tag,
		StartedAt: built.Process.StartedAt,
		Duration:  elapsed,
	}
	for _, s := range steps {
		rr.Steps = append(rr.Steps, report.Step{
			Name:       s.Name,
			Status:     s.Status,
			RunID:      s.RunID,
			ExitStatus: s.ExitStatus,
		})
	}
	if failedIdx >= 0 {
		rr.ExitStatus = steps[failedIdx].ExitStatus
		if out := steps[failedIdx].Output; out != "" {
			rr.Output = "\n" + out
		}
	}
	e.record(rr)

	return &ExtractResult{
		RunResult: rr,
		Steps:     steps,
		FailedIdx: failedIdx,
	}, nil
}
