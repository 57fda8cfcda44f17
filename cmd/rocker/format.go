package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/kballard/go-shellquote"

	"github.com/deixis/rocker/internal/docker"
	"github.com/deixis/rocker/internal/report"
	"github.com/deixis/rocker/internal/runner"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.Faint)
)

// buildArgsFlag collects repeated -build-arg values. Each value may hold
// several shell-quoted KEY=VALUE words.
type buildArgsFlag struct {
	values map[string]string
}

func (f *buildArgsFlag) String() string {
	if f == nil || len(f.values) == 0 {
		return ""
	}
	var words []string
	for k, v := range f.values {
		words = append(words, k+"="+v)
	}
	return shellquote.Join(words...)
}

func (f *buildArgsFlag) Set(value string) error {
	words, err := shellquote.Split(value)
	if err != nil {
		return fmt.Errorf("parsing build arg %q: %w", value, err)
	}
	if len(words) == 0 {
		return fmt.Errorf("empty build arg")
	}
	if f.values == nil {
		f.values = make(map[string]string, len(words))
	}
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return fmt.Errorf("build arg %q is not KEY=VALUE", w)
		}
		f.values[k] = v
	}
	return nil
}

// splitContainerPath splits "container:path" as accepted by docker cp.
func splitContainerPath(s string) (container, path string, err error) {
	container, path, ok := strings.Cut(s, ":")
	if !ok || container == "" || path == "" {
		return "", "", fmt.Errorf("expected <container>:<path>, got %q", s)
	}
	return container, path, nil
}

// formatStatus renders the one-line summary printed after a run.
func formatStatus(res *runner.Result) string {
	d := res.Duration.Round(time.Millisecond)
	if res.Success() {
		return fmt.Sprintf("%s  run %s  (%s)", okColor.Sprint("ok"), res.RunID, d)
	}
	return fmt.Sprintf("%s  run %s  exit status %d  (%s)", failColor.Sprint("FAIL"), res.RunID, res.ExitStatus, d)
}

func formatExtractCLI(result *docker.ExtractResult, verbose bool) string {
	rr := result.RunResult
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	allPassed := result.FailedIdx < 0
	if allPassed {
		w("%s\n", okColor.Sprint("ok"))
	} else {
		w("%s\n", failColor.Sprint("FAIL"))
	}
	w("\n")

	for _, s := range result.Steps {
		switch s.Status {
		case "pass":
			w("  %-10s %s  %s\n", s.Name, okColor.Sprint("ok  "), s.RunID)
		case "fail":
			w("  %-10s %s  %s\n", s.Name, failColor.Sprint("FAIL"), s.RunID)
		case "skipped":
			w("  %-10s %s\n", s.Name, skipColor.Sprint("-"))
		}
	}
	w("\n")
	w("Run: %s\n", rr.ID)
	w("Tag: %s\n", rr.Tag)

	if !allPassed {
		failed := result.Steps[result.FailedIdx]
		w("\n%s failed with exit status %d.\n", failed.Name, failed.ExitStatus)
		if verbose && failed.Output != "" {
			w("\n%s\n", failed.Output)
		} else {
			w("Inspect with: rocker inspect %s\n", failed.RunID)
		}
	}

	return string(b)
}

func formatInspectCLI(tool string, rr *report.RunResult, lines []report.Line) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	w("Run:     %s (%s)\n", rr.ID, rr.Kind)
	if len(rr.Args) > 0 {
		w("Command: %s\n", shellquote.Join(append([]string{tool}, rr.Args...)...))
	}
	if rr.ExitStatus == 0 {
		w("Status:  %s\n", okColor.Sprint("ok"))
	} else {
		w("Status:  %s (exit status %d)\n", failColor.Sprint("FAIL"), rr.ExitStatus)
	}
	if !rr.StartedAt.IsZero() {
		w("Started: %s (%s)\n", rr.StartedAt.Local().Format(time.DateTime), rr.Duration.Round(time.Millisecond))
	}
	if rr.Tag != "" {
		w("Tag:     %s\n", rr.Tag)
	}
	if rr.ContainerID != "" {
		w("Container: %s\n", rr.ContainerID)
	}
	for _, s := range rr.Steps {
		w("  %-10s %-8s %s\n", s.Name, s.Status, s.RunID)
	}
	w("\n")

	for _, l := range lines {
		w("%5d  %s\n", l.Number, l.Text)
	}
	return string(b)
}

func writeHistory(out io.Writer, tool string, runs []*report.RunResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tKIND\tSTATUS\tSTARTED\tCOMMAND")
	for _, r := range runs {
		command := "-"
		if len(r.Args) > 0 {
			command = shellquote.Join(append([]string{tool}, r.Args...)...)
		}
		started := "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Kind, r.ExitStatus, started, command)
	}
	return tw.Flush()
}
