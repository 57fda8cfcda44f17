// Package runner executes the container tool as a child process. Both
// output streams are drained concurrently into one line-ordered capture
// that is echoed as it arrives, and every completed run resolves to a
// Result with a definite exit status.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultTool is the binary invoked when Runner.Tool is empty.
const DefaultTool = "docker"

// WaitDelay bounds how long output is still read after the watchdog or
// ctx killed the process group. Pipes still held open by a process that
// escaped the group are closed once it elapses.
const WaitDelay = 2 * time.Second

// echoMarker prefixes every captured line written to the echo sink.
const echoMarker = "|  "

var tracer = otel.Tracer("github.com/deixis/rocker/internal/runner")

// Runner starts one child process per Run call. A Runner holds no per-run
// state and may be shared between goroutines.
type Runner struct {
	Tool    string        // binary name (resolved via PATH) or path
	Dir     string        // working directory; empty means the current one
	Timeout time.Duration // kills the child's process group once exceeded; zero disables

	Echo   io.Writer          // live tail of every run; defaults to os.Stderr
	Logger logrus.FieldLogger // lifecycle events; defaults to the standard logger
	Clock  clockwork.Clock    // defaults to the real clock
}

// Run starts the tool with cmd's arguments and blocks until the child has
// exited and both of its output streams are drained.
//
// Cancelling ctx or exceeding Timeout kills the child together with every
// process it forked. Lines from stdout and stderr are merged in the order
// they are read. A
// nonzero exit status is reported in the Result, not as an error. The
// returned error is non-nil only when no Result could be produced; it is
// then a *LaunchError or a *StreamReadError.
func (r *Runner) Run(ctx context.Context, command Command) (*Result, error) {
	args := command.Args()
	tool := r.tool()
	runID := uuid.New().String()
	log := r.logger().WithFields(logrus.Fields{"run_id": runID, "tool": tool})

	ctx, span := tracer.Start(ctx, "runner.Run", trace.WithAttributes(
		attribute.String("rocker.run_id", runID),
		attribute.String("rocker.tool", tool),
		attribute.StringSlice("rocker.args", args),
	))
	defer span.End()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	echo := r.echo()
	fmt.Fprintf(echo, "Running command: %s\n", shellquote.Join(append([]string{tool}, args...)...))

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = r.Dir
	setNewProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = WaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, failed(span, &LaunchError{Tool: tool, Args: args, Err: err})
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return nil, failed(span, &LaunchError{Tool: tool, Args: args, Err: err})
	}

	clock := r.clock()
	start := clock.Now()
	// exec closes both pipes when Start fails.
	if err := cmd.Start(); err != nil {
		return nil, failed(span, &LaunchError{Tool: tool, Args: args, Err: err})
	}
	log.WithField("pid", cmd.Process.Pid).Debug("process started")

	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(WaitDelay)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
			log.Warn("output still open after kill, closing pipes")
			_ = stdout.Close()
			_ = stderr.Close()
		}
	}()

	kill := func() { _ = killProcessGroup(cmd) }
	output, readErr := drain(kill, stdout, stderr, echo)
	close(drained)
	if readErr != nil {
		kill()
		_ = cmd.Wait()
		log.WithError(readErr).Error("output drain failed")
		return nil, failed(span, readErr)
	}

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		log.WithError(waitErr).Warn("wait failed")
	}
	if ctx.Err() != nil {
		log.WithError(ctx.Err()).Warn("process killed by watchdog")
	}

	status := exitStatus(cmd.ProcessState)
	res := &Result{
		RunID:      runID,
		Args:       args,
		Output:     output,
		ExitStatus: status,
		StartedAt:  start,
		Duration:   clock.Now().Sub(start),
	}

	span.SetAttributes(attribute.Int("rocker.exit_status", status))
	log.WithFields(logrus.Fields{
		"exit_status": status,
		"duration":    res.Duration,
	}).Debug("process exited")

	return res, nil
}

// drain reads both streams concurrently, one goroutine each, and funnels
// complete lines through a single channel. The calling goroutine is the
// only consumer, so the buffer and the echo sink observe the same order
// and never see partial lines. kill is invoked when a read fails so the
// other reader reaches EOF.
func drain(kill func(), stdout, stderr io.Reader, echo io.Writer) (string, error) {
	lines := make(chan string)

	var g errgroup.Group
	read := func(stream string, rd io.Reader) func() error {
		return func() error {
			if err := readLines(rd, lines); err != nil {
				kill()
				return &StreamReadError{Stream: stream, Err: err}
			}
			return nil
		}
	}
	g.Go(read("stdout", stdout))
	g.Go(read("stderr", stderr))

	var readErr error
	go func() {
		readErr = g.Wait()
		close(lines)
	}()

	var out strings.Builder
	for line := range lines {
		out.WriteString("\n")
		out.WriteString(line)
		fmt.Fprintf(echo, "%s%s\n", echoMarker, line)
	}
	return out.String(), readErr
}

// readLines sends every line of rd, trailing whitespace trimmed. Lines are
// read whole regardless of length; a final line without a newline is
// still delivered. A pipe closed after a kill ends the stream like EOF.
func readLines(rd io.Reader, lines chan<- string) error {
	br := bufio.NewReader(rd)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines <- strings.TrimRightFunc(line, unicode.IsSpace)
		}
		if err == io.EOF || errors.Is(err, os.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// exitStatus resolves the status of a reaped process. Children killed by a
// signal have no exit code and resolve to FallbackExitStatus.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return FallbackExitStatus
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return FallbackExitStatus
}

func failed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (r *Runner) tool() string {
	if r.Tool != "" {
		return r.Tool
	}
	return DefaultTool
}

func (r *Runner) echo() io.Writer {
	if r.Echo != nil {
		return r.Echo
	}
	return os.Stderr
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger()
}

func (r *Runner) clock() clockwork.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return clockwork.NewRealClock()
}
