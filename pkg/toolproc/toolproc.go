// Package toolproc runs external tool processes with cancellation and a
// timeout, streaming output as structured events. Tool lifecycle hooks
// (post-install commands, health checks) run through here so callers
// never block on a wedged child.
package toolproc

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/logging"
)

// EventKind classifies a process event.
type EventKind string

const (
	// EventStdout carries one line of standard output.
	EventStdout EventKind = "stdout"
	// EventStderr carries one line of standard error.
	EventStderr EventKind = "stderr"
	// EventExit is the final event of a process that ran to completion;
	// Code holds the exit status.
	EventExit EventKind = "exit"
	// EventError is the final event when the process could not run or
	// wait failed for a non-exit reason.
	EventError EventKind = "error"
	// EventTimeout is the final event when the spec's timeout elapsed.
	EventTimeout EventKind = "timeout"
	// EventCancelled is the final event when the caller's context was
	// cancelled.
	EventCancelled EventKind = "cancelled"
)

// Event is one observation of a running process. Exactly one terminal
// event (exit, error, timeout or cancelled) ends every stream.
type Event struct {
	Kind    EventKind
	Payload string
	Code    int
	Err     error
}

// Spec describes the process to run.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	// Env, when non-nil, replaces the inherited environment.
	Env []string
	// Timeout bounds the run; zero means no bound beyond ctx.
	Timeout time.Duration
}

// Runner executes tool processes.
type Runner struct{}

// Run starts the process and returns a channel of events. The channel
// is closed after the terminal event. Run itself only fails when the
// process cannot be started.
func (r *Runner) Run(ctx context.Context, spec Spec) (<-chan Event, error) {
	logger := logging.GetLogger("toolproc")

	cancel := func() {}
	if spec.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to start %s", spec.Command)
	}

	logger.Debug().
		Str("command", spec.Command).
		Strs("args", spec.Args).
		Dur("timeout", spec.Timeout).
		Msg("Started tool process")

	events := make(chan Event, 16)
	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, stdout, EventStdout, events)
	go streamLines(&wg, stderr, EventStderr, events)

	go func() {
		defer cancel()
		defer close(events)

		wg.Wait()
		err := cmd.Wait()

		switch {
		case ctx.Err() == context.DeadlineExceeded:
			events <- Event{Kind: EventTimeout, Err: ctx.Err()}
		case ctx.Err() == context.Canceled:
			events <- Event{Kind: EventCancelled, Err: ctx.Err()}
		case err == nil:
			events <- Event{Kind: EventExit, Code: 0}
		default:
			if exitErr, ok := err.(*exec.ExitError); ok {
				events <- Event{Kind: EventExit, Code: exitErr.ExitCode()}
			} else {
				events <- Event{Kind: EventError, Err: err}
			}
		}
	}()

	return events, nil
}

func streamLines(wg *sync.WaitGroup, r io.Reader, kind EventKind, events chan<- Event) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		events <- Event{Kind: kind, Payload: scanner.Text()}
	}
}

// Collect drains an event stream, returning output lines and the
// terminal event. Convenience for callers that do not need streaming.
func Collect(events <-chan Event) (stdout, stderr []string, terminal Event) {
	for ev := range events {
		switch ev.Kind {
		case EventStdout:
			stdout = append(stdout, ev.Payload)
		case EventStderr:
			stderr = append(stderr, ev.Payload)
		default:
			terminal = ev
		}
	}
	return stdout, stderr, terminal
}
