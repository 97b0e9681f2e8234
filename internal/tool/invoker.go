package tool

import (
	"context"
	"fmt"
	"sync"
)

// Stream identifies which output pipe a chunk came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// EventKind distinguishes output chunks from the terminal exit event.
type EventKind int

const (
	// Output carries a chunk of stdout or stderr text.
	Output EventKind = iota
	// Exited is the last event of an invocation.
	Exited
)

// Event is delivered on an Invocation's event channel.
type Event struct {
	Kind   EventKind
	Stream Stream
	Text   string

	// Code is the exit code (Exited only). -1 when the process did not exit normally.
	Code int

	// Err is set on Exited when waiting on the process failed for a reason
	// other than a nonzero exit status.
	Err error
}

// LaunchError indicates the executable could not be found or spawned.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Invoker starts external tools. Implementations deliver zero or more Output
// events followed by exactly one Exited event, then close the channel.
type Invoker interface {
	Start(ctx context.Context, path string, args []string) (*Invocation, error)
}

// Invocation is the handle to one running tool.
type Invocation struct {
	Path string
	Args []string

	events   <-chan Event
	stop     func() error
	stopOnce sync.Once
	stopErr  error
}

// NewInvocation wraps an event channel and an optional stop function.
// Used by Invoker implementations, including test doubles.
func NewInvocation(path string, args []string, events <-chan Event, stop func() error) *Invocation {
	return &Invocation{
		Path:   path,
		Args:   args,
		events: events,
		stop:   stop,
	}
}

// Events returns the channel of output and exit events.
func (inv *Invocation) Events() <-chan Event {
	return inv.events
}

// Stop requests cancellation. The tool may still run to completion; callers
// should keep draining Events until Exited.
func (inv *Invocation) Stop() error {
	inv.stopOnce.Do(func() {
		if inv.stop != nil {
			inv.stopErr = inv.stop()
		}
	})
	return inv.stopErr
}

// Wait drains the invocation and returns the exit event along with the
// collected output.
func (inv *Invocation) Wait() (Result, error) {
	var res Result
	var stdout, stderr []byte
	for ev := range inv.events {
		switch ev.Kind {
		case Output:
			if ev.Stream == Stderr {
				stderr = append(stderr, ev.Text...)
			} else {
				stdout = append(stdout, ev.Text...)
			}
		case Exited:
			res.Code = ev.Code
			res.Stdout = string(stdout)
			res.Stderr = string(stderr)
			return res, ev.Err
		}
	}
	return res, fmt.Errorf("%s: event stream closed without exit", inv.Path)
}
