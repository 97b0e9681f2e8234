package tool

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the outcome of a synchronous tool run.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// Runner runs a tool to completion and returns its result.
type Runner interface {
	Run(ctx context.Context, path string, args []string) (Result, error)
}

// ProcessRunner runs tools with exec and blocks until they exit.
type ProcessRunner struct {
	Dir string
}

// Run executes path with args. A nonzero exit status is reported in
// Result.Code, not as an error; errors are reserved for launch failures.
func (r ProcessRunner) Run(ctx context.Context, path string, args []string) (Result, error) {
	resolved, err := resolvePath(r.Dir, path)
	if err != nil {
		return Result{Code: -1}, &LaunchError{Path: path, Err: err}
	}

	cmd := exec.CommandContext(ctx, resolved, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.Code = exitErr.ExitCode()
		if res.Code < 0 {
			return res, err
		}
		return res, nil
	}
	return res, &LaunchError{Path: path, Err: err}
}

// SyncInvoker adapts a blocking Runner to the Invoker shape. The run happens
// on its own goroutine; its output is delivered as at most two Output events
// once the tool has exited.
type SyncInvoker struct {
	Runner Runner

	// Dir is searched for bare tool names before PATH
	Dir string
}

// Start begins a synchronous run in the background.
func (s SyncInvoker) Start(ctx context.Context, path string, args []string) (*Invocation, error) {
	if _, err := resolvePath(s.Dir, path); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	events := make(chan Event, 3)
	go func() {
		defer close(events)

		res, err := s.Runner.Run(ctx, path, args)
		if res.Stdout != "" {
			events <- Event{Kind: Output, Stream: Stdout, Text: res.Stdout}
		}
		if res.Stderr != "" {
			events <- Event{Kind: Output, Stream: Stderr, Text: res.Stderr}
		}
		if err != nil {
			events <- Event{Kind: Exited, Code: -1, Err: err}
			return
		}
		events <- Event{Kind: Exited, Code: res.Code}
	}()

	return NewInvocation(path, args, events, nil), nil
}
