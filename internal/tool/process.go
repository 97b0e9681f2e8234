package tool

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ProcessInvoker starts tools as OS processes and streams their output line
// by line. The process is not tied to ctx: once launched it runs until it
// exits or Stop is called.
type ProcessInvoker struct {
	// Dir is the working directory for launched tools (default: current)
	Dir string
}

// Start launches path with args.
func (p ProcessInvoker) Start(ctx context.Context, path string, args []string) (*Invocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved, err := resolvePath(p.Dir, path)
	if err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	cmd := exec.Command(resolved, args...)
	cmd.Dir = p.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	events := make(chan Event, 64)

	var readers sync.WaitGroup
	readers.Add(2)
	go pump(&readers, stdout, Stdout, events)
	go pump(&readers, stderr, Stderr, events)

	go func() {
		// Pipes must be fully read before Wait closes them.
		readers.Wait()
		code, waitErr := exitCode(cmd.Wait())
		events <- Event{Kind: Exited, Code: code, Err: waitErr}
		close(events)
	}()

	stop := func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}

	return NewInvocation(path, args, events, stop), nil
}

// maxLine bounds one Output event. A longer line is forwarded in chunks of
// this size; only the last chunk carries the newline.
const maxLine = 64 * 1024

// pump forwards each line read from r as an Output event. A final line
// without a newline is terminated with one.
func pump(wg *sync.WaitGroup, r io.Reader, stream Stream, events chan<- Event) {
	defer wg.Done()

	br := bufio.NewReaderSize(r, maxLine)
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			text := string(chunk)
			if err == io.EOF && !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			events <- Event{Kind: Output, Stream: stream, Text: text}
		}
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
			// Drain anything left after a read error so the child never blocks on a full pipe.
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
}

// exitCode maps the result of cmd.Wait to an exit code.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return -1, err
	}
	return -1, err
}
