package serialport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Port is the subset of serial.Port the handshake needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens a port by name at the given baud rate.
type Opener func(name string, baud int) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(name string, baud int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ErrNotifyTimeout is returned when the notify write does not finish in time.
var ErrNotifyTimeout = errors.New("serial write timed out")

// PortUnavailableError indicates the port could not be opened.
type PortUnavailableError struct {
	Port string
	Err  error
}

func (e *PortUnavailableError) Error() string {
	var portErr *serial.PortError
	if errors.As(e.Err, &portErr) && portErr.Code() == serial.PortBusy {
		return fmt.Sprintf("serial port %s is already in use", e.Port)
	}
	return fmt.Sprintf("serial port %s unavailable: %v", e.Port, e.Err)
}

func (e *PortUnavailableError) Unwrap() error {
	return e.Err
}

// Request describes one handshake attempt.
type Request struct {
	Port          string
	Baud          int
	Command       []byte
	SuccessMarker string
	Timeout       time.Duration

	// OnLine is called with each complete line as it arrives (optional)
	OnLine func(line string)
}

// Outcome is the result of a handshake that ran to a match or a timeout.
type Outcome struct {
	Matched bool
	Lines   []string
}

// Client performs serial handshakes. The zero value opens real ports.
type Client struct {
	Open         Opener
	PollInterval time.Duration
}

// NewClient creates a client using opener (nil means OpenSerial).
func NewClient(opener Opener) *Client {
	return &Client{Open: opener, PollInterval: DefaultPollInterval}
}

func (c *Client) open(name string, baud int) (Port, error) {
	opener := c.Open
	if opener == nil {
		opener = OpenSerial
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	p, err := opener(name, baud)
	if err != nil {
		return nil, &PortUnavailableError{Port: name, Err: err}
	}
	return p, nil
}

// Handshake opens the port, writes the command once, and reads lines until
// one contains the success marker or the timeout elapses. A timeout is not an
// error: it returns Matched=false. The port is closed on every path.
func (c *Client) Handshake(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome

	port, err := c.open(req.Port, req.Baud)
	if err != nil {
		return out, err
	}
	defer port.Close()

	if _, err := port.Write(req.Command); err != nil {
		return out, fmt.Errorf("write command to %s: %w", req.Port, err)
	}
	logrus.Debugf("sent %q to %s", req.Command, req.Port)

	poll := c.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if err := port.SetReadTimeout(poll); err != nil {
		return out, fmt.Errorf("set read timeout on %s: %w", req.Port, err)
	}

	deadline := time.Now().Add(req.Timeout)
	buf := make([]byte, 256)
	var pending []byte

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		n, err := port.Read(buf)
		if err != nil {
			return out, fmt.Errorf("read from %s: %w", req.Port, err)
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimSpace(string(pending[:i]))
			pending = pending[i+1:]

			out.Lines = append(out.Lines, line)
			if req.OnLine != nil {
				req.OnLine(line)
			}
			if strings.Contains(line, req.SuccessMarker) {
				out.Matched = true
				return out, nil
			}
		}
	}

	return out, nil
}

// Notify opens the port, writes command once, and closes the port. It does
// not wait for a reply.
func (c *Client) Notify(ctx context.Context, name string, baud int, command []byte, timeout time.Duration) error {
	port, err := c.open(name, baud)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := port.Write(command)
		done <- err
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-done:
		closeErr := port.Close()
		if err != nil {
			return fmt.Errorf("write command to %s: %w", name, err)
		}
		return closeErr
	case <-timer:
		// Closing unblocks the pending write.
		port.Close()
		return fmt.Errorf("%s: %w", name, ErrNotifyTimeout)
	case <-ctx.Done():
		port.Close()
		return ctx.Err()
	}
}

// VerifyResult is delivered by Verify when the handshake task finishes.
type VerifyResult struct {
	Outcome Outcome
	Err     error
}

// Verify runs Handshake on its own goroutine. Cancelling ctx stops the task at
// its next poll; the result channel always receives exactly one value.
func (c *Client) Verify(ctx context.Context, req Request) <-chan VerifyResult {
	results := make(chan VerifyResult, 1)
	go func() {
		out, err := c.Handshake(ctx, req)
		results <- VerifyResult{Outcome: out, Err: err}
	}()
	return results
}
