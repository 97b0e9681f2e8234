package testutil

import (
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by FakePort after Close.
var ErrPortClosed = errors.New("port closed")

// FakePort is a scripted serial port. Each queued chunk is returned by one
// Read; once the queue is empty Read waits for the read timeout and returns 0.
type FakePort struct {
	mu          sync.Mutex
	chunks      [][]byte
	written     []byte
	closed      bool
	readTimeout time.Duration

	// WriteErr makes Write fail
	WriteErr error
	// BlockWrites makes Write block until Close
	BlockWrites bool

	unblock chan struct{}
}

func NewFakePort(chunks ...string) *FakePort {
	p := &FakePort{unblock: make(chan struct{})}
	for _, c := range chunks {
		p.chunks = append(p.chunks, []byte(c))
	}
	return p
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if len(p.chunks) > 0 {
		n := copy(b, p.chunks[0])
		if n < len(p.chunks[0]) {
			p.chunks[0] = p.chunks[0][n:]
		} else {
			p.chunks = p.chunks[1:]
		}
		p.mu.Unlock()
		return n, nil
	}
	wait := p.readTimeout
	p.mu.Unlock()

	if wait <= 0 {
		wait = time.Millisecond
	}
	time.Sleep(wait)
	return 0, nil
}

func (p *FakePort) Write(b []byte) (int, error) {
	if p.BlockWrites {
		<-p.unblock
		return 0, ErrPortClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.unblock)
	}
	return nil
}

func (p *FakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

// Written returns everything written so far.
func (p *FakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.written)
}

// Closed reports whether Close was called.
func (p *FakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Remaining returns the number of chunks not yet read.
func (p *FakePort) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}
