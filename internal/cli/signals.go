package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// SignalHandler turns SIGINT/SIGTERM into a cancelled flash run. The first
// signal cancels the run context; the orchestrator stops after the current
// stage because a tool that is already programming a part is always awaited.
// A second signal calls the force callback so an operator can abandon a hung
// tool.
type SignalHandler struct {
	signals    chan os.Signal
	shutdown   chan struct{}
	stopCh     chan struct{} // closed by Stop to signal goroutine to exit
	done       chan struct{} // closed when goroutine exits
	stopOnce   sync.Once
	cancel     context.CancelFunc
	onShutdown []func()
	onForce    func()
	mu         sync.Mutex
}

// NewSignalHandler creates a signal handler with the given context cancel
func NewSignalHandler(cancel context.CancelFunc) *SignalHandler {
	return &SignalHandler{
		signals:    make(chan os.Signal, 2),
		shutdown:   make(chan struct{}),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		cancel:     cancel,
		onShutdown: make([]func(), 0),
		onForce:    func() { os.Exit(130) },
	}
}

// Start begins listening for signals
func (h *SignalHandler) Start() {
	h.StartWithNotify(true)
}

// StartWithNotify begins listening for signals, optionally registering with OS signal handling.
// Pass false for notify in unit tests to avoid global signal state interactions.
func (h *SignalHandler) StartWithNotify(notify bool) {
	if notify {
		signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)
	}

	started := make(chan struct{})
	go func() {
		defer close(h.done)
		close(started)

		select {
		case sig := <-h.signals:
			h.first(sig)
		case <-h.stopCh:
			return
		}

		select {
		case sig := <-h.signals:
			logrus.WithField("signal", sig.String()).Error("second signal, abandoning flash run")
			h.mu.Lock()
			force := h.onForce
			h.mu.Unlock()
			if force != nil {
				force()
			}
		case <-h.stopCh:
		}
	}()

	<-started
}

func (h *SignalHandler) first(sig os.Signal) {
	logrus.WithField("signal", sig.String()).Warn("received signal, stopping after the current stage")

	if h.cancel != nil {
		h.cancel()
	}

	h.mu.Lock()
	callbacks := make([]func(), len(h.onShutdown))
	copy(callbacks, h.onShutdown)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}

	close(h.shutdown)
}

// OnShutdown registers a callback to run on the first signal
func (h *SignalHandler) OnShutdown(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onShutdown = append(h.onShutdown, fn)
}

// OnForce replaces what happens on a second signal (default: exit 130)
func (h *SignalHandler) OnForce(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onForce = fn
}

// Wait blocks until shutdown is triggered
func (h *SignalHandler) Wait() {
	<-h.shutdown
}

// Stop stops the signal handler and cleans up
func (h *SignalHandler) Stop() {
	signal.Stop(h.signals)
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	select {
	case <-h.done:
	case <-time.After(100 * time.Millisecond):
	}
}
