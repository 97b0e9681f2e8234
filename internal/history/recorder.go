package history

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/RevCBH/flashrig/internal/events"
)

// Recorder writes flash events into the history database. Subscribe its
// Handle method to the bus.
type Recorder struct {
	db *DB

	// MCUImage and ModuleImage are stored on the run row when it is created
	MCUImage    string
	ModuleImage string

	// OnError is called when a write fails (defaults to a logrus warning)
	OnError func(error)

	mu       sync.Mutex
	failures map[string]events.Event
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db, failures: make(map[string]events.Event)}
}

// Handle records e. Write errors are reported through OnError and never
// interrupt the run.
func (r *Recorder) Handle(e events.Event) {
	if e.RunID == "" {
		return
	}
	if err := r.handle(e); err != nil {
		if r.OnError != nil {
			r.OnError(err)
			return
		}
		logrus.WithError(err).WithField("run", e.RunID).Warn("history write failed")
	}
}

func (r *Recorder) handle(e events.Event) error {
	if e.Type == events.RunStarted {
		run := &Run{
			ID:          e.RunID,
			Status:      RunStatusRunning,
			MCUImage:    nullable(r.MCUImage),
			ModuleImage: nullable(r.ModuleImage),
		}
		if p, ok := e.Payload.(events.RunStartedPayload); ok {
			run.Mode = p.Mode
		}
		if !e.Time.IsZero() {
			started := e.Time.UTC()
			run.StartedAt = &started
		}
		if err := r.db.CreateRun(run); err != nil {
			return err
		}
	}

	if err := r.db.AppendEvent(e.RunID, string(e.Type), e.Stage, e.Payload, e.Error); err != nil {
		return fmt.Errorf("append %s: %w", e.Type, err)
	}

	switch e.Type {
	case events.StageFailed:
		r.mu.Lock()
		r.failures[e.RunID] = e
		r.mu.Unlock()

	case events.RunCompleted:
		p, _ := e.Payload.(events.RunCompletedPayload)
		c := Completion{Status: RunStatusDone, Percent: p.Percent}
		if !p.Success {
			c.Status = RunStatusFailed
		}

		r.mu.Lock()
		failed, ok := r.failures[e.RunID]
		delete(r.failures, e.RunID)
		r.mu.Unlock()

		if ok {
			c.FailedStage = failed.Stage
			c.Error = failed.Error
			if fp, ok := failed.Payload.(events.FailurePayload); ok {
				c.Reason = fp.Reason
				c.ExitCode = fp.Code
			}
		}
		return r.db.CompleteRun(e.RunID, c)
	}
	return nil
}
