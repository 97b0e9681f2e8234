package events

import (
	"fmt"
	"strings"
	"time"
)

// Event represents a single occurrence in a flash run
type Event struct {
	// Time is when the event occurred (set by bus on emit)
	Time time.Time `json:"time"`

	// Type identifies what happened
	Type EventType `json:"type"`

	// RunID identifies the flash run this event belongs to
	RunID string `json:"run_id,omitempty"`

	// Stage is the pipeline stage this event relates to (empty for run events)
	Stage string `json:"stage,omitempty"`

	// Payload contains event-specific data (one of the *Payload types below)
	Payload any `json:"payload,omitempty"`

	// Error contains error message if this is a failure event
	Error string `json:"error,omitempty"`
}

// EventType is a string constant identifying the event category
type EventType string

// Run lifecycle events
const (
	RunStarted   EventType = "run.started"
	RunCompleted EventType = "run.completed"
)

// Stage lifecycle events
const (
	StageStarted  EventType = "stage.started"
	StageProgress EventType = "stage.progress"
	StageOutput   EventType = "stage.output"
	StageFailed   EventType = "stage.failed"
)

// CounterUpdated asks the owner of persisted state to store a new run counter.
const CounterUpdated EventType = "counter.updated"

// RunStartedPayload accompanies RunStarted
type RunStartedPayload struct {
	Mode  string `json:"mode"`
	Total int    `json:"total"`
}

// ProgressPayload accompanies StageProgress
type ProgressPayload struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// OutputPayload accompanies StageOutput
type OutputPayload struct {
	// Stream is "stdout", "stderr", or "" for messages from the orchestrator itself
	Stream string `json:"stream,omitempty"`
	Text   string `json:"text"`
}

// FailurePayload accompanies StageFailed
type FailurePayload struct {
	Reason string `json:"reason"`
	// Code is the tool exit code for tool failures, 0 otherwise
	Code int `json:"code,omitempty"`
}

// RunCompletedPayload accompanies RunCompleted
type RunCompletedPayload struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
	Mode    string `json:"mode"`
	// Percent is the final progress percentage
	Percent int `json:"percent"`
}

// CounterPayload accompanies CounterUpdated
type CounterPayload struct {
	Counter int `json:"counter"`
}

// NewEvent creates an event with the given type and run ID
func NewEvent(eventType EventType, runID string) Event {
	return Event{
		Type:  eventType,
		RunID: runID,
	}
}

// WithStage returns a copy of the event with the stage set
func (e Event) WithStage(stage string) Event {
	e.Stage = stage
	return e
}

// WithPayload returns a copy of the event with the payload set
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message set
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure returns true if this is a failure event type
func (e Event) IsFailure() bool {
	if strings.HasSuffix(string(e.Type), ".failed") {
		return true
	}
	if p, ok := e.Payload.(RunCompletedPayload); ok {
		return !p.Success
	}
	return false
}

// String returns a human-readable representation of the event
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))

	if e.Stage != "" {
		parts = append(parts, e.Stage)
	}

	switch p := e.Payload.(type) {
	case ProgressPayload:
		parts = append(parts, fmt.Sprintf("%d/%d (%d%%)", p.Current, p.Total, p.Percent))
	case OutputPayload:
		parts = append(parts, strings.TrimRight(p.Text, "\r\n"))
	case FailurePayload:
		if p.Code != 0 {
			parts = append(parts, fmt.Sprintf("reason=%s code=%d", p.Reason, p.Code))
		} else {
			parts = append(parts, "reason="+p.Reason)
		}
	case RunStartedPayload:
		parts = append(parts, fmt.Sprintf("mode=%s steps=%d", p.Mode, p.Total))
	case RunCompletedPayload:
		parts = append(parts, fmt.Sprintf("success=%t state=%s", p.Success, p.State))
	case CounterPayload:
		parts = append(parts, fmt.Sprintf("counter=%d", p.Counter))
	}

	return strings.Join(parts, " ")
}
