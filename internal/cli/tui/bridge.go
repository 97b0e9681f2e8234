package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/RevCBH/flashrig/internal/events"
)

// Sender is the part of *tea.Program the bridge needs
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge connects the event bus to the bubbletea program
type Bridge struct {
	program Sender
}

// NewBridge creates a new bridge for the given program
func NewBridge(program Sender) *Bridge {
	return &Bridge{
		program: program,
	}
}

// Handler returns an event handler function for the event bus
func (b *Bridge) Handler() events.Handler {
	return func(evt events.Event) {
		msg := eventToMsg(evt)
		if msg != nil {
			b.program.Send(msg)
		}
	}
}

// eventToMsg converts an events.Event to a tea.Msg
func eventToMsg(evt events.Event) tea.Msg {
	switch evt.Type {
	case events.RunStarted:
		p, _ := evt.Payload.(events.RunStartedPayload)
		return RunStartedMsg{RunID: evt.RunID, Mode: p.Mode, Total: p.Total}

	case events.StageStarted:
		return StageStartedMsg{Stage: evt.Stage}

	case events.StageProgress:
		p, ok := evt.Payload.(events.ProgressPayload)
		if !ok {
			return nil
		}
		return ProgressMsg{Current: p.Current, Total: p.Total, Percent: p.Percent}

	case events.StageOutput:
		p, ok := evt.Payload.(events.OutputPayload)
		if !ok {
			return nil
		}
		return OutputMsg{Stage: evt.Stage, Stream: p.Stream, Text: p.Text}

	case events.StageFailed:
		p, _ := evt.Payload.(events.FailurePayload)
		return StageFailedMsg{Stage: evt.Stage, Reason: p.Reason, Error: evt.Error}

	case events.RunCompleted:
		p, _ := evt.Payload.(events.RunCompletedPayload)
		return RunCompletedMsg{Success: p.Success, State: p.State, Percent: p.Percent}

	case events.CounterUpdated:
		p, ok := evt.Payload.(events.CounterPayload)
		if !ok {
			return nil
		}
		return CounterMsg{Counter: p.Counter}

	default:
		return nil
	}
}

// SendDone sends a DoneMsg to the program
func (b *Bridge) SendDone() {
	b.program.Send(DoneMsg{})
}

// SendQuit sends a QuitMsg to the program
func (b *Bridge) SendQuit() {
	b.program.Send(QuitMsg{})
}
