package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/flashrig/internal/events"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *captureSender) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *captureSender) all() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tea.Msg(nil), c.msgs...)
}

func feed(m *Model, msgs ...tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func TestBridge_MapsFlashEvents(t *testing.T) {
	sender := &captureSender{}
	h := NewBridge(sender).Handler()

	h(events.NewEvent(events.RunStarted, "r1").WithPayload(events.RunStartedPayload{Mode: "both", Total: 8}))
	h(events.NewEvent(events.StageStarted, "r1").WithStage("mcu_flashing"))
	h(events.NewEvent(events.StageProgress, "r1").WithStage("mcu_flashing").
		WithPayload(events.ProgressPayload{Current: 2, Total: 8, Percent: 25}))
	h(events.NewEvent(events.StageOutput, "r1").WithStage("mcu_flashing").
		WithPayload(events.OutputPayload{Stream: "stdout", Text: "Programming...\n"}))
	h(events.NewEvent(events.StageFailed, "r1").WithStage("mcu_flashing").
		WithPayload(events.FailurePayload{Reason: "tool_error", Code: 1}).
		WithError(errors.New("mcu_flashing: tool exited with code 1")))
	h(events.NewEvent(events.RunCompleted, "r1").
		WithPayload(events.RunCompletedPayload{Success: false, State: "failed", Percent: 25}))
	h(events.NewEvent(events.CounterUpdated, "r1").WithPayload(events.CounterPayload{Counter: 7}))

	assert.Equal(t, []tea.Msg{
		RunStartedMsg{RunID: "r1", Mode: "both", Total: 8},
		StageStartedMsg{Stage: "mcu_flashing"},
		ProgressMsg{Current: 2, Total: 8, Percent: 25},
		OutputMsg{Stage: "mcu_flashing", Stream: "stdout", Text: "Programming...\n"},
		StageFailedMsg{Stage: "mcu_flashing", Reason: "tool_error", Error: "mcu_flashing: tool exited with code 1"},
		RunCompletedMsg{Success: false, State: "failed", Percent: 25},
		CounterMsg{Counter: 7},
	}, sender.all())
}

func TestBridge_IgnoresMalformedPayloads(t *testing.T) {
	sender := &captureSender{}
	h := NewBridge(sender).Handler()

	h(events.NewEvent(events.StageProgress, "r1"))
	h(events.NewEvent(events.StageOutput, "r1"))
	h(events.NewEvent(events.EventType("unknown"), "r1"))

	assert.Empty(t, sender.all())
}

func TestModel_StageTransitions(t *testing.T) {
	m := NewModel()
	feed(m,
		RunStartedMsg{Mode: "both", Total: 8},
		StageStartedMsg{Stage: "mcu_flashing"},
		StageStartedMsg{Stage: "sending_handshake"},
		StageStartedMsg{Stage: "module_flashing"},
		RunCompletedMsg{Success: true, State: "done", Percent: 100},
	)

	require.Len(t, m.Stages, 3)
	for _, s := range m.Stages {
		assert.Equal(t, StageDone, s.Status, s.Name)
	}
	assert.True(t, m.Finished)
	assert.True(t, m.Success)
	assert.Equal(t, 100, m.Percent)
}

func TestModel_StageFailure(t *testing.T) {
	m := NewModel()
	feed(m,
		StageStartedMsg{Stage: "mcu_flashing"},
		StageFailedMsg{Stage: "mcu_flashing", Reason: "invalid_cmdline_arg", Error: "mcu_flashing: INVALID_CMDLINE_ARG (code 36)"},
		RunCompletedMsg{Success: false, State: "failed", Percent: 13},
	)

	require.Len(t, m.Stages, 1)
	assert.Equal(t, StageFailed, m.Stages[0].Status)
	assert.Equal(t, "invalid_cmdline_arg", m.Stages[0].Detail)

	view := m.View()
	assert.Contains(t, view, "Flash failed: mcu_flashing: INVALID_CMDLINE_ARG (code 36)")
	assert.Contains(t, view, "invalid_cmdline_arg")
}

func TestModel_OutputSplitsAndTrims(t *testing.T) {
	m := NewModel()
	m.LogLimit = 3
	feed(m,
		OutputMsg{Text: "one\r\ntwo\n"},
		LogMsg{Line: "three"},
		OutputMsg{Text: "four\n\n"},
	)

	assert.Equal(t, []string{"two", "three", "four"}, m.LogLines)
}

func TestModel_ViewShowsProgress(t *testing.T) {
	m := NewModel()
	feed(m,
		RunStartedMsg{Mode: "module", Total: 6},
		ProgressMsg{Current: 3, Total: 6, Percent: 50},
		CounterMsg{Counter: 12},
		OutputMsg{Text: "Flashing Image 1 of 4"},
	)

	view := m.View()
	assert.Contains(t, view, "Mode: module")
	assert.Contains(t, view, "Counter: 12")
	assert.Contains(t, view, "3/6  50%")
	assert.Contains(t, view, "Flashing Image 1 of 4")
	assert.Contains(t, view, "Waiting for first stage")
}

func TestModel_QuitCallsOnQuit(t *testing.T) {
	m := NewModel()
	called := false
	m.OnQuit = func() { called = true }

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.True(t, called)
	assert.True(t, m.Quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_TickStopsWhenFinished(t *testing.T) {
	m := NewModel()
	_, cmd := m.Update(TickMsg{})
	assert.NotNil(t, cmd)

	feed(m, RunCompletedMsg{Success: true, State: "done"})
	_, cmd = m.Update(TickMsg{})
	assert.Nil(t, cmd)
}

func TestLogWriter_SplitsLinesAndFlushesOnClose(t *testing.T) {
	sender := &captureSender{}
	w := NewLogWriter(sender)

	_, err := w.Write([]byte("level=info msg=first\nlevel=warn msg=sec"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ond\r\npartial"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("after close\n"))
	require.NoError(t, err)

	var lines []string
	for _, msg := range sender.all() {
		lines = append(lines, msg.(LogMsg).Line)
	}
	assert.Equal(t, []string{"level=info msg=first", "level=warn msg=second", "partial"}, lines)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:05", formatDuration(5e9))
	assert.Equal(t, "01:02:03", formatDuration(3723e9))
	assert.False(t, strings.Contains(formatDuration(0), "-"))
}
