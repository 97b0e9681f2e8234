package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	handler(NewEvent(StageStarted, "run").WithStage("mcu_flashing"))

	output := buf.String()
	assert.Contains(t, output, "[stage.started]")
	assert.Contains(t, output, "mcu_flashing")
	assert.True(t, strings.HasSuffix(output, "\n"))
}

func TestLogHandler_SkipsProgressByDefault(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	handler(NewEvent(StageProgress, "run").WithPayload(ProgressPayload{Current: 1, Total: 2, Percent: 50}))
	assert.Empty(t, buf.String())

	handler = LogHandler(LogConfig{Writer: &buf, ShowProgress: true})
	handler(NewEvent(StageProgress, "run").WithPayload(ProgressPayload{Current: 1, Total: 2, Percent: 50}))
	assert.Contains(t, buf.String(), "1/2 (50%)")
}

func TestLogHandler_IncludesError(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	handler(NewEvent(StageFailed, "run").WithError(errors.New("port busy")))
	assert.Contains(t, buf.String(), `error="port busy"`)
}

func TestLogHandler_TimeFormat(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf, TimeFormat: "15:04:05"})

	e := NewEvent(RunStarted, "run")
	e.Time = time.Date(2024, 1, 1, 13, 14, 15, 0, time.UTC)
	handler(e)
	assert.True(t, strings.HasPrefix(buf.String(), "13:14:15 "), buf.String())
}

func TestLogHandler_DefaultWriter(t *testing.T) {
	handler := LogHandler(LogConfig{})
	handler(NewEvent(RunStarted, ""))
}

func TestStateHandler_SavesCounter(t *testing.T) {
	var saved []int
	handler := StateHandler(StateConfig{
		SaveCounter: func(c int) error {
			saved = append(saved, c)
			return nil
		},
	})

	handler(NewEvent(StageStarted, "run"))
	handler(NewEvent(CounterUpdated, "run").WithPayload(CounterPayload{Counter: 7}))

	assert.Equal(t, []int{7}, saved)
}

func TestStateHandler_ReportsError(t *testing.T) {
	var got error
	handler := StateHandler(StateConfig{
		SaveCounter: func(int) error { return errors.New("disk full") },
		OnError:     func(err error) { got = err },
	})

	handler(NewEvent(CounterUpdated, "run").WithPayload(CounterPayload{Counter: 1}))
	require.Error(t, got)
	assert.Contains(t, got.Error(), "disk full")
}

func TestStateHandler_IgnoresMalformedPayload(t *testing.T) {
	called := false
	handler := StateHandler(StateConfig{
		SaveCounter: func(int) error { called = true; return nil },
	})

	handler(NewEvent(CounterUpdated, "run").WithPayload("not a counter"))
	assert.False(t, called)
}

func TestJSONEmitter_WritesLines(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONEmitter(&buf)

	require.NoError(t, emitter.Emit(NewEvent(StageFailed, "r1").
		WithStage("module_flashing").
		WithPayload(FailurePayload{Reason: "tool_error", Code: 5})))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "stage.failed", decoded["type"])
	assert.Equal(t, "r1", decoded["run_id"])
	assert.Equal(t, "module_flashing", decoded["stage"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "tool_error", payload["reason"])
	assert.Equal(t, float64(5), payload["code"])
}

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus(4)

	var mu sync.Mutex
	var got []EventType
	bus.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	})

	bus.Emit(NewEvent(RunStarted, "r"))
	bus.Emit(NewEvent(StageStarted, "r"))
	bus.Emit(NewEvent(StageFailed, "r"))
	bus.Emit(NewEvent(RunCompleted, "r"))
	require.NoError(t, bus.Close())

	assert.Equal(t, []EventType{RunStarted, StageStarted, StageFailed, RunCompleted}, got)
}

func TestBus_StampsTime(t *testing.T) {
	bus := NewBus(1)
	var stamped time.Time
	bus.Subscribe(func(e Event) { stamped = e.Time })

	bus.Emit(NewEvent(RunStarted, "r"))
	require.NoError(t, bus.Close())
	assert.False(t, stamped.IsZero())
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
}
