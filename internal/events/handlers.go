package events

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LogConfig configures the logging handler
type LogConfig struct {
	// Writer is where logs are written (default: os.Stderr)
	Writer io.Writer

	// ShowProgress includes stage.progress events (they are frequent)
	ShowProgress bool

	// TimeFormat prefixes each line with the event time when non-empty
	TimeFormat string
}

// StateConfig configures the state persistence handler
type StateConfig struct {
	// SaveCounter persists a new run counter value
	SaveCounter func(counter int) error

	// OnError is called when state persistence fails
	OnError func(error)
}

// LogHandler returns a handler that logs events to the configured writer
// Format: [event.type] stage details
func LogHandler(cfg LogConfig) Handler {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	return func(e Event) {
		if e.Type == StageProgress && !cfg.ShowProgress {
			return
		}

		var buf strings.Builder
		if cfg.TimeFormat != "" {
			t := e.Time
			if t.IsZero() {
				t = time.Now()
			}
			buf.WriteString(t.Format(cfg.TimeFormat))
			buf.WriteString(" ")
		}
		buf.WriteString(e.String())
		if e.Error != "" {
			fmt.Fprintf(&buf, " error=%q", e.Error)
		}
		buf.WriteString("\n")

		fmt.Fprint(cfg.Writer, buf.String())
	}
}

// StateHandler returns a handler that persists run counter updates
func StateHandler(cfg StateConfig) Handler {
	return func(e Event) {
		if e.Type != CounterUpdated || cfg.SaveCounter == nil {
			return
		}
		p, ok := e.Payload.(CounterPayload)
		if !ok {
			return
		}
		if err := cfg.SaveCounter(p.Counter); err != nil {
			if cfg.OnError != nil {
				cfg.OnError(err)
			}
		}
	}
}
