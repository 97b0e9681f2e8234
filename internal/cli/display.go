package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/RevCBH/flashrig/internal/history"
)

// StatusSymbol marks a run's outcome in listings
type StatusSymbol string

const (
	SymbolDone    StatusSymbol = "✓"
	SymbolRunning StatusSymbol = "●"
	SymbolFailed  StatusSymbol = "✗"
	SymbolUnknown StatusSymbol = "?"
)

// RenderProgressBar renders a progress bar of specified width
func RenderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)

	percent := int(progress * 100)
	return fmt.Sprintf("[%s] %3d%%", bar, percent)
}

// GetStatusSymbol returns the symbol for a run status
func GetStatusSymbol(status history.RunStatus) StatusSymbol {
	switch status {
	case history.RunStatusDone:
		return SymbolDone
	case history.RunStatusRunning:
		return SymbolRunning
	case history.RunStatusFailed:
		return SymbolFailed
	default:
		return SymbolUnknown
	}
}

// FormatRunLine formats one run for the history listing:
//
//	✓ 01J9... both   [██████████] 100%  2026-01-02 15:04:05
//	✗ 01J9... mcu    [█░░░░░░░░░]  13%  2026-01-02 15:04:05  mcu_flashing: invalid_cmdline_arg (36)
func FormatRunLine(run *history.Run) string {
	started := "-"
	if run.StartedAt != nil {
		started = run.StartedAt.Local().Format(time.DateTime)
	}

	line := fmt.Sprintf("%s %s %-6s %s  %s",
		GetStatusSymbol(run.Status),
		run.ID,
		run.Mode,
		RenderProgressBar(float64(run.Percent)/100, 10),
		started,
	)

	if run.Status == history.RunStatusFailed {
		line += "  " + formatFailure(run)
	}
	return line
}

func formatFailure(run *history.Run) string {
	var parts []string
	if run.FailedStage != nil {
		parts = append(parts, *run.FailedStage+":")
	}
	if run.Reason != nil {
		parts = append(parts, *run.Reason)
	}
	if run.ExitCode != nil && *run.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("(%d)", *run.ExitCode))
	}
	return strings.Join(parts, " ")
}

// FormatRunDetail formats a run and its event log for `history show`
func FormatRunDetail(run *history.Run, evs []*history.EventRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", run.ID)
	fmt.Fprintf(&b, "  Mode:      %s\n", run.Mode)
	fmt.Fprintf(&b, "  Status:    %s %s\n", GetStatusSymbol(run.Status), run.Status)
	fmt.Fprintf(&b, "  Progress:  %s\n", RenderProgressBar(float64(run.Percent)/100, 20))
	if run.MCUImage != nil {
		fmt.Fprintf(&b, "  MCU image: %s\n", *run.MCUImage)
	}
	if run.ModuleImage != nil {
		fmt.Fprintf(&b, "  Module:    %s\n", *run.ModuleImage)
	}
	if run.StartedAt != nil {
		fmt.Fprintf(&b, "  Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
	}
	if run.StartedAt != nil && run.CompletedAt != nil {
		fmt.Fprintf(&b, "  Duration:  %s\n", run.CompletedAt.Sub(*run.StartedAt).Round(time.Millisecond))
	}
	if run.Status == history.RunStatusFailed {
		fmt.Fprintf(&b, "  Failure:   %s\n", formatFailure(run))
	}
	if run.Error != nil {
		fmt.Fprintf(&b, "  Error:     %s\n", *run.Error)
	}

	if len(evs) == 0 {
		return b.String()
	}

	b.WriteString("\nEvents:\n")
	for _, e := range evs {
		b.WriteString(FormatEventLine(e))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatEventLine formats one recorded event
func FormatEventLine(e *history.EventRecord) string {
	line := fmt.Sprintf("  %3d  %-16s", e.Sequence, e.EventType)
	if e.Stage != nil {
		line += " " + *e.Stage
	}
	if e.PayloadJSON != nil {
		line += " " + *e.PayloadJSON
	}
	if e.Error != nil {
		line += fmt.Sprintf(" error=%q", *e.Error)
	}
	return line
}
