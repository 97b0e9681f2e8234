package tui

import (
	"fmt"
	"strings"
	"time"
)

// View implements tea.Model
func (m *Model) View() string {
	if m.Done || m.Quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")

	b.WriteString(m.renderStages())

	if m.Finished {
		b.WriteString(m.renderOutcome())
		b.WriteString("\n")
	}

	b.WriteString(m.renderLog())

	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title line with timer and mode
func (m *Model) renderHeader() string {
	elapsed := time.Since(m.StartTime).Round(time.Second)
	timer := fmt.Sprintf("[%s]", formatDuration(elapsed))
	mode := m.Mode
	if mode == "" {
		mode = "-"
	}

	return fmt.Sprintf("%s  %s  %s  %s",
		m.Styles.Title.Render("flashrig"),
		m.Styles.Timer.Render(timer),
		m.Styles.Mode.Render("Mode: "+mode),
		m.Styles.Counter.Render(fmt.Sprintf("Counter: %d", m.Counter)),
	)
}

// renderProgress renders the overall progress bar: [████░░░░] 3/8 38%
func (m *Model) renderProgress() string {
	return fmt.Sprintf("  %s %d/%d %3d%%",
		m.renderProgressBar(m.Current, m.Total, 30),
		m.Current, m.Total, m.Percent)
}

// renderProgressBar creates a progress bar of the given width
func (m *Model) renderProgressBar(completed, total, width int) string {
	if total == 0 {
		total = 1
	}

	filled := min((completed*width)/total, width)

	filledStr := strings.Repeat("█", filled)
	emptyStr := strings.Repeat("░", width-filled)

	return "[" +
		m.Styles.ProgressFilled.Render(filledStr) +
		m.Styles.ProgressEmpty.Render(emptyStr) +
		"]"
}

func (m *Model) renderStages() string {
	if len(m.Stages) == 0 {
		return "  Waiting for first stage\n\n"
	}

	var b strings.Builder
	for _, s := range m.Stages {
		var icon, name string
		switch s.Status {
		case StageDone:
			icon = m.Styles.StageDone.Render(IconComplete)
			name = s.Name
		case StageFailed:
			icon = m.Styles.StageFailed.Render(IconFailed)
			name = s.Name
			if s.Detail != "" {
				name += " " + m.Styles.StageDetail.Render("("+s.Detail+")")
			}
		default:
			icon = m.Styles.StageActive.Render(IconActive)
			name = m.Styles.StageName.Render(s.Name)
		}
		fmt.Fprintf(&b, "  %s %s\n", icon, name)
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderOutcome() string {
	if m.Success {
		return m.Styles.StatusDone.Render("  Flash complete")
	}
	text := "  Flash failed"
	if m.Error != "" {
		text += ": " + m.Error
	}
	return m.Styles.StatusFailed.Render(text)
}

// renderLog renders the tail of the output log
func (m *Model) renderLog() string {
	if len(m.LogLines) == 0 || m.LogHeight <= 0 {
		return ""
	}

	lines := m.LogLines
	if len(lines) > m.LogHeight {
		lines = lines[len(lines)-m.LogHeight:]
	}

	var b strings.Builder
	b.WriteString(m.Styles.LogTitle.Render("  Output"))
	b.WriteString("\n")
	for _, line := range lines {
		if m.Width > 4 && len(line) > m.Width-4 {
			line = line[:m.Width-4]
		}
		b.WriteString("  ")
		b.WriteString(m.Styles.LogLine.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFooter renders the help text
func (m *Model) renderFooter() string {
	key := m.Styles.FooterKey.Render("q")
	return m.Styles.Footer.Render(fmt.Sprintf("  Press %s to quit", key))
}

// formatDuration formats a duration as HH:MM:SS
func formatDuration(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
