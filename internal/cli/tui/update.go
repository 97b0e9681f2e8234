package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quitting = true
			if m.OnQuit != nil {
				m.OnQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case TickMsg:
		if m.Finished {
			return m, nil
		}
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		return m, tea.Quit

	case QuitMsg:
		m.Quitting = true
		return m, tea.Quit

	case RunStartedMsg:
		m.RunID = msg.RunID
		m.Mode = msg.Mode
		m.Total = msg.Total

	case StageStartedMsg:
		if last := m.lastStage(); last != nil && last.Status == StageActive {
			last.Status = StageDone
		}
		m.Stages = append(m.Stages, &StageLine{Name: msg.Stage, Status: StageActive})

	case ProgressMsg:
		m.Current = msg.Current
		m.Total = msg.Total
		m.Percent = msg.Percent

	case OutputMsg:
		for _, line := range strings.Split(strings.TrimRight(msg.Text, "\r\n"), "\n") {
			m.appendLog(strings.TrimRight(line, "\r"))
		}

	case LogMsg:
		m.appendLog(msg.Line)

	case StageFailedMsg:
		for _, s := range m.Stages {
			if s.Name == msg.Stage {
				s.Status = StageFailed
				s.Detail = msg.Reason
			}
		}
		m.Error = msg.Error

	case RunCompletedMsg:
		m.Finished = true
		m.Success = msg.Success
		m.Final = msg.State
		m.Percent = msg.Percent
		if last := m.lastStage(); msg.Success && last != nil && last.Status == StageActive {
			last.Status = StageDone
		}

	case CounterMsg:
		m.Counter = msg.Counter
	}

	return m, nil
}

func (m *Model) lastStage() *StageLine {
	if len(m.Stages) == 0 {
		return nil
	}
	return m.Stages[len(m.Stages)-1]
}

func (m *Model) appendLog(line string) {
	if line == "" {
		return
	}
	m.LogLines = append(m.LogLines, line)
	if m.LogLimit > 0 && len(m.LogLines) > m.LogLimit {
		m.LogLines = m.LogLines[len(m.LogLines)-m.LogLimit:]
	}
}
