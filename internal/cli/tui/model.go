package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StageStatus is how far a stage line has got
type StageStatus int

const (
	StageActive StageStatus = iota
	StageDone
	StageFailed
)

// StageLine tracks one pipeline stage in the TUI
type StageLine struct {
	Name   string
	Status StageStatus
	// Detail is the failure reason for failed stages
	Detail string
}

// Model is the bubbletea model for the flash progress view
type Model struct {
	// Configuration
	Styles   Styles
	LogLimit int
	// LogHeight is how many output lines are shown below the stages
	LogHeight int

	// OnQuit is called when the operator presses q or ctrl+c. The flash
	// command uses it to cancel the run.
	OnQuit func()

	// State
	RunID     string
	Mode      string
	Current   int
	Total     int
	Percent   int
	Stages    []*StageLine
	Counter   int
	StartTime time.Time
	LogLines  []string
	Width     int
	Height    int

	// Outcome
	Finished bool
	Success  bool
	Final    string
	Error    string

	// Control
	Quitting bool
	Done     bool
}

// NewModel creates a new TUI model
func NewModel() *Model {
	return &Model{
		Styles:    DefaultStyles(),
		StartTime: time.Now(),
		LogLimit:  500,
		LogHeight: 12,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg is sent every second to update the timer
type TickMsg time.Time

// tickCmd returns a command that sends TickMsg every second
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// DoneMsg signals the TUI should exit
type DoneMsg struct{}

// QuitMsg signals the user requested quit (q or Ctrl+C)
type QuitMsg struct{}

// RunStartedMsg indicates a flash run has started
type RunStartedMsg struct {
	RunID string
	Mode  string
	Total int
}

// StageStartedMsg indicates the pipeline entered a stage
type StageStartedMsg struct {
	Stage string
}

// ProgressMsg carries the run progress counter
type ProgressMsg struct {
	Current int
	Total   int
	Percent int
}

// OutputMsg is a line of tool, serial, or orchestrator output
type OutputMsg struct {
	Stage  string
	Stream string
	Text   string
}

// StageFailedMsg indicates the run failed at a stage
type StageFailedMsg struct {
	Stage  string
	Reason string
	Error  string
}

// RunCompletedMsg indicates the run reached a terminal state
type RunCompletedMsg struct {
	Success bool
	State   string
	Percent int
}

// CounterMsg carries an updated run counter
type CounterMsg struct {
	Counter int
}
