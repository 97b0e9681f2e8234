package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains all lipgloss styles for the TUI
type Styles struct {
	// Header styling
	Title   lipgloss.Style
	Timer   lipgloss.Style
	Mode    lipgloss.Style
	Counter lipgloss.Style

	// Stage list
	StageActive lipgloss.Style
	StageDone   lipgloss.Style
	StageFailed lipgloss.Style
	StageName   lipgloss.Style
	StageDetail lipgloss.Style

	// Progress bar colors
	ProgressFilled lipgloss.Style
	ProgressEmpty  lipgloss.Style

	// Footer styling
	Footer    lipgloss.Style
	FooterKey lipgloss.Style

	// Run outcome
	StatusDone   lipgloss.Style
	StatusFailed lipgloss.Style

	// Log area styling
	LogTitle lipgloss.Style
	LogLine  lipgloss.Style
}

// DefaultStyles returns the default TUI styles
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Timer:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Mode:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Counter: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		StageActive: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		StageDone:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StageFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StageName:   lipgloss.NewStyle().Bold(true),
		StageDetail: lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true),

		ProgressFilled: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		ProgressEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1),
		FooterKey: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		StatusDone:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		LogTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Bold(true),
		LogLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Icons used in the TUI
const (
	IconActive   = "●"
	IconComplete = "✓"
	IconFailed   = "✗"
)
