// Package monitor implements the live run dashboard CLI, re-themed from the
// teacher's tui package (download/unpack/activate phases) to this domain's
// run/source/device status, reusing its bubbletea/bubbles/lipgloss stack.
package monitor

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorSuccess = lipgloss.Color("#28A745")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#DC3545")
	colorMuted   = lipgloss.Color("#6C757D")
)

const (
	symbolSuccess    = "✓"
	symbolError      = "✗"
	symbolInProgress = "⟳"
	symbolPending    = "○"
)

// styles holds the lipgloss styles the dashboard renders with, matching the
// teacher's DefaultStyles shape.
type styles struct {
	title       lipgloss.Style
	sectionHead lipgloss.Style
	success     lipgloss.Style
	warning     lipgloss.Style
	errorS      lipgloss.Style
	muted       lipgloss.Style
	tableHeader lipgloss.Style
	tableCell   lipgloss.Style
	help        lipgloss.Style
}

func defaultStyles() *styles {
	return &styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1),
		sectionHead: lipgloss.NewStyle().Bold(true).Underline(true),
		success:     lipgloss.NewStyle().Foreground(colorSuccess),
		warning:     lipgloss.NewStyle().Foreground(colorWarning),
		errorS:      lipgloss.NewStyle().Foreground(colorError),
		muted:       lipgloss.NewStyle().Foreground(colorMuted),
		tableHeader: lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		tableCell:   lipgloss.NewStyle(),
		help:        lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func stateSymbol(s *styles, state string) string {
	switch state {
	case "running":
		return s.warning.Render(symbolInProgress)
	case "completed":
		return s.success.Render(symbolSuccess)
	case "failed":
		return s.errorS.Render(symbolError)
	default:
		return s.muted.Render(symbolPending)
	}
}
