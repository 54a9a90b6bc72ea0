package terminal

import (
	"stock-dashboard/src/dashboard"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header     lipgloss.Style
	footer     lipgloss.Style
	label      lipgloss.Style
	value      lipgloss.Style
	dim        lipgloss.Style
	gain       lipgloss.Style
	loss       lipgloss.Style
	errorText  lipgloss.Style
	infoText   lipgloss.Style
	suggestion lipgloss.Style
	active     lipgloss.Style
	symbol     lipgloss.Style
	star       lipgloss.Style
}

// -----------------------------------------------------------------------------

func newStyles(theme dashboard.Theme) styles {
	fg, bg, muted, accent := lipgloss.Color("15"), lipgloss.Color("4"), lipgloss.Color("245"), lipgloss.Color("75")
	if theme == dashboard.ThemeLight {
		fg, bg, muted, accent = lipgloss.Color("0"), lipgloss.Color("153"), lipgloss.Color("240"), lipgloss.Color("26")
	}
	return styles{
		header:     lipgloss.NewStyle().Bold(true).Foreground(fg).Background(bg),
		footer:     lipgloss.NewStyle().Foreground(fg).Background(lipgloss.Color("8")),
		label:      lipgloss.NewStyle().Foreground(muted),
		value:      lipgloss.NewStyle().Bold(true),
		dim:        lipgloss.NewStyle().Foreground(muted),
		gain:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		loss:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		errorText:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		infoText:   lipgloss.NewStyle().Foreground(accent),
		suggestion: lipgloss.NewStyle().PaddingLeft(2),
		active:     lipgloss.NewStyle().PaddingLeft(2).Bold(true).Foreground(fg).Background(bg),
		symbol:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		star:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}
}
