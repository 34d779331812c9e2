// Package ui holds terminal styling shared by the command line and the TUI.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/strrl/aurora-cli/pkg/models"
)

var (
	ColorBrand   = lipgloss.Color("62")
	ColorAccent  = lipgloss.Color("212")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("243")
	ColorFaint   = lipgloss.Color("238")
	ColorText    = lipgloss.Color("252")

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBrand).
			Underline(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle  = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	BadgeStyle   = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
)

// LevelColor maps a meter level to its color: green, amber, rose
func LevelColor(l models.MeterLevel) lipgloss.Color {
	switch l {
	case models.LevelCritical:
		return ColorDanger
	case models.LevelWarning:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// IsTerminal reports whether w is a character device
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}
