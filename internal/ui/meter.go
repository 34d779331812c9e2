package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/strrl/aurora-cli/pkg/models"
)

// ProgressBar renders a filled/empty bar for percent in [0, 100]
func ProgressBar(percent float64, width int, fill lipgloss.Color) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(float64(width) * percent / 100)
	empty := width - filled

	barStyle := lipgloss.NewStyle().Foreground(fill)
	emptyStyle := lipgloss.NewStyle().Foreground(ColorFaint)
	return barStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", empty))
}

// MeterValue renders "used / limit", or "used / Unlimited"
func MeterValue(m models.Meter) string {
	if m.Limit == nil {
		return fmt.Sprintf("%d / Unlimited", m.Used)
	}
	return fmt.Sprintf("%d / %d", m.Used, *m.Limit)
}

// RenderMeter renders one labelled usage meter line
func RenderMeter(m models.Meter, barWidth int) string {
	level := m.Level()
	value := lipgloss.NewStyle().Foreground(LevelColor(level)).Render(MeterValue(m))
	return fmt.Sprintf("%-11s %s  %s", m.Label, ProgressBar(m.Percent(), barWidth, LevelColor(level)), value)
}

// RenderUsage renders the three plan meters and any warnings
func RenderUsage(u models.UsageMetrics, barWidth int) string {
	var sb strings.Builder
	if u.Period != "" {
		sb.WriteString(MutedStyle.Render("Period "+u.Period) + "\n")
	}
	for _, m := range u.Meters() {
		sb.WriteString(RenderMeter(m, barWidth) + "\n")
	}
	for _, w := range u.Warnings {
		sb.WriteString(WarningStyle.Render("⚠ "+w) + "\n")
	}
	if len(u.Warnings) > 0 {
		sb.WriteString(MutedStyle.Render("Upgrade plan to raise your limits: aurora billing checkout pro") + "\n")
	}
	return sb.String()
}
