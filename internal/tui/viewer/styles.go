package viewer

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/privacycheck/privacycheck/internal/severity"
)

// Color palette matching the HTML export.
var (
	colorNone     = lipgloss.Color("#22C55E")
	colorLow      = lipgloss.Color("#84CC16")
	colorMedium   = lipgloss.Color("#EAB308")
	colorHigh     = lipgloss.Color("#F97316")
	colorCritical = lipgloss.Color("#EF4444")
	colorPrimary  = lipgloss.Color("#4A9EFF")
	colorDim      = lipgloss.Color("#9CA3AF")
	colorWhite    = lipgloss.Color("#F9FAFB")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorDim)

	sectionNameStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWhite).
				MarginTop(1)

	sectionCountStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorDim)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	noneStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorNone)
	lowStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorLow)
	mediumStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMedium)
	highStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorHigh)
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCritical)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

func severityStyle(s severity.Severity) lipgloss.Style {
	switch s {
	case severity.Critical:
		return criticalStyle
	case severity.High:
		return highStyle
	case severity.Medium:
		return mediumStyle
	case severity.Low:
		return lowStyle
	default:
		return noneStyle
	}
}
