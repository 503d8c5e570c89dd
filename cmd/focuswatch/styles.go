package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"focuswatch/internal/delta"
)

var (
	phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7AA2F7"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7089"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E"))

	bandStyles = map[delta.Band]lipgloss.Style{
		delta.BandExcellent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9ECE6A")),
		delta.BandGood:      lipgloss.NewStyle().Foreground(lipgloss.Color("#73DACA")),
		delta.BandWarning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E0AF68")),
		delta.BandBehind:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9E64")),
		delta.BandCritical:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7768E")),
	}
)

func renderBand(band delta.Band, d float64) string {
	text := fmt.Sprintf("%+.2f %s", d, band)
	if style, ok := bandStyles[band]; ok {
		return style.Render(text)
	}
	return text
}
