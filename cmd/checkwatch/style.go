package main

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/checkwatch/internal/progress"
)

// Catppuccin Mocha palette.
const (
	colorMauve    = "#cba6f7"
	colorLavender = "#b4befe"
	colorGreen    = "#a6e3a1"
	colorYellow   = "#f9e2af"
	colorRed      = "#f38ba8"
	colorSubtext  = "#a6adc8"
	colorOverlay  = "#6c7086"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorMauve))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLavender))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorOverlay))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSubtext)).Width(12)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorOverlay)).
			Padding(0, 1)
)

const barWidth = 24

func renderBanner() string {
	return titleStyle.Render("☑ checkwatch") + mutedStyle.Render("  markdown task progress")
}

// progressBar renders a fixed-width bar colored by how far along it is.
func progressBar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	style := errorStyle
	switch {
	case percent >= 100:
		style = successStyle
	case percent >= 50:
		style = warnStyle
	}
	return style.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", barWidth-filled))
}

func countLine(label string, completed, total int, percent float64) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label),
		progressBar(percent),
		fmt.Sprintf(" %d/%d (%.1f%%)", completed, total, percent),
	)
}

// renderSnapshot draws one project's rollup inside a rounded box.
func renderSnapshot(s progress.ProgressSnapshot) string {
	lines := []string{
		headerStyle.Render(s.ProjectID),
		countLine("total", s.Completed, s.Total, s.Percent),
	}
	for _, p := range s.Phases {
		label := fmt.Sprintf("phase %d", p.Phase)
		if p.Phase == 0 {
			label = "unphased"
		}
		lines = append(lines, countLine(label, p.Completed, p.Total, p.Percent))
	}
	for _, a := range s.Agents {
		lines = append(lines, countLine(a.Agent, a.Completed, a.Total, a.Percent))
	}
	if len(s.Active) > 0 {
		lines = append(lines, "", mutedStyle.Render("in progress"))
		for _, t := range s.Active {
			lines = append(lines, fmt.Sprintf("  %s %s", warnStyle.Render("○"), t.Description))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
