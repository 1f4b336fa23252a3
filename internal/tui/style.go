// Package tui is the terminal front end: a mask editor that submits
// inpainting jobs and a post composer that drives trend based generation.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	mutedStyle   = lipgloss.NewStyle().Foreground(subtle)
	errorStyle   = lipgloss.NewStyle().Foreground(danger)
	okStyle      = lipgloss.NewStyle().Foreground(special)
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle).Padding(0, 1)
	focusedPanel = panelStyle.BorderForeground(highlight)

	activeTab   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(highlight).Padding(0, 1)
	inactiveTab = lipgloss.NewStyle().Foreground(subtle).Padding(0, 1)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(danger).
			Padding(1, 3).
			Width(60)
)

var titleCaser = cases.Title(language.English)

// displayName turns identifiers such as product_launch or TECHNOLOGY into
// labels for lists.
func displayName(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func IF[T any](condition bool, a, b T) T {
	if condition {
		return a
	}
	return b
}

// truncate cuts s to n cells, marking the cut.
func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
