package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Alerts carries notifier messages from background commands to the UI.
// It satisfies composer.Notifier.
type Alerts struct {
	ch chan string
}

func NewAlerts() *Alerts {
	return &Alerts{ch: make(chan string, 32)}
}

// Alert queues msg. When the queue is full the message is dropped rather
// than blocking the caller.
func (a *Alerts) Alert(msg string) {
	select {
	case a.ch <- msg:
	default:
	}
}

type alertMsg string

// wait delivers the next alert as a message.
func (a *Alerts) wait() tea.Cmd {
	return func() tea.Msg {
		return alertMsg(<-a.ch)
	}
}

// modal is the stack of alerts awaiting dismissal, oldest first.
type modal struct {
	pending []string
}

func (m *modal) push(msg string) { m.pending = append(m.pending, msg) }

func (m *modal) active() bool { return len(m.pending) > 0 }

func (m *modal) dismiss() {
	if len(m.pending) > 0 {
		m.pending = m.pending[1:]
	}
}

func (m modal) view(width, height int) string {
	if !m.active() {
		return ""
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		errorStyle.Bold(true).Render("Alert"),
		"",
		m.pending[0],
		"",
		mutedStyle.Render("enter / esc to dismiss"),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, alertStyle.Render(body))
}
