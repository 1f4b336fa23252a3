package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studio/internal/composer"
	"studio/internal/infra"
	"studio/internal/inpaint"
)

// contentTop is the first terminal row below the tab bar.
const contentTop = 2

type screen int

const (
	screenMask screen = iota
	screenComposer
)

var screenNames = []string{"Mask editor", "Post composer"}

type Options struct {
	Composer  *composer.Composer
	Submitter *inpaint.Submitter
	Alerts    *Alerts
	Logger    infra.Logger
	APIURL    string
}

// Model is the root bubbletea model. It owns the tab bar and the alert
// modal and routes everything else to the active screen.
type Model struct {
	active   screen
	mask     maskScreen
	composer composerScreen
	alerts   *Alerts
	modal    modal
	apiURL   string

	width, height int
}

func New(opts Options) Model {
	alerts := opts.Alerts
	if alerts == nil {
		alerts = NewAlerts()
	}
	return Model{
		mask:     newMaskScreen(opts.Submitter, alerts, opts.Logger, contentTop),
		composer: newComposerScreen(opts.Composer, opts.Logger),
		alerts:   alerts,
		apiURL:   opts.APIURL,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.alerts.wait(), m.composer.Init())
}

func (m Model) typing() bool {
	if m.active == screenMask {
		return m.mask.Typing()
	}
	return m.composer.Typing()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		var c1, c2 tea.Cmd
		m.mask, c1 = m.mask.Update(msg)
		m.composer, c2 = m.composer.Update(msg)
		return m, tea.Batch(c1, c2)

	case alertMsg:
		m.modal.push(string(msg))
		return m, m.alerts.wait()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.modal.active() {
			switch msg.String() {
			case "enter", "esc":
				m.modal.dismiss()
			}
			return m, nil
		}
		switch msg.String() {
		case "tab":
			m.active = IF(m.active == screenMask, screenComposer, screenMask)
			return m, nil
		case "q":
			if !m.typing() {
				return m, tea.Quit
			}
		}

	case tea.MouseMsg:
		if m.modal.active() || m.active != screenMask {
			return m, nil
		}

	// Results of background work go to their screen regardless of which
	// one is showing.
	case imageLoadedMsg, inpaintDoneMsg:
		var cmd tea.Cmd
		m.mask, cmd = m.mask.Update(msg)
		return m, cmd
	case stateMsg, outcomeMsg:
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	case spinner.TickMsg:
		var c1, c2 tea.Cmd
		m.mask, c1 = m.mask.Update(msg)
		m.composer, c2 = m.composer.Update(msg)
		return m, tea.Batch(c1, c2)
	}

	var cmd tea.Cmd
	if m.active == screenMask {
		m.mask, cmd = m.mask.Update(msg)
	} else {
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

func (m Model) tabs() string {
	parts := make([]string, len(screenNames))
	for i, name := range screenNames {
		parts[i] = IF(screen(i) == m.active, activeTab, inactiveTab).Render(name)
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	hint := mutedStyle.Render("  tab switch • q quit • " + m.apiURL)
	return bar + hint
}

func (m Model) View() string {
	if m.modal.active() {
		return m.modal.view(m.width, m.height)
	}
	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteString("\n\n")
	if m.active == screenMask {
		b.WriteString(m.mask.View())
	} else {
		b.WriteString(m.composer.View())
	}
	return b.String()
}
