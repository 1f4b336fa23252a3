package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studio/internal/composer"
	"studio/internal/infra"
)

type composerFocus int

const (
	focusPostTypes composerFocus = iota
	focusCategories
	focusTopic
	focusNews
	focusFields
	focusGenerate
	focusCount
)

func (f composerFocus) String() string {
	return [...]string{"post type", "category", "topic", "news", "fields", "generate"}[f]
}

// stateMsg asks the screen to re-read the composer state.
type stateMsg struct{}

type outcomeMsg struct {
	outcome composer.Outcome
	preview string
	err     error
}

// composerScreen renders composer.State and turns keys into composer calls.
// Calls that reach the backend run as commands.
type composerScreen struct {
	comp   *composer.Composer
	logger infra.Logger

	state composer.State
	focus composerFocus

	postCursor     int
	categoryCursor int
	newsCursor     int
	fieldCursor    int

	topic    textinput.Model
	fields   []textinput.Model
	formKey  string
	preview  string
	spinner  spinner.Model
	pending  bool
	width    int
	height   int
	lastInfo string
}

func newComposerScreen(comp *composer.Composer, logger infra.Logger) composerScreen {
	topic := textinput.New()
	topic.Placeholder = "search a topic"
	topic.Prompt = "Topic › "
	return composerScreen{
		comp:    comp,
		logger:  logger,
		state:   comp.Snapshot(),
		topic:   topic,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:   80,
		height:  24,
	}
}

func (m composerScreen) Init() tea.Cmd {
	comp := m.comp
	return func() tea.Msg {
		_ = comp.LoadPostTypes(context.Background())
		return stateMsg{}
	}
}

func (m composerScreen) Typing() bool {
	return m.focus == focusTopic || m.focus == focusFields
}

func (m composerScreen) run(call func(ctx context.Context, c *composer.Composer) error) tea.Cmd {
	comp := m.comp
	return func() tea.Msg {
		if err := call(context.Background(), comp); err != nil && !errors.Is(err, composer.ErrStale) {
			m.logger.Debug().Err(err).Msg("composer call")
		}
		return stateMsg{}
	}
}

func (m composerScreen) generate() tea.Cmd {
	comp := m.comp
	cols, rows := max(10, m.width/2-4), max(4, m.height/2)
	return func() tea.Msg {
		out, err := comp.Generate(context.Background())
		msg := outcomeMsg{outcome: out, err: err}
		if err == nil && out.Image != nil {
			if preview, perr := decodePreview(out.Image.Data, cols, rows); perr == nil {
				msg.preview = preview
			}
		}
		return msg
	}
}

// sync copies composer state in and rebuilds the field inputs when a new
// form arrived.
func (m *composerScreen) sync() tea.Cmd {
	m.state = m.comp.Snapshot()
	m.newsCursor = min(m.newsCursor, max(0, len(m.state.Articles)-1))
	m.postCursor = min(m.postCursor, max(0, len(m.state.PostTypes)-1))

	key := ""
	if m.state.Form != nil {
		key = fmt.Sprintf("%s/%d", m.state.FormPostType, len(m.state.Form.Fields))
	}
	if key == m.formKey {
		return nil
	}
	m.formKey = key
	m.fields = nil
	m.fieldCursor = 0
	if m.state.Form == nil {
		return nil
	}
	for _, f := range m.state.Form.Fields {
		in := textinput.New()
		in.Prompt = f.Label + " "
		in.Placeholder = f.Placeholder
		in.SetValue(f.Value)
		m.fields = append(m.fields, in)
	}
	return m.focusField()
}

func (m *composerScreen) focusField() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.fields {
		if m.focus == focusFields && i == m.fieldCursor {
			cmd = m.fields[i].Focus()
		} else {
			m.fields[i].Blur()
		}
	}
	return cmd
}

func (m *composerScreen) setFocus(f composerFocus) tea.Cmd {
	m.focus = (f + focusCount) % focusCount
	m.topic.Blur()
	var cmd tea.Cmd
	if m.focus == focusTopic {
		cmd = m.topic.Focus()
	}
	return tea.Batch(cmd, m.focusField())
}

func (m composerScreen) currentField() (composer.Field, bool) {
	if m.state.Form == nil || m.fieldCursor >= len(m.state.Form.Fields) {
		return composer.Field{}, false
	}
	return m.state.Form.Fields[m.fieldCursor], true
}

func (m composerScreen) Update(msg tea.Msg) (composerScreen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case stateMsg:
		return m, m.sync()

	case outcomeMsg:
		m.pending = false
		if errors.Is(msg.err, composer.ErrBusy) || errors.Is(msg.err, composer.ErrStale) {
			return m, m.sync()
		}
		if errors.Is(msg.err, composer.ErrNotReady) {
			m.lastInfo = "Select a post type and a news item first."
			return m, m.sync()
		}
		m.preview = msg.preview
		return m, m.sync()

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		m.state = m.comp.Snapshot()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.key(msg)
	}
	return m, nil
}

func (m composerScreen) key(msg tea.KeyMsg) (composerScreen, tea.Cmd) {
	switch msg.String() {
	case "ctrl+n":
		return m, m.setFocus(m.focus + 1)
	case "ctrl+p":
		return m, m.setFocus(m.focus - 1)
	case "esc":
		return m, m.setFocus(focusPostTypes)
	case "ctrl+r":
		if !m.state.RefreshVisible {
			return m, nil
		}
		return m, m.run(func(ctx context.Context, c *composer.Composer) error { return c.RefreshTrends(ctx) })
	case "ctrl+g":
		return m.startGenerate()
	}

	switch m.focus {
	case focusPostTypes:
		switch msg.String() {
		case "up", "k":
			m.postCursor = max(0, m.postCursor-1)
		case "down", "j":
			m.postCursor = min(max(0, len(m.state.PostTypes)-1), m.postCursor+1)
		case "enter":
			if len(m.state.PostTypes) == 0 {
				return m, nil
			}
			pt := m.state.PostTypes[m.postCursor]
			return m, m.run(func(ctx context.Context, c *composer.Composer) error { return c.SelectPostType(ctx, pt) })
		case "backspace", "delete":
			return m, m.run(func(ctx context.Context, c *composer.Composer) error { return c.SelectPostType(ctx, "") })
		}

	case focusCategories:
		switch msg.String() {
		case "up", "k":
			m.categoryCursor = max(0, m.categoryCursor-1)
		case "down", "j":
			m.categoryCursor = min(len(composer.Categories)-1, m.categoryCursor+1)
		case "enter":
			category := composer.Categories[m.categoryCursor]
			return m, m.run(func(ctx context.Context, c *composer.Composer) error { return c.LoadNewsByCategory(ctx, category) })
		case "backspace", "delete":
			return m, m.run(func(ctx context.Context, c *composer.Composer) error { return c.LoadNewsByCategory(ctx, "") })
		}

	case focusTopic:
		if msg.String() == "enter" {
			topic := m.topic.Value()
			return m, m.run(func(ctx context.Context, c *composer.Composer) error { return c.LoadNewsByTopic(ctx, topic) })
		}
		var cmd tea.Cmd
		m.topic, cmd = m.topic.Update(msg)
		return m, cmd

	case focusNews:
		switch msg.String() {
		case "up", "k":
			m.newsCursor = max(0, m.newsCursor-1)
		case "down", "j":
			m.newsCursor = min(max(0, len(m.state.Articles)-1), m.newsCursor+1)
		case "enter", " ":
			if len(m.state.Articles) == 0 {
				return m, nil
			}
			_ = m.comp.SelectNews(m.newsCursor)
			return m, m.sync()
		case "backspace", "delete":
			_ = m.comp.SelectNews(-1)
			return m, m.sync()
		}

	case focusFields:
		switch msg.String() {
		case "up":
			m.fieldCursor = max(0, m.fieldCursor-1)
			return m, m.focusField()
		case "down", "enter":
			m.fieldCursor = min(max(0, len(m.fields)-1), m.fieldCursor+1)
			return m, m.focusField()
		}
		field, ok := m.currentField()
		if !ok || field.Kind == composer.FieldTrend {
			return m, nil
		}
		var cmd tea.Cmd
		m.fields[m.fieldCursor], cmd = m.fields[m.fieldCursor].Update(msg)
		if err := m.comp.SetField(field.Name, m.fields[m.fieldCursor].Value()); err != nil {
			m.logger.Debug().Err(err).Str("field", field.Name).Msg("set field")
		}
		m.state = m.comp.Snapshot()
		return m, cmd

	case focusGenerate:
		if msg.String() == "enter" {
			return m.startGenerate()
		}
	}
	return m, nil
}

func (m composerScreen) startGenerate() (composerScreen, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	if !m.state.CanSubmit() {
		m.lastInfo = "Select a post type and a news item first."
		return m, nil
	}
	m.pending = true
	m.lastInfo = ""
	return m, tea.Batch(m.generate(), m.spinner.Tick)
}

func (m composerScreen) list(title string, focused bool, items []string, cursor int, selected string, empty string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	if len(items) == 0 {
		b.WriteString("\n" + mutedStyle.Render(empty))
	}
	width := max(16, m.width/3-6)
	for i, item := range items {
		line := truncate(item, width)
		mark := "  "
		if item == selected && selected != "" {
			mark = okStyle.Render("✓ ")
		}
		if focused && i == cursor {
			line = cursorStyle.Render("› " + line)
		} else {
			line = "  " + line
		}
		b.WriteString("\n" + mark + line)
	}
	return IF(focused, focusedPanel, panelStyle).Render(b.String())
}

func (m composerScreen) View() string {
	s := m.state

	postNames := make([]string, len(s.PostTypes))
	for i, pt := range s.PostTypes {
		postNames[i] = displayName(pt)
	}
	categories := make([]string, len(composer.Categories))
	for i, c := range composer.Categories {
		categories[i] = displayName(c)
	}
	titles := make([]string, len(s.Articles))
	for i, a := range s.Articles {
		titles[i] = a.Title
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.list("Post type", m.focus == focusPostTypes, postNames, m.postCursor, displayName(s.FormPostType), "Loading post types..."),
		m.list("Category", m.focus == focusCategories, categories, m.categoryCursor, IF(s.Category == "", "", displayName(s.Category)), ""),
	)

	topic := IF(m.focus == focusTopic, focusedPanel, panelStyle).Render(m.topic.View())
	news := m.list("News", m.focus == focusNews, titles, m.newsCursor, s.SelectedTitle(), s.NewsPlaceholder)
	if s.RefreshVisible {
		news += "\n" + mutedStyle.Render("ctrl+r refresh trends")
	}
	middle := lipgloss.JoinVertical(lipgloss.Left, topic, news)

	right := lipgloss.JoinVertical(lipgloss.Left, m.formView(), m.actionView(), m.resultView())

	help := mutedStyle.Render(fmt.Sprintf("focus: %s • ctrl+n/ctrl+p move • enter select • ctrl+g generate • esc back", m.focus))
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, " ", middle, " ", right),
		help,
	)
}

func (m composerScreen) formView() string {
	s := m.state
	var b strings.Builder
	b.WriteString(titleStyle.Render("Form"))
	switch s.Phase {
	case composer.PhaseNoSelection:
		b.WriteString("\n" + mutedStyle.Render("Pick a post type."))
	case composer.PhaseSchemaLoading:
		b.WriteString("\n" + mutedStyle.Render("Loading fields..."))
	case composer.PhaseSchemaFailed:
		b.WriteString("\n" + errorStyle.Render(s.FormError))
	case composer.PhaseSchemaLoaded:
		for i, f := range s.Form.Fields {
			b.WriteString("\n")
			if f.Kind == composer.FieldTrend {
				b.WriteString(f.Label + " " + IF(f.Value == "", mutedStyle.Render(f.Display()), okStyle.Render(f.Display())))
				continue
			}
			if i < len(m.fields) {
				b.WriteString(m.fields[i].View())
			}
		}
	}
	return IF(m.focus == focusFields, focusedPanel, panelStyle).Render(b.String())
}

func (m composerScreen) actionView() string {
	label := "[ Generate ]"
	style := IF(m.state.CanSubmit() && !m.pending, okStyle, mutedStyle)
	if m.focus == focusGenerate {
		style = style.Bold(true).Underline(true)
	}
	line := style.Render(label)
	if m.lastInfo != "" {
		line += " " + mutedStyle.Render(m.lastInfo)
	}
	return line
}

func (m composerScreen) resultView() string {
	s := m.state
	switch {
	case m.pending || s.Stage != composer.StageIdle:
		return m.spinner.View() + " " + s.StatusText()
	case s.Result != nil:
		text := s.Result.Render()
		width := max(20, m.width/3)
		body := lipgloss.NewStyle().Width(width).Render(text)
		if s.Result.Failed() {
			body = errorStyle.Width(width).Render(text)
		}
		if m.preview != "" {
			body = lipgloss.JoinVertical(lipgloss.Left, body, "", m.preview)
		}
		return body
	}
	return ""
}
