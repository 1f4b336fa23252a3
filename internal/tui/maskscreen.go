package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studio/internal/infra"
	"studio/internal/inpaint"
	"studio/internal/mask"
)

// Rows the mask screen draws above the preview.
const maskHeaderRows = 5

const (
	maskFocusPath = iota
	maskFocusPositive
	maskFocusNegative
	maskFocusCanvas
	maskFocusCount
)

type imageLoadedMsg struct {
	path    string
	surface *mask.Surface
	data    []byte
	err     error
}

type inpaintDoneMsg struct {
	result *inpaint.Result
	art    string
	err    error
}

// maskScreen edits an alpha mask over a loaded image and sends it for
// inpainting.
type maskScreen struct {
	submitter *inpaint.Submitter
	alerts    *Alerts
	logger    infra.Logger

	path     textinput.Model
	positive textinput.Model
	negative textinput.Model
	focus    int

	surface  *mask.Surface
	original []byte
	preview  string

	slot    *inpaint.ResultSlot
	art     string
	pending bool
	spinner spinner.Model
	status  string

	top, width, height int
	cols, rows         int
}

func newMaskScreen(submitter *inpaint.Submitter, alerts *Alerts, logger infra.Logger, top int) maskScreen {
	path := textinput.New()
	path.Placeholder = "path/to/image.png"
	path.Prompt = "Image    › "
	positive := textinput.New()
	positive.Placeholder = "what to paint into the erased area"
	positive.Prompt = "Positive › "
	negative := textinput.New()
	negative.Placeholder = "optional"
	negative.Prompt = "Negative › "

	m := maskScreen{
		submitter: submitter,
		alerts:    alerts,
		logger:    logger,
		path:      path,
		positive:  positive,
		negative:  negative,
		slot:      &inpaint.ResultSlot{},
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		top:       top,
		width:     80,
		height:    24,
	}
	m.path.Focus()
	return m
}

func (m maskScreen) Typing() bool { return m.focus != maskFocusCanvas }

func (m maskScreen) previewTop() int { return m.top + maskHeaderRows }

// viewRect is the preview area in half-cell units, the space mouse
// positions are mapped from.
func (m maskScreen) viewRect() mask.Rect {
	return mask.Rect{
		MinX:   0,
		MinY:   float64(m.previewTop() * 2),
		Width:  float64(m.cols),
		Height: float64(m.rows * 2),
	}
}

func (m maskScreen) inPreview(x, y int) bool {
	return m.surface != nil && x >= 0 && x < m.cols && y >= m.previewTop() && y < m.previewTop()+m.rows
}

// cellPoint is the centre of a terminal cell in half-cell units.
func cellPoint(x, y int) mask.Point {
	return mask.Point{X: float64(x) + 0.5, Y: float64(y*2) + 1}
}

func (m *maskScreen) layout() {
	if m.surface == nil {
		m.cols, m.rows = 0, 0
		return
	}
	w, h := m.surface.Size()
	budgetCols := max(10, (m.width-4)/2)
	budgetRows := max(4, m.height-m.previewTop()-3)
	m.cols, m.rows = fit(w, h, budgetCols, budgetRows)
	m.render()
}

func (m *maskScreen) render() {
	if m.surface == nil {
		m.preview = ""
		return
	}
	m.preview = halfBlocks(m.surface.Image(), m.cols, m.rows)
}

func (m *maskScreen) setFocus(i int) tea.Cmd {
	m.focus = (i + maskFocusCount) % maskFocusCount
	inputs := []*textinput.Model{&m.path, &m.positive, &m.negative}
	var cmd tea.Cmd
	for idx, in := range inputs {
		if idx == m.focus {
			cmd = in.Focus()
		} else {
			in.Blur()
		}
	}
	return cmd
}

func loadImage(path string) tea.Cmd {
	return func() tea.Msg {
		path = strings.TrimSpace(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return imageLoadedMsg{path: path, err: err}
		}
		surface, err := mask.LoadFile(path)
		return imageLoadedMsg{path: path, surface: surface, data: data, err: err}
	}
}

func (m maskScreen) submit() tea.Cmd {
	sub := inpaint.Submission{
		Image:    m.original,
		Positive: m.positive.Value(),
		Negative: m.negative.Value(),
	}
	if m.surface != nil {
		sub.Mask = m.surface
	}
	if err := inpaint.Validate(sub); err != nil {
		var verr *inpaint.ValidationError
		if errors.As(err, &verr) {
			m.alerts.Alert(verr.Message)
		}
		return nil
	}
	submitter, cols, rows := m.submitter, max(10, (m.width-4)/2), max(4, m.height-m.previewTop()-3)
	return func() tea.Msg {
		res, err := submitter.Submit(context.Background(), sub)
		if err != nil {
			return inpaintDoneMsg{err: err}
		}
		art, artErr := asciiArt(res.Image, cols, rows)
		if artErr != nil {
			art = mutedStyle.Render(fmt.Sprintf("(%d byte %s result, no preview: %v)", len(res.Image), res.MIMEType, artErr))
		}
		return inpaintDoneMsg{result: res, art: art}
	}
}

func (m maskScreen) Update(msg tea.Msg) (maskScreen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case imageLoadedMsg:
		if msg.err != nil {
			m.logger.Error().Err(msg.err).Str("path", msg.path).Msg("load image")
			m.alerts.Alert("Could not load image: " + msg.err.Error())
			return m, nil
		}
		m.surface, m.original = msg.surface, msg.data
		w, h := msg.surface.Size()
		m.status = fmt.Sprintf("loaded %s (%d×%d)", filepath.Base(msg.path), w, h)
		m.layout()
		return m, m.setFocus(maskFocusCanvas)

	case inpaintDoneMsg:
		m.pending = false
		if msg.err != nil {
			var verr *inpaint.ValidationError
			switch {
			case errors.As(msg.err, &verr):
				m.alerts.Alert(verr.Message)
			case errors.Is(msg.err, inpaint.ErrBusy):
			default:
				m.logger.Error().Err(msg.err).Msg("inpaint failed")
				m.slot.Fail(msg.err)
			}
			return m, nil
		}
		m.slot.Show(msg.result)
		m.art = msg.art
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.mouse(msg), nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+o":
			return m, loadImage(m.path.Value())
		case "ctrl+s":
			if m.surface == nil {
				m.alerts.Alert("Load an image before saving a mask.")
				return m, nil
			}
			saved, err := m.surface.SaveFile(mask.DefaultFilename)
			if err != nil {
				m.alerts.Alert("Could not save mask: " + err.Error())
				return m, nil
			}
			m.status = "mask saved to " + saved
			return m, nil
		case "ctrl+g":
			if m.pending || m.submitter.Pending() {
				return m, nil
			}
			cmd := m.submit()
			if cmd == nil {
				return m, nil
			}
			m.pending = true
			return m, tea.Batch(cmd, m.spinner.Tick)
		case "ctrl+n", "enter":
			return m, m.setFocus(m.focus + 1)
		case "ctrl+p":
			return m, m.setFocus(m.focus - 1)
		case "esc":
			return m, m.setFocus(maskFocusCanvas)
		}
		if m.focus == maskFocusCanvas {
			if m.surface != nil {
				switch msg.String() {
				case "+", "=":
					m.surface.Brush().Grow(1)
				case "-", "_":
					m.surface.Brush().Grow(-1)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case maskFocusPath:
		m.path, cmd = m.path.Update(msg)
	case maskFocusPositive:
		m.positive, cmd = m.positive.Update(msg)
	case maskFocusNegative:
		m.negative, cmd = m.negative.Update(msg)
	}
	return m, cmd
}

func (m maskScreen) mouse(msg tea.MouseMsg) maskScreen {
	if m.surface == nil {
		return m
	}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && m.inPreview(msg.X, msg.Y) {
			m.surface.PointerDown()
		}
	case tea.MouseActionMotion:
		if !m.inPreview(msg.X, msg.Y) {
			m.surface.PointerLeave()
			return m
		}
		if m.surface.PointerMove(cellPoint(msg.X, msg.Y), m.viewRect()) {
			m.render()
		}
	case tea.MouseActionRelease:
		m.surface.PointerUp()
	}
	return m
}

func (m maskScreen) View() string {
	brush := "no image"
	if m.surface != nil {
		w, h := m.surface.Size()
		brush = fmt.Sprintf("brush %d  •  %d×%d", m.surface.Brush().Radius(), w, h)
	}
	header := lipgloss.JoinVertical(lipgloss.Left,
		m.path.View(),
		m.positive.View(),
		m.negative.View(),
		mutedStyle.Render(truncate(brush+"  •  "+IF(m.status == "", "ctrl+o load", m.status), max(20, m.width-1))),
		"",
	)

	canvas := m.preview
	if canvas == "" {
		canvas = mutedStyle.Render("Enter an image path and press ctrl+o.")
	}

	var result strings.Builder
	switch {
	case m.pending:
		result.WriteString(m.spinner.View() + " Generating...")
	case m.slot.Visible():
		if m.art != "" && m.slot.Image() != nil {
			result.WriteString(m.art)
		}
		if text := m.slot.ErrorText(); text != "" {
			if result.Len() > 0 {
				result.WriteString("\n")
			}
			result.WriteString(errorStyle.Render(text))
		}
	}

	help := mutedStyle.Render("drag to erase • +/- brush • ctrl+s save mask • ctrl+g inpaint • ctrl+n next field • esc canvas")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, canvas, "  ", result.String()),
		"",
		help,
	)
}
