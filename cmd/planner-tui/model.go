package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/engine"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// panStep is how far one arrow press moves the view, in screen pixels.
const panStep = 4 * cellW

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E6E6")).Background(lipgloss.Color("#1f3a2b"))
	modeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0B0F14")).Background(lipgloss.Color("#66bb6a")).Bold(true).Padding(0, 1)
	noteStyles = map[notify.Severity]lipgloss.Style{
		notify.Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#81c784")),
		notify.Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#90caf9")),
		notify.Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb74d")),
		notify.Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#e57373")),
	}
)

// Tree glyphs by catalog category.
var categoryGlyph = map[document.TreeCategory]rune{
	document.CategoryNew:      '♣',
	document.CategoryExisting: '♠',
}

type model struct {
	eng    *engine.Engine
	canvas *canvas
	keys   keyMap
	help   help.Model
	path   string

	width, height int
	sized         bool
	note          *notify.Message
}

func newModel(eng *engine.Engine, c *canvas, path string) model {
	return model{
		eng:    eng,
		canvas: c,
		keys:   defaultKeys(),
		help:   help.New(),
		path:   path,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		if !m.sized {
			m.sized = true
			m.eng.ResetZoom()
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()
		case key.Matches(msg, m.keys.Up):
			m.pan(0, panStep)
		case key.Matches(msg, m.keys.Down):
			m.pan(0, -panStep)
		case key.Matches(msg, m.keys.Left):
			m.pan(panStep, 0)
		case key.Matches(msg, m.keys.Right):
			m.pan(-panStep, 0)
		case key.Matches(msg, m.keys.ZoomIn):
			m.eng.ZoomIn()
		case key.Matches(msg, m.keys.ZoomOut):
			m.eng.ZoomOut()
		case key.Matches(msg, m.keys.Fit):
			m.eng.ResetZoom()
		case key.Matches(msg, m.keys.Delete):
			_ = m.eng.DeleteSelected()
		case key.Matches(msg, m.keys.Undo):
			_ = m.eng.Undo()
		case key.Matches(msg, m.keys.Redo):
			_ = m.eng.Redo()
		case key.Matches(msg, m.keys.Snap):
			on := m.eng.ToggleSnapToGuides()
			m.note = &notify.Message{Severity: notify.Info, Title: "Ajuste", Text: onOff(on)}
		case key.Matches(msg, m.keys.Cancel):
			m.eng.Machine().Cancel()
		case key.Matches(msg, m.keys.Save):
			m.save()
		}

	case tea.MouseMsg:
		if msg.Y >= m.canvas.rows {
			break
		}
		p := cellCenter(msg.X, msg.Y)
		switch msg.Action {
		case tea.MouseActionPress:
			switch msg.Button {
			case tea.MouseButtonLeft:
				m.eng.PointerDown(p.X, p.Y)
			case tea.MouseButtonWheelUp:
				m.eng.Wheel(p.X, p.Y, -1)
			case tea.MouseButtonWheelDown:
				m.eng.Wheel(p.X, p.Y, 1)
			}
		case tea.MouseActionMotion:
			m.eng.PointerMove(p.X, p.Y)
		case tea.MouseActionRelease:
			m.eng.PointerUp(p.X, p.Y)
			m.eng.Click(p.X, p.Y, 1)
		}
	}

	if notes := m.eng.Notifications(); len(notes) > 0 {
		last := notes[len(notes)-1]
		m.note = &last
	}
	m.redraw()
	return m, nil
}

// layout sizes the canvas to the window minus the status bar and help.
func (m *model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	footer := 1 + lipgloss.Height(m.help.View(m.keys))
	m.canvas.resize(m.width, max(m.height-footer, 1))
	m.eng.SetCanvasSize(m.canvas.pixelSize())
}

func (m *model) pan(dx, dy float64) {
	s := m.eng.State()
	v := s.View()
	s.SetView(view.View{Zoom: v.Zoom, PanX: v.PanX + dx, PanY: v.PanY + dy})
}

func (m *model) save() {
	if err := os.WriteFile(m.path, []byte(m.eng.GetProject()), 0o644); err != nil {
		m.note = &notify.Message{Severity: notify.Error, Title: "Error al Guardar", Text: err.Error()}
		return
	}
	m.note = &notify.Message{Severity: notify.Success, Title: "Guardado", Text: m.path}
}

// redraw renders the current frame into the canvas.
func (m *model) redraw() {
	glyphs := make(map[string]rune)
	for _, t := range m.eng.State().Trees() {
		if cfg, ok := t.Config(); ok {
			glyphs[string(t.ID)] = categoryGlyph[cfg.Category]
		}
	}
	m.canvas.glyph = func(id string) (rune, bool) {
		g, ok := glyphs[id]
		return g, ok
	}
	_ = m.eng.Frame()
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.canvas.String(),
		m.statusBar(),
		m.help.View(m.keys),
	)
}

func (m model) statusBar() string {
	info := m.eng.Mode()
	stats := m.eng.State().Statistics()
	left := modeStyle.Render(string(info.Mode))
	mid := fmt.Sprintf(" %s · %d árboles · %d tuberías · zoom %.0f%%",
		stats.Name, stats.TreeCount, stats.PipelineCount, info.Zoom*100)
	if info.SnapToGuides {
		mid += " · ajuste"
	}
	right := ""
	// The note is cut to whatever room the bar has left.
	if room := m.width - lipgloss.Width(left) - lipgloss.Width(mid) - 1; m.note != nil && room > 0 {
		right = noteStyles[m.note.Severity].MaxWidth(room).Render(m.note.Title + ": " + m.note.Text)
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(mid)-lipgloss.Width(right), 1)
	return barStyle.MaxWidth(m.width).Render(left + mid + fmt.Sprintf("%*s", gap, "") + right)
}

func onOff(on bool) string {
	if on {
		return "activado"
	}
	return "desactivado"
}
