// Package tool turns pointer and keyboard input into edits of a
// state.State, according to the active drawing mode. Points arrive in
// screen (canvas) pixels and are converted with the current view.
package tool

import (
	"log/slog"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/view"
)

type dragKind int

const (
	dragNone dragKind = iota
	dragPan
	dragTree
	dragPipeline
	dragScale
)

// Preview is the dashed segment drawn from the last committed point of a
// pipeline or guideline to the cursor.
type Preview struct {
	Guideline bool                  `json:"guideline"`
	Kind      document.PipelineKind `json:"pipelineType,omitempty"`
	Start     geometry.Point        `json:"start"`
	End       geometry.Point        `json:"end"`
}

type Config struct {
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Machine is not safe for concurrent use; hosts feed it events from a
// single goroutine.
type Machine struct {
	state  *state.State
	notify notify.Notifier
	log    *slog.Logger

	canvasW, canvasH float64

	drag         dragKind
	dragID       document.ID
	last         geometry.Point // screen position of the previous pointer event
	panAnchor    geometry.Point // pointer minus pan when a pan began
	treeFrom     geometry.Point
	pipelineFrom []geometry.Point

	preview *Preview
	cursor  geometry.Point
}

func New(s *state.State, cfg Config) *Machine {
	m := &Machine{state: s, notify: cfg.Notifier, log: cfg.Logger}
	if m.notify == nil {
		m.notify = notify.Discard{}
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

func (m *Machine) State() *state.State { return m.state }

// SetCanvasSize records the drawing surface size, used to centre the zoom
// buttons and to fit the image. The pan is scaled with the surface.
func (m *Machine) SetCanvasSize(w, h float64) {
	if m.canvasW > 0 && m.canvasH > 0 {
		m.state.SetView(view.Resize(m.state.View(), m.canvasW, m.canvasH, w, h))
	}
	m.canvasW, m.canvasH = w, h
}

func (m *Machine) CanvasSize() (w, h float64) { return m.canvasW, m.canvasH }

// Preview returns the segment to draw dashed, if any.
func (m *Machine) Preview() (Preview, bool) {
	if m.preview == nil {
		return Preview{}, false
	}
	return *m.preview, true
}

func (m *Machine) Dragging() bool { return m.drag != dragNone }

// Cursor is the last pointer position in world coordinates.
func (m *Machine) Cursor() geometry.Point { return m.cursor }

func (m *Machine) world(p geometry.Point) geometry.Point {
	return view.ScreenToWorld(p, m.state.View())
}

// Reset drops any drag and preview. Call it after the state has been
// replaced underneath the machine.
func (m *Machine) Reset() {
	m.preview = nil
	m.endDrag()
}

func (m *Machine) endDrag() {
	m.drag = dragNone
	m.dragID = ""
	m.pipelineFrom = nil
}
