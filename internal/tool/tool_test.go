package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/view"
)

func newMachine(t *testing.T) (*Machine, *state.State, *notify.Recorder) {
	t.Helper()
	s := state.New(state.Config{})
	s.SetImage(&state.Image{Width: 1000, Height: 1000})
	rec := &notify.Recorder{}
	m := New(s, Config{Notifier: rec})
	m.SetCanvasSize(800, 600)
	return m, s, rec
}

func pt(x, y float64) geometry.Point { return geometry.Pt(x, y) }

func drag(m *Machine, from, to geometry.Point) {
	m.PointerDown(from)
	m.PointerMove(to)
	m.PointerUp(to)
}

func lastMessage(t *testing.T, rec *notify.Recorder) notify.Message {
	t.Helper()
	msg, ok := rec.Last()
	require.True(t, ok, "expected a notification")
	return msg
}

func TestPolygonByClicks(t *testing.T) {
	m, s, rec := newMachine(t)
	require.NoError(t, m.StartPolygon())

	for _, p := range []geometry.Point{pt(0, 0), pt(100, 0), pt(100, 100), pt(0, 100)} {
		m.Click(p, 1)
	}
	m.Click(pt(0, 100), 2)

	assert.Equal(t, state.ModeNormal, s.Mode())
	assert.Len(t, s.Polygon(), 4, "the finishing click adds no vertex")
	assert.Equal(t, "Escala No Definida", lastMessage(t, rec).Title)
}

func TestDoubleClickBelowMinimumAddsPoint(t *testing.T) {
	m, s, _ := newMachine(t)
	require.NoError(t, m.StartPolygon())
	m.Click(pt(0, 0), 1)
	m.Click(pt(10, 0), 2)
	assert.Equal(t, state.ModePolygon, s.Mode())
	assert.Len(t, s.Polygon(), 2)
}

func TestPipelineByClicksWithPreview(t *testing.T) {
	m, s, rec := newMachine(t)
	require.NoError(t, m.StartPipeline(document.KindWater))
	assert.Contains(t, lastMessage(t, rec).Text, "Tubería de Agua")

	m.PointerMove(pt(5, 5))
	_, ok := m.Preview()
	assert.False(t, ok, "no preview before the first point")

	m.Click(pt(0, 0), 1)
	m.PointerMove(pt(50, 50))
	pv, ok := m.Preview()
	require.True(t, ok)
	assert.Equal(t, Preview{Kind: document.KindWater, Start: pt(0, 0), End: pt(50, 50)}, pv)

	m.Click(pt(100, 0), 1)
	_, ok = m.Preview()
	assert.False(t, ok, "committing a point clears the preview")

	m.Click(pt(100, 0), 2)
	require.Len(t, s.Pipelines(), 1)
	assert.Equal(t, []geometry.Point{pt(0, 0), pt(100, 0)}, s.Pipelines()[0].Points)
	assert.Equal(t, state.ModeNormal, s.Mode())
	assert.Equal(t, notify.Success, lastMessage(t, rec).Severity)
}

func TestFinishPipelineTooShort(t *testing.T) {
	m, _, rec := newMachine(t)
	require.NoError(t, m.StartPipeline(document.KindGas))
	_, err := m.FinishPipeline()
	assert.ErrorIs(t, err, state.ErrTooFewPoints)
	assert.Equal(t, "Tubería Incompleta", lastMessage(t, rec).Title)
}

func TestSquareGuidelineByClicks(t *testing.T) {
	m, s, _ := newMachine(t)
	require.NoError(t, m.StartGuideline(document.ShapeSquare))
	m.Click(pt(0, 0), 1)
	m.PointerMove(pt(8, 0))
	pv, ok := m.Preview()
	require.True(t, ok)
	assert.True(t, pv.Guideline)

	m.Click(pt(10, 0), 1)
	m.Click(pt(10, 0), 2)

	require.Len(t, s.Guidelines(), 1)
	assert.Equal(t, []geometry.Point{pt(0, 0), pt(10, 0), pt(10, 10), pt(0, 10), pt(0, 0)}, s.Guidelines()[0].Points)
	assert.Equal(t, state.GuideNone, s.GuidelineMode())
}

func TestTreeDragSnapsAndUndoes(t *testing.T) {
	m, s, _ := newMachine(t)
	require.NoError(t, m.StartGuideline(document.ShapeLine))
	m.Click(pt(0, 300), 1)
	m.Click(pt(1000, 300), 1)
	m.Click(pt(1000, 300), 2)

	tr, err := m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)

	drag(m, pt(100, 100), pt(400, 310))
	moved, _ := s.Tree(tr.ID)
	assert.Equal(t, pt(400, 300), moved.Position())
	assert.Equal(t, state.Selection{Kind: state.SelectTree, ID: tr.ID}, s.Selection())

	require.NoError(t, m.Undo())
	back, _ := s.Tree(tr.ID)
	assert.Equal(t, pt(100, 100), back.Position())
}

func TestSubPixelDragNotRecorded(t *testing.T) {
	m, s, _ := newMachine(t)
	_, err := m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)

	drag(m, pt(100, 100), pt(100.5, 100.5))
	require.NoError(t, s.Undo())
	assert.False(t, s.CanUndo(), "only the add was recorded")
	assert.Empty(t, s.Trees())
}

func TestPipelineDragAtZoom(t *testing.T) {
	m, s, _ := newMachine(t)
	require.NoError(t, s.StartPipeline(document.KindGas))
	_, _ = s.AddPipelinePoint(pt(0, 100))
	_, _ = s.AddPipelinePoint(pt(200, 100))
	p, err := s.FinishPipeline()
	require.NoError(t, err)
	s.SetView(view.View{Zoom: 2})

	// world (50, 100) is screen (100, 200)
	m.PointerDown(pt(100, 200))
	assert.True(t, m.Dragging())
	m.PointerMove(pt(100, 220))
	m.PointerMove(pt(100, 240))
	m.PointerUp(pt(100, 240))

	got, _ := s.Pipeline(p.ID)
	assert.Equal(t, []geometry.Point{pt(0, 120), pt(200, 120)}, got.Points)

	require.NoError(t, s.Undo())
	got, _ = s.Pipeline(p.ID)
	assert.Equal(t, p.Points, got.Points)
}

func TestPanOnEmptySpace(t *testing.T) {
	m, s, _ := newMachine(t)
	tr, err := m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)
	require.NoError(t, s.SelectTree(tr.ID))

	drag(m, pt(500, 500), pt(520, 530))
	v := s.View()
	assert.Equal(t, 20.0, v.PanX)
	assert.Equal(t, 30.0, v.PanY)
	assert.Equal(t, state.SelectNone, s.Selection().Kind)
	assert.False(t, m.Dragging())
}

func TestScaleLineDrag(t *testing.T) {
	m, s, rec := newMachine(t)
	require.NoError(t, m.StartScaling())
	drag(m, pt(0, 0), pt(200, 0))

	line, ok := s.ScaleLine()
	require.True(t, ok)
	assert.Equal(t, 200.0, line.Length())

	// the line stays until the scale is set or the mode is cancelled
	drag(m, pt(500, 500), pt(600, 600))
	line, _ = s.ScaleLine()
	assert.Equal(t, 200.0, line.Length())

	res, err := m.ApplyScale(10)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, res.Scale, 1e-12)
	assert.Equal(t, "Escala Definida", lastMessage(t, rec).Title)
	assert.Equal(t, state.ModeNormal, s.Mode())
}

func TestApplyScaleTooShort(t *testing.T) {
	m, s, rec := newMachine(t)
	require.NoError(t, m.StartScaling())
	drag(m, pt(0, 0), pt(5, 0))
	_, err := m.ApplyScale(10)
	assert.ErrorIs(t, err, state.ErrLineTooShort)
	assert.Equal(t, "Línea Muy Corta", lastMessage(t, rec).Title)
	assert.Equal(t, state.ModeScaling, s.Mode())
}

func TestWheelZoomsAboutCursor(t *testing.T) {
	m, s, _ := newMachine(t)
	cursor := pt(100, 100)
	before := view.ScreenToWorld(cursor, s.View())

	m.Wheel(cursor, -1)
	assert.InDelta(t, 1.1, s.View().Zoom, 1e-12)
	after := view.ScreenToWorld(cursor, s.View())
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	m.Wheel(cursor, 1)
	assert.InDelta(t, 0.99, s.View().Zoom, 1e-12)
}

func TestClickSelection(t *testing.T) {
	m, s, _ := newMachine(t)
	tr, err := m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)

	m.Click(pt(105, 100), 1)
	assert.Equal(t, state.Selection{Kind: state.SelectTree, ID: tr.ID}, s.Selection())
	m.Click(pt(700, 700), 1)
	assert.Equal(t, state.SelectNone, s.Selection().Kind)
}

func TestKeyboard(t *testing.T) {
	m, s, rec := newMachine(t)
	tr, err := m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)

	assert.False(t, m.KeyDown(Key{Name: "a"}))
	assert.False(t, m.KeyDown(Key{Name: "z"}), "undo needs a modifier")

	require.NoError(t, s.SelectTree(tr.ID))
	assert.True(t, m.KeyDown(Key{Name: "Delete"}))
	assert.Empty(t, s.Trees())
	assert.Equal(t, "Árbol Eliminado", lastMessage(t, rec).Title)

	assert.True(t, m.KeyDown(Key{Name: "z", Ctrl: true}))
	assert.Len(t, s.Trees(), 1)
	assert.True(t, m.KeyDown(Key{Name: "Z", Ctrl: true, Shift: true}))
	assert.Empty(t, s.Trees())
	assert.True(t, m.KeyDown(Key{Name: "z", Meta: true}))
	assert.True(t, m.KeyDown(Key{Name: "y", Ctrl: true}))
	assert.Empty(t, s.Trees())

	assert.True(t, m.KeyDown(Key{Name: "y", Ctrl: true}))
	assert.Equal(t, "Sin Acciones", lastMessage(t, rec).Title)

	assert.True(t, m.KeyDown(Key{Name: "=", Ctrl: true}))
	assert.InDelta(t, 1.2, s.View().Zoom, 1e-12)
	assert.True(t, m.KeyDown(Key{Name: "-", Ctrl: true}))
	assert.InDelta(t, 0.96, s.View().Zoom, 1e-12)
	assert.True(t, m.KeyDown(Key{Name: "0", Ctrl: true}))
	assert.Equal(t, view.Fit(1000, 1000, 800, 600), s.View())
}

func TestDeleteOnlyInNormalMode(t *testing.T) {
	m, s, _ := newMachine(t)
	tr, err := m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)
	require.NoError(t, s.SelectTree(tr.ID))
	require.NoError(t, s.StartPolygon())

	m.KeyDown(Key{Name: "Backspace"})
	assert.Len(t, s.Trees(), 1)

	m.Cancel()
	require.NoError(t, s.SelectTree(tr.ID))
	require.NoError(t, m.StartGuideline(document.ShapeLine))
	m.KeyDown(Key{Name: "Delete"})
	assert.Len(t, s.Trees(), 1, "delete is ignored while drawing a guideline")
}

func TestEscapeCancels(t *testing.T) {
	m, s, rec := newMachine(t)
	require.NoError(t, m.StartPipeline(document.KindElectric))
	m.Click(pt(0, 0), 1)
	m.PointerMove(pt(10, 10))

	assert.True(t, m.KeyDown(Key{Name: "Escape"}))
	assert.Equal(t, state.ModeNormal, s.Mode())
	_, ok := s.CurrentPipeline()
	assert.False(t, ok)
	_, ok = m.Preview()
	assert.False(t, ok)
	assert.Equal(t, notify.Message{Severity: notify.Info, Title: "Operación Cancelada", Text: "Dibujo de tubería cancelado"}, lastMessage(t, rec))
	assert.Empty(t, s.Pipelines())

	require.NoError(t, m.StartPolygon())
	m.Click(pt(0, 0), 1)
	m.KeyDown(Key{Name: "Escape"})
	assert.Empty(t, s.Polygon())
}

func TestDropRejections(t *testing.T) {
	s := state.New(state.Config{})
	rec := &notify.Recorder{}
	m := New(s, Config{Notifier: rec})

	_, err := m.Drop(pt(10, 10), "NUEVO_3M")
	assert.ErrorIs(t, err, state.ErrNoImage)
	assert.Equal(t, "Imagen Requerida", lastMessage(t, rec).Title)

	s.SetImage(&state.Image{Width: 100, Height: 100})
	_, err = m.Drop(pt(150, 10), "NUEVO_3M")
	assert.ErrorIs(t, err, state.ErrOutOfBounds)
	assert.Equal(t, "Posición Inválida", lastMessage(t, rec).Title)

	_, err = m.Drop(pt(10, 10), "ROBLE")
	assert.ErrorIs(t, err, state.ErrUnknownTreeType)
	assert.Empty(t, s.Trees())
}

func TestDropWarnsOnTightSpacing(t *testing.T) {
	m, s, rec := newMachine(t)
	_, err := s.SetScale(10, 200)
	require.NoError(t, err)

	_, err = m.Drop(pt(100, 100), "NUEVO_3M")
	require.NoError(t, err)
	_, err = m.Drop(pt(101, 100), "NUEVO_3M")
	require.NoError(t, err)

	assert.Len(t, s.Trees(), 2)
	msg := lastMessage(t, rec)
	assert.Equal(t, notify.Warning, msg.Severity)
	assert.Equal(t, state.AdvisoryTightSpacing.Message(), msg.Text)
}

func TestPlantPatternAndOptimize(t *testing.T) {
	m, s, rec := newMachine(t)
	_, err := m.PlantPattern(state.PatternGrid, "NUEVO_3M", 5)
	assert.ErrorIs(t, err, state.ErrScaleRequired)
	assert.Equal(t, "Escala Requerida", lastMessage(t, rec).Title)

	_, err = s.SetScale(10, 10)
	require.NoError(t, err)
	require.NoError(t, s.SetPolygon([]geometry.Point{pt(0, 0), pt(100, 0), pt(100, 100), pt(0, 100)}))
	planted, err := m.PlantPattern(state.PatternGrid, "NUEVO_3M", 25)
	require.NoError(t, err)
	assert.NotEmpty(t, planted)
	assert.Equal(t, "Patrón Plantado", lastMessage(t, rec).Title)

	found, _, err := m.OptimizeSpacing()
	require.NoError(t, err)
	assert.Zero(t, found)
	assert.Equal(t, "Espaciado Óptimo", lastMessage(t, rec).Title)
}

func TestCanvasResizeKeepsPanProportional(t *testing.T) {
	m, s, _ := newMachine(t)
	s.SetView(view.View{Zoom: 1, PanX: 80, PanY: 60})
	m.SetCanvasSize(1600, 1200)
	assert.Equal(t, view.View{Zoom: 1, PanX: 160, PanY: 120}, s.View())
	w, h := m.CanvasSize()
	assert.Equal(t, 1600.0, w)
	assert.Equal(t, 1200.0, h)
}
