package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/view"
)

type fakeDecoder struct{}

func (fakeDecoder) DecodeImage(ctx context.Context, data string) (*state.Image, error) {
	if data != "data:image/png;base64,AAAA" {
		return nil, errors.New("not an image")
	}
	return &state.Image{Width: 1000, Height: 1000, Data: data}, nil
}

type captureRenderer struct {
	frames [][]DrawCommand
}

func (r *captureRenderer) Draw(cmds []DrawCommand) error {
	r.frames = append(r.frames, cmds)
	return nil
}

const testImage = "data:image/png;base64,AAAA"

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{Decoder: fakeDecoder{}})
	e.SetCanvasSize(800, 600)
	require.NoError(t, e.SetBackgroundImage(context.Background(), testImage))
	return e
}

func titles(msgs []notify.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Title
	}
	return out
}

func TestSetBackgroundImageFitsView(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, view.Fit(1000, 1000, 800, 600), e.State().View())
	assert.Contains(t, titles(e.Notifications()), "Imagen Cargada")
	assert.Empty(t, e.Notifications(), "drained")

	err := e.SetBackgroundImage(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, []string{"Error al Cargar"}, titles(e.Notifications()))
	assert.Equal(t, 1000, e.State().Image().Width, "previous image kept")
}

// screen returns the screen point of a world point under the current view.
func screen(e *Engine, x, y float64) (float64, float64) {
	v := e.State().View()
	return x*v.Zoom + v.PanX, y*v.Zoom + v.PanY
}

func TestDropHitTestAndKeys(t *testing.T) {
	e := newEngine(t)
	x, y := screen(e, 100, 100)
	require.NoError(t, e.Drop(x, y, "NUEVO_5M"))
	require.Len(t, e.State().Trees(), 1)
	id := e.State().Trees()[0].ID

	var hit HitResult
	require.NoError(t, json.Unmarshal([]byte(e.HitTest(x, y)), &hit))
	assert.Equal(t, HitResult{Kind: state.SelectTree, ID: id}, hit)
	assert.JSONEq(t, `{"kind":""}`, e.HitTest(5, 5))

	assert.False(t, e.KeyDown("not json"))
	assert.True(t, e.KeyDown(`{"key":"z","ctrlKey":true}`))
	assert.Empty(t, e.State().Trees())
	assert.True(t, e.KeyDown(`{"key":"y","ctrlKey":true}`))
	assert.Len(t, e.State().Trees(), 1)

	assert.ErrorIs(t, e.Drop(x, y, "PINO"), state.ErrUnknownTreeType)
}

func TestRenderJSON(t *testing.T) {
	e := newEngine(t)
	x, y := screen(e, 100, 100)
	require.NoError(t, e.Drop(x, y, "NUEVO_3M"))

	var cmds []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.Render()), &cmds))
	ops := make(map[string]int)
	for _, c := range cmds {
		ops[c["op"].(string)]++
	}
	assert.Equal(t, 1, ops["image"])
	assert.Equal(t, 1, ops["transform"])
	assert.Positive(t, ops["path"])
}

func TestRenderIncludesPreview(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.StartGuideline("line"))
	e.Click(100, 100, 1)
	e.PointerMove(200, 100)

	var dashed int
	for _, c := range e.Commands() {
		if c.Op == "path" && c.Opacity == 0.6 {
			dashed++
		}
	}
	assert.Equal(t, 1, dashed)
}

func TestFrameUsesRenderer(t *testing.T) {
	e := New(Config{})
	assert.Error(t, e.Frame())

	r := &captureRenderer{}
	e = New(Config{Renderer: r})
	require.NoError(t, e.Frame())
	require.Len(t, r.frames, 1)
	assert.Equal(t, "save", r.frames[0][0].Op)
}

func TestProjectRoundTrip(t *testing.T) {
	e := newEngine(t)
	x, y := screen(e, 100, 100)
	require.NoError(t, e.Drop(x, y, "NUEVO_3M"))
	require.NoError(t, e.StartPolygon())
	for _, p := range [][2]float64{{0, 0}, {300, 0}, {300, 300}} {
		sx, sy := screen(e, p[0], p[1])
		e.Click(sx, sy, 1)
	}
	require.NoError(t, e.FinishPolygon())
	saved := e.GetProject()

	other := New(Config{Decoder: fakeDecoder{}})
	require.NoError(t, other.LoadProject(context.Background(), saved))
	assert.Len(t, other.State().Trees(), 1)
	assert.Len(t, other.State().Polygon(), 3)
	require.NotNil(t, other.State().Image())
	assert.Equal(t, 1000, other.State().Image().Height)
	assert.False(t, other.State().CanUndo())
	assert.Contains(t, titles(other.Notifications()), "Proyecto Cargado")

	err := other.LoadProject(context.Background(), `{"trees": 3}`)
	require.Error(t, err)
	assert.Equal(t, []string{"Error al Cargar"}, titles(other.Notifications()))
	assert.Len(t, other.State().Trees(), 1)
}

func TestLoadTemplate(t *testing.T) {
	e := New(Config{})
	require.NoError(t, e.LoadTemplate(context.Background(), "rural"))
	assert.NotEmpty(t, e.State().Trees())
	assert.Error(t, e.LoadTemplate(context.Background(), "lunar"))
}

func TestSetLayerVisibilityMerges(t *testing.T) {
	e := New(Config{})
	require.NoError(t, e.SetLayerVisibility(`{"treeLabels": false}`))
	lv := e.State().LayerVisibility()
	assert.False(t, lv.TreeLabels)
	assert.True(t, lv.GrowthCircles)
	assert.True(t, lv.Pipelines)

	assert.Error(t, e.SetLayerVisibility(`[`))
}

func TestPlantPatternByName(t *testing.T) {
	e := newEngine(t)
	e.Notifications()
	err := e.PlantPattern("spiral", "NUEVO_3M", 5)
	assert.ErrorIs(t, err, state.ErrUnknownPattern)
	assert.Equal(t, []string{"Patrón Inválido"}, titles(e.Notifications()))
}

func TestStartPipelineAndGuidelineParseNames(t *testing.T) {
	e := newEngine(t)
	for name, want := range map[string]document.PipelineKind{
		"gas":       document.KindGas,
		"water":     document.KindWater,
		"agua":      document.KindWater,
		"electric":  document.KindElectric,
		"electrica": document.KindElectric,
	} {
		require.NoError(t, e.StartPipeline(name), name)
		p, ok := e.State().CurrentPipeline()
		require.True(t, ok, name)
		assert.Equal(t, want, p.Kind, name)
		e.Machine().Cancel()
	}

	e.DrainNotifications()
	err := e.StartPipeline("steam")
	assert.ErrorIs(t, err, document.ErrUnknownPipelineKind)
	assert.Equal(t, state.ModeNormal, e.State().Mode())
	assert.Contains(t, titles(e.Notifications()), "Tipo Inválido")

	require.NoError(t, e.StartGuideline("square"))
	g, ok := e.State().CurrentGuideline()
	require.True(t, ok)
	assert.Equal(t, document.ShapeSquare, g.Shape)
	e.Machine().Cancel()
	assert.ErrorIs(t, e.StartGuideline("circle"), document.ErrUnknownGuidelineShape)
}

func TestModeAndSelectionJSON(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.StartPipeline("gas"))

	var mode ModeInfo
	require.NoError(t, json.Unmarshal([]byte(e.GetMode()), &mode))
	assert.Equal(t, state.ModePipeline, mode.Mode)
	assert.True(t, mode.HasImage)
	assert.False(t, mode.HasScale)
	assert.False(t, mode.CanUndo)

	assert.JSONEq(t, `{"kind":""}`, e.GetSelection())
	assert.JSONEq(t, `[]`, func() string { e.DrainNotifications(); return e.DrainNotifications() }())
}

func TestResetKeepsImage(t *testing.T) {
	e := newEngine(t)
	x, y := screen(e, 100, 100)
	require.NoError(t, e.Drop(x, y, "NUEVO_3M"))

	e.Reset()
	assert.Empty(t, e.State().Trees())
	assert.False(t, e.State().CanUndo())
	require.NotNil(t, e.State().Image())
	assert.Equal(t, view.Fit(1000, 1000, 800, 600), e.State().View())
}

func TestStatisticsJSON(t *testing.T) {
	e := newEngine(t)
	x, y := screen(e, 100, 100)
	require.NoError(t, e.Drop(x, y, "NUEVO_3M"))

	var stats state.Statistics
	require.NoError(t, json.Unmarshal([]byte(e.GetStatistics()), &stats))
	assert.Equal(t, 1, stats.TreeCount)
	assert.Nil(t, stats.Scale)
}
