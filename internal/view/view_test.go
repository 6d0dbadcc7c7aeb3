package view

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
)

const eps = 1e-9

func TestScreenWorldRoundTrip(t *testing.T) {
	v := View{Zoom: 2.5, PanX: 40, PanY: -12}
	for _, p := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(123.4, 56.7), geometry.Pt(-9, 1e4)} {
		back := ScreenToWorld(WorldToScreen(p, v), v)
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}

	w := ScreenToWorld(geometry.Pt(140, 88), v)
	assert.InDelta(t, 40.0, w.X, eps)
	assert.InDelta(t, 40.0, w.Y, eps)
}

func TestZoomAtKeepsPivot(t *testing.T) {
	v := View{Zoom: 1, PanX: 10, PanY: 20}
	pivot := geometry.Pt(300, 200)
	before := ScreenToWorld(pivot, v)

	z := ZoomAt(2, pivot, v)
	assert.Equal(t, 2.0, z.Zoom)
	after := ScreenToWorld(pivot, z)
	assert.InDelta(t, before.X, after.X, eps)
	assert.InDelta(t, before.Y, after.Y, eps)
}

func TestZoomNeverLeavesRange(t *testing.T) {
	v := Default()
	pivot := geometry.Pt(50, 50)
	for i := 0; i < 100; i++ {
		v = ZoomAt(v.Zoom*1000, pivot, v)
		require.LessOrEqual(t, v.Zoom, MaxZoom)
	}
	assert.Equal(t, MaxZoom, v.Zoom)
	for i := 0; i < 100; i++ {
		v = ZoomAt(v.Zoom/1000, pivot, v)
		require.GreaterOrEqual(t, v.Zoom, MinZoom)
	}
	assert.Equal(t, MinZoom, v.Zoom)

	assert.Equal(t, 1.0, ClampZoom(math.NaN()))
	assert.Equal(t, 1.0, ClampZoom(-3))
}

func TestWheelAndSteps(t *testing.T) {
	v := Default()
	assert.InDelta(t, 0.9, Wheel(100, geometry.Pt(0, 0), v).Zoom, eps)
	assert.InDelta(t, 1.1, Wheel(-100, geometry.Pt(0, 0), v).Zoom, eps)

	in := ZoomIn(v, 800, 600)
	assert.InDelta(t, 1.2, in.Zoom, eps)
	centre := ScreenToWorld(geometry.Pt(400, 300), in)
	assert.InDelta(t, 400.0, centre.X, eps)
	assert.InDelta(t, 0.8, ZoomOut(v, 800, 600).Zoom, eps)
}

func TestFit(t *testing.T) {
	v := Fit(1000, 500, 800, 600)
	assert.InDelta(t, 0.72, v.Zoom, eps)
	assert.InDelta(t, 40.0, v.PanX, eps)
	assert.InDelta(t, 120.0, v.PanY, eps)
	assert.Equal(t, Default(), Fit(0, 0, 800, 600))
}

func TestVisibleWorld(t *testing.T) {
	v := View{Zoom: 2, PanX: 100, PanY: 50}
	r := v.VisibleWorld(800, 600)
	assert.InDelta(t, -50.0, r.X, eps)
	assert.InDelta(t, -25.0, r.Y, eps)
	assert.InDelta(t, 400.0, r.Width, eps)
	assert.InDelta(t, 300.0, r.Height, eps)
}

func TestTreeAtPrefersTopmost(t *testing.T) {
	trees := []document.Tree{
		{ID: "under", Type: "NUEVO_3M", X: 100, Y: 100},
		{ID: "over", Type: "NUEVO_3M", X: 110, Y: 100},
	}
	i, ok := TreeAt(geometry.Pt(105, 100), trees, 0.05)
	require.True(t, ok)
	assert.Equal(t, document.ID("over"), trees[i].ID)

	// 3 m canopy at 0.05 m/px is a 30 px radius
	_, ok = TreeAt(geometry.Pt(100, 129), trees[:1], 0.05)
	assert.True(t, ok)
	_, ok = TreeAt(geometry.Pt(100, 131), trees[:1], 0.05)
	assert.False(t, ok)
}

func TestPipelineAt(t *testing.T) {
	pipes := []document.Pipeline{
		{ID: "a", Kind: document.KindGas, Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(100, 0)}},
		{ID: "b", Kind: document.KindWater, Points: []geometry.Point{geometry.Pt(0, 50), geometry.Pt(100, 50), geometry.Pt(100, 150)}},
	}
	i, ok := PipelineAt(geometry.Pt(95, 100), pipes, 1)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = PipelineAt(geometry.Pt(50, 8), pipes, 1)
	assert.True(t, ok)
	_, ok = PipelineAt(geometry.Pt(50, 8), pipes, 2)
	assert.False(t, ok, "tolerance shrinks as zoom grows")
}

func TestSnapToGuidelines(t *testing.T) {
	gs := []document.Guideline{
		{ID: "g", Shape: document.ShapeSquare, Visible: true, Points: geometry.SquareRing(geometry.Pt(0, 0), geometry.Pt(100, 0))},
	}

	on := geometry.Pt(100, 0)
	assert.Equal(t, on, SnapToGuidelines(on, gs, 1, true), "vertex is a fixed point")

	assert.Equal(t, geometry.Pt(100, 100), SnapToGuidelines(geometry.Pt(110, 110), gs, 1, true))
	assert.Equal(t, geometry.Pt(50, 0), SnapToGuidelines(geometry.Pt(50, 10), gs, 1, true))

	far := geometry.Pt(50, 50)
	assert.Equal(t, far, SnapToGuidelines(far, gs, 1, true))
	assert.Equal(t, geometry.Pt(50, 10), SnapToGuidelines(geometry.Pt(50, 10), gs, 1, false))

	gs[0].Visible = false
	assert.Equal(t, geometry.Pt(50, 10), SnapToGuidelines(geometry.Pt(50, 10), gs, 1, true))
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(5, 7).Multiply(Scale(2, 3))
	assert.True(t, m.Multiply(m.Invert()).IsIdentity())
	assert.Equal(t, Identity(), Scale(0, 1).Invert())
	assert.Equal(t, []float64{2, 0, 0, 3, 5, 7}, m.ToSlice())
}
