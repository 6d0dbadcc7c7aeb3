package state

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/view"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newState(t *testing.T) *State {
	t.Helper()
	s := New(Config{
		Rand: rand.New(rand.NewPCG(1, 2)),
		Now:  func() time.Time { return fixedNow },
	})
	s.SetImage(&Image{Width: 1000, Height: 1000})
	return s
}

func addTree(t *testing.T, s *State, key document.TreeTypeKey, x, y float64) document.Tree {
	t.Helper()
	tr, err := s.AddTree(key, geometry.Pt(x, y))
	require.NoError(t, err)
	return tr.Tree
}

func square(x, y, side float64) []geometry.Point {
	return []geometry.Point{geometry.Pt(x, y), geometry.Pt(x+side, y), geometry.Pt(x+side, y+side), geometry.Pt(x, y+side)}
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, ModeNormal, s.Mode())
	assert.Equal(t, GuideNone, s.GuidelineMode())
	assert.Equal(t, view.Default(), s.View())
	assert.Equal(t, DefaultMinSpacing, s.MinSpacing())
	assert.True(t, s.SnapToGuides())
	assert.True(t, s.ShowGuidelineMeasurements())
	assert.False(t, s.AutoSpacing())
	assert.Equal(t, document.DefaultLayerVisibility(), s.LayerVisibility())
	_, ok := s.Scale()
	assert.False(t, ok)
	assert.False(t, s.CanUndo())
}

func TestSetScaleScenario(t *testing.T) {
	s := newState(t)
	res, err := s.SetScale(10, 200)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, res.Scale, 1e-12)
	assert.Equal(t, PrecisionHigh, res.Precision)
	assert.Empty(t, res.Advisories)
	assert.False(t, s.CanUndo(), "scale is not undoable")

	tr := addTree(t, s, "NUEVO_3M", 500, 500)
	assert.InDelta(t, 30.0, tr.CanopyRadius(res.Scale), 1e-9)
	i, ok := view.TreeAt(geometry.Pt(529, 500), s.Trees(), res.Scale)
	require.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestScaleRoundTrip(t *testing.T) {
	for _, tc := range []struct{ real, px float64 }{
		{10, 200}, {0.5, 10}, {1000, 12}, {37.3, 999.1}, {0.001, 1000},
	} {
		s := newState(t)
		_, err := s.SetScale(tc.real, tc.px)
		require.NoError(t, err)
		m, err := s.PixelsToMeters(tc.px)
		require.NoError(t, err)
		assert.InDelta(t, tc.real, m, 1e-9*tc.real)
		px, err := s.MetersToPixels(tc.real)
		require.NoError(t, err)
		assert.InDelta(t, tc.px, px, 1e-9*tc.px)
	}
}

func TestSetScaleRejects(t *testing.T) {
	tests := []struct {
		name      string
		real, px  float64
		wantError error
	}{
		{"short line", 10, 9.9, ErrLineTooShort},
		{"zero length", 0, 100, ErrLengthOutOfRange},
		{"huge length", 1001, 100, ErrLengthOutOfRange},
		{"nan", math.NaN(), 100, ErrLengthOutOfRange},
		{"tiny scale", 0.001, 1e6, ErrScaleOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newState(t)
			_, err := s.SetScale(tc.real, tc.px)
			require.ErrorIs(t, err, tc.wantError)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			_, ok := s.Scale()
			assert.False(t, ok)
		})
	}
}

func TestScaleLineFlow(t *testing.T) {
	s := New(Config{})
	assert.ErrorIs(t, s.StartScaling(), ErrNoImage)

	s = newState(t)
	require.NoError(t, s.StartScaling())
	assert.Equal(t, ModeScaling, s.Mode())

	_, err := s.ApplyScaleLine(10)
	assert.ErrorIs(t, err, ErrNoScaleLine)

	s.BeginScaleLine(geometry.Pt(0, 0))
	s.UpdateScaleLine(geometry.Pt(30, 40))
	line, ok := s.ScaleLine()
	require.True(t, ok)
	assert.Equal(t, 50.0, line.Length())

	res, err := s.ApplyScaleLine(5)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.Scale, 1e-12)
	assert.Equal(t, PrecisionMedium, res.Precision)
	assert.Equal(t, ModeNormal, s.Mode())
	_, ok = s.ScaleLine()
	assert.False(t, ok)
}

func TestShortLineAdvisory(t *testing.T) {
	s := newState(t)
	res, err := s.SetScale(1, 20)
	require.NoError(t, err)
	assert.Equal(t, PrecisionLow, res.Precision)
	assert.Contains(t, res.Advisories, AdvisoryShortScaleLine)
	assert.Equal(t, PrecisionLow, s.ScalePrecision())
}

func TestScaleHistoryBounded(t *testing.T) {
	s := newState(t)
	for i := 1; i <= 12; i++ {
		_, err := s.SetScale(float64(i), 100)
		require.NoError(t, err)
	}
	h := s.ScaleHistory()
	require.Len(t, h, maxScaleHistory)
	assert.Equal(t, 12.0, h[0].RealLength, "newest first")
}

func TestPresetsAndUnits(t *testing.T) {
	s := newState(t)
	v, err := s.ApplyPreset("map_1_5000")
	require.NoError(t, err)
	assert.Equal(t, 1.32, v)
	h := s.ScaleHistory()
	require.Len(t, h, 1)
	assert.Equal(t, 100.0, h[0].PixelLength)
	assert.Equal(t, PrecisionMedium, h[0].Precision)

	_, err = s.ApplyPreset("nope")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.Contains(t, PresetNames(), "satellite_high")

	ft, err := ConvertUnits(1, "m", "ft")
	require.NoError(t, err)
	assert.InDelta(t, 3.28084, ft, 1e-5)
	_, err = ConvertUnits(1, "m", "league")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestCalibrateScale(t *testing.T) {
	s := newState(t)
	_, err := s.CalibrateScale([]ScaleReference{{Line: ScaleLine{End: geometry.Pt(100, 0)}, RealLength: 10}})
	assert.ErrorIs(t, err, ErrReferences)

	c, err := s.CalibrateScale([]ScaleReference{
		{Line: ScaleLine{End: geometry.Pt(100, 0)}, RealLength: 10},
		{Line: ScaleLine{End: geometry.Pt(0, 200)}, RealLength: 20},
		{Line: ScaleLine{Start: geometry.Pt(10, 10), End: geometry.Pt(10, 110)}, RealLength: 10.5},
	})
	require.NoError(t, err)
	assert.True(t, c.Applied)
	assert.InDelta(t, 0.10166, c.Scale, 1e-4)
	scale, ok := s.Scale()
	require.True(t, ok)
	assert.Equal(t, c.Scale, scale)

	s = newState(t)
	c, err = s.CalibrateScale([]ScaleReference{
		{Line: ScaleLine{End: geometry.Pt(100, 0)}, RealLength: 10},
		{Line: ScaleLine{End: geometry.Pt(100, 0)}, RealLength: 30},
	})
	assert.ErrorIs(t, err, ErrHighVariation)
	assert.InDelta(t, 50.0, c.CV, 1e-9)
	assert.False(t, c.Applied)
	_, ok = s.Scale()
	assert.False(t, ok)
}

func TestAddTreeValidation(t *testing.T) {
	s := New(Config{})
	s.SetImage(&Image{Width: 100, Height: 100})

	_, err := s.AddTree("PINO_9M", geometry.Pt(10, 10))
	assert.ErrorIs(t, err, ErrUnknownTreeType)

	_, err = s.AddTree("NUEVO_3M", geometry.Pt(150, 50))
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Empty(t, s.Trees())
	assert.False(t, s.CanUndo())

	tr := addTree(t, s, "NUEVO_3M", 100, 0)
	assert.Equal(t, 1.0, tr.Health)
	assert.Equal(t, 0.0, tr.Growth)
	assert.NotEqual(t, tr.ID, addTree(t, s, "NUEVO_3M", 50, 50).ID)
}

func TestAddTreeWithoutImageSkipsBounds(t *testing.T) {
	s := New(Config{})
	_, err := s.AddTree("EXISTENTE_1M", geometry.Pt(-50, 1e6))
	assert.NoError(t, err)
}

func TestAutoSpacing(t *testing.T) {
	s := newState(t)
	_, err := s.SetScale(10, 100) // 0.1 m/px
	require.NoError(t, err)
	first, err := s.AddTree("NUEVO_3M", geometry.Pt(100, 100))
	require.NoError(t, err)
	assert.Empty(t, first.Advisories)

	// spacing off: overlap allowed but flagged
	tight, err := s.AddTree("NUEVO_3M", geometry.Pt(101, 100))
	require.NoError(t, err)
	assert.Equal(t, []Advisory{AdvisoryTightSpacing}, tight.Advisories)
	assert.Len(t, s.Trees(), 2)
	assert.Len(t, s.SpacingConflicts(), 1)

	assert.True(t, s.ToggleAutoSpacing())
	// minimum spacing 5 m = 50 px dominates the 30 px canopy sum
	_, err = s.AddTree("NUEVO_3M", geometry.Pt(100, 149))
	assert.ErrorIs(t, err, ErrTooClose)
	addTree(t, s, "NUEVO_3M", 100, 160)

	require.NoError(t, s.SetMinSpacing(1))
	// canopy sum 15+40 px dominates the 10 px minimum
	_, err = s.AddTree("NUEVO_8M", geometry.Pt(100, 214))
	assert.ErrorIs(t, err, ErrTooClose)

	assert.ErrorIs(t, s.SetMinSpacing(0), ErrInvalidSpacing)
	assert.ErrorIs(t, s.SetMinSpacing(51), ErrInvalidSpacing)
	assert.Equal(t, 1.0, s.MinSpacing())
}

func TestDeleteUndoRedoScenario(t *testing.T) {
	s := newState(t)
	a := addTree(t, s, "NUEVO_3M", 10, 10)
	b := addTree(t, s, "NUEVO_4M", 20, 20)
	c := addTree(t, s, "NUEVO_5M", 30, 30)
	require.NoError(t, s.SelectTree(b.ID))

	require.NoError(t, s.DeleteTree(b.ID))
	assert.Equal(t, []document.Tree{a, c}, s.Trees())
	assert.Equal(t, Selection{}, s.Selection())

	require.NoError(t, s.Undo())
	assert.Equal(t, []document.Tree{a, b, c}, s.Trees())

	require.NoError(t, s.Redo())
	assert.Equal(t, []document.Tree{a, c}, s.Trees())

	assert.ErrorIs(t, s.DeleteTree("missing"), ErrNotFound)
}

func TestUndoRedoInverse(t *testing.T) {
	s := newState(t)
	addTree(t, s, "NUEVO_3M", 10, 10)
	require.NoError(t, s.StartPipeline(document.KindGas))
	_, err := s.AddPipelinePoint(geometry.Pt(0, 0))
	require.NoError(t, err)
	_, err = s.AddPipelinePoint(geometry.Pt(100, 0))
	require.NoError(t, err)
	_, err = s.FinishPipeline()
	require.NoError(t, err)

	before := s.Collections()
	addTree(t, s, "NUEVO_6M", 40, 40)
	after := s.Collections()

	require.NoError(t, s.Undo())
	assert.Equal(t, before, s.Collections())
	require.NoError(t, s.Redo())
	assert.Equal(t, after, s.Collections())

	// history empties out
	for s.CanUndo() {
		require.NoError(t, s.Undo())
	}
	assert.ErrorIs(t, s.Undo(), ErrNothingToUndo)
	assert.Empty(t, s.Trees())
	assert.Empty(t, s.Pipelines())
}

func TestNewCheckpointInvalidatesRedo(t *testing.T) {
	s := newState(t)
	addTree(t, s, "NUEVO_3M", 10, 10)
	require.NoError(t, s.Undo())
	assert.True(t, s.CanRedo())
	addTree(t, s, "NUEVO_3M", 20, 20)
	assert.False(t, s.CanRedo())
	assert.ErrorIs(t, s.Redo(), ErrNothingToRedo)
}

func TestUndoClearsSelection(t *testing.T) {
	s := newState(t)
	tr := addTree(t, s, "NUEVO_3M", 10, 10)
	require.NoError(t, s.SelectTree(tr.ID))
	require.NoError(t, s.Undo())
	assert.Equal(t, SelectNone, s.Selection().Kind)
}

func TestTreeMoveCommit(t *testing.T) {
	s := newState(t)
	tr := addTree(t, s, "NUEVO_3M", 10, 10)
	from := tr.Position()

	require.NoError(t, s.SetTreePosition(tr.ID, geometry.Pt(10.5, 10.5)))
	assert.False(t, s.CommitTreeMove(tr.ID, from), "sub-pixel drags are not recorded")

	require.NoError(t, s.MoveTree(tr.ID, 40, 0))
	assert.True(t, s.CommitTreeMove(tr.ID, from))
	moved, _ := s.Tree(tr.ID)
	assert.Equal(t, 50.5, moved.X)

	require.NoError(t, s.Undo())
	back, _ := s.Tree(tr.ID)
	assert.Equal(t, from, back.Position())

	require.NoError(t, s.Redo())
	again, _ := s.Tree(tr.ID)
	assert.Equal(t, 50.5, again.X)
}

func TestPipelineFlow(t *testing.T) {
	s := newState(t)
	_, err := s.AddPipelinePoint(geometry.Pt(0, 0))
	assert.ErrorIs(t, err, ErrNotDrawing)
	assert.ErrorIs(t, s.StartPipeline("oil"), ErrUnknownPipelineKind)

	require.NoError(t, s.StartPipeline(document.KindWater))
	assert.Equal(t, ModePipeline, s.Mode())
	cur, ok := s.CurrentPipeline()
	require.True(t, ok)
	assert.Equal(t, "Tubería de Agua 1", cur.Name)

	_, err = s.AddPipelinePoint(geometry.Pt(0, 0))
	require.NoError(t, err)
	_, err = s.FinishPipeline()
	assert.ErrorIs(t, err, ErrTooFewPoints)
	assert.Equal(t, ModePipeline, s.Mode())

	for i := 1; i < MaxPipelinePoints; i++ {
		_, err = s.AddPipelinePoint(geometry.Pt(float64(i*10), 0))
		require.NoError(t, err)
	}
	_, err = s.AddPipelinePoint(geometry.Pt(0, 500))
	assert.ErrorIs(t, err, ErrTooManyPoints)

	p, err := s.FinishPipeline()
	require.NoError(t, err)
	assert.Len(t, p.Points, MaxPipelinePoints)
	assert.Equal(t, ModeNormal, s.Mode())
	_, ok = s.CurrentPipeline()
	assert.False(t, ok)

	require.NoError(t, s.StartPipeline(document.KindWater))
	cur, _ = s.CurrentPipeline()
	assert.Equal(t, "Tubería de Agua 2", cur.Name)
}

func TestPipelinePointsSnap(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartGuideline(document.ShapeLine))
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(0, 100)))
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(500, 100)))
	_, err := s.FinishGuideline()
	require.NoError(t, err)

	require.NoError(t, s.StartPipeline(document.KindGas))
	got, err := s.AddPipelinePoint(geometry.Pt(200, 110))
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(200, 100), got)

	s.SetSnapToGuides(false)
	got, err = s.AddPipelinePoint(geometry.Pt(300, 110))
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(300, 110), got)
}

func TestPipelineMoveAndDelete(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartPipeline(document.KindElectric))
	_, _ = s.AddPipelinePoint(geometry.Pt(0, 0))
	_, _ = s.AddPipelinePoint(geometry.Pt(100, 0))
	p, err := s.FinishPipeline()
	require.NoError(t, err)

	require.NoError(t, s.MovePipeline(p.ID, 0, 0.5))
	assert.False(t, s.CommitPipelineMove(p.ID, p.Points))
	require.NoError(t, s.MovePipeline(p.ID, 0, 20))
	assert.True(t, s.CommitPipelineMove(p.ID, p.Points))

	require.NoError(t, s.SelectPipeline(p.ID))
	deleted, err := s.DeleteSelected()
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, s.Pipelines())

	require.NoError(t, s.Undo())
	got, ok := s.Pipeline(p.ID)
	require.True(t, ok)
	assert.Equal(t, 20.5, got.Points[0].Y)

	require.NoError(t, s.Undo())
	got, _ = s.Pipeline(p.ID)
	assert.Equal(t, p.Points, got.Points)
}

func TestClearPipelines(t *testing.T) {
	s := newState(t)
	assert.ErrorIs(t, s.ClearPipelines(), ErrNothingToClear)

	require.NoError(t, s.StartPipeline(document.KindGas))
	require.NoError(t, s.ClearPipelines())
	assert.Equal(t, ModeNormal, s.Mode())
	assert.False(t, s.CanUndo())
}

func TestGuidelineSquare(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartGuideline(document.ShapeSquare))
	assert.Equal(t, GuideSquare, s.GuidelineMode())
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(0, 0)))
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(10, 0)))

	g, err := s.FinishGuideline()
	require.NoError(t, err)
	assert.Equal(t, []geometry.Point{
		geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(10, 10), geometry.Pt(0, 10), geometry.Pt(0, 0),
	}, g.Points)
	assert.True(t, g.Visible)
	assert.Equal(t, GuideNone, s.GuidelineMode())

	require.NoError(t, s.Undo())
	assert.Empty(t, s.Guidelines())
}

func TestGuidelineTriangle(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartGuideline(document.ShapeTriangle))
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(0, 0)))
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(10, 0)))
	g, err := s.FinishGuideline()
	require.NoError(t, err)
	require.Len(t, g.Points, 4)
	assert.Equal(t, g.Points[0], g.Points[3])
	assert.InDelta(t, 10.0, geometry.Distance(g.Points[1], g.Points[2]), 1e-9)
	assert.InDelta(t, 10.0, geometry.Distance(g.Points[2], g.Points[0]), 1e-9)
}

func TestGuidelineTooFewPointsStillEnds(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartGuideline(document.ShapeLine))
	require.NoError(t, s.AddGuidelinePoint(geometry.Pt(5, 5)))
	_, err := s.FinishGuideline()
	assert.ErrorIs(t, err, ErrTooFewPoints)
	assert.Equal(t, GuideNone, s.GuidelineMode())
	_, ok := s.CurrentGuideline()
	assert.False(t, ok)
	assert.False(t, s.CanUndo())
}

func TestClearGuidelinesAndVisibility(t *testing.T) {
	s := newState(t)
	assert.ErrorIs(t, s.ClearGuidelines(), ErrNothingToClear)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.StartGuideline(document.ShapeLine))
		require.NoError(t, s.AddGuidelinePoint(geometry.Pt(0, float64(i*100))))
		require.NoError(t, s.AddGuidelinePoint(geometry.Pt(100, float64(i*100))))
		_, err := s.FinishGuideline()
		require.NoError(t, err)
	}
	assert.False(t, s.ToggleGuidelinesVisibility())
	assert.True(t, s.ToggleGuidelinesVisibility())

	before := s.Guidelines()
	require.NoError(t, s.ClearGuidelines())
	assert.Empty(t, s.Guidelines())
	require.NoError(t, s.Undo())
	assert.Equal(t, before, s.Guidelines())

	require.NoError(t, s.DeleteGuideline(before[0].ID))
	assert.Len(t, s.Guidelines(), 1)
	require.NoError(t, s.Undo())
	assert.Equal(t, before, s.Guidelines())
}

func TestPolygonFlow(t *testing.T) {
	s := newState(t)
	assert.ErrorIs(t, s.AddPolygonPoint(geometry.Pt(0, 0)), ErrNotDrawing)

	require.NoError(t, s.StartPolygon())
	for _, p := range square(0, 0, 4) {
		require.NoError(t, s.AddPolygonPoint(p))
	}
	res, err := s.FinishPolygon()
	require.NoError(t, err)
	assert.Nil(t, res.AreaM2, "no scale, no area")
	assert.Equal(t, ModeNormal, s.Mode())

	_, err = s.SetScale(10, 10)
	require.NoError(t, err)
	area, ok := s.PolygonAreaMeters()
	require.True(t, ok)
	assert.Equal(t, 16.0, area)
	per, ok := s.PolygonPerimeterMeters()
	require.True(t, ok)
	assert.Equal(t, 16.0, per)

	require.NoError(t, s.ClearPolygon())
	assert.ErrorIs(t, s.ClearPolygon(), ErrNothingToClear)
}

func TestFinishPolygonNeedsThree(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartPolygon())
	require.NoError(t, s.AddPolygonPoint(geometry.Pt(0, 0)))
	require.NoError(t, s.AddPolygonPoint(geometry.Pt(10, 0)))
	_, err := s.FinishPolygon()
	assert.ErrorIs(t, err, ErrTooFewPoints)
	assert.Equal(t, ModePolygon, s.Mode())
}

func TestPolygonAdvisories(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartPolygon())
	for _, p := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(100, 100), geometry.Pt(100, 0), geometry.Pt(0, 100)} {
		require.NoError(t, s.AddPolygonPoint(p))
	}
	res, err := s.FinishPolygon()
	require.NoError(t, err)
	assert.Contains(t, res.Advisories, AdvisorySelfIntersecting)

	a, ok := s.PolygonAnalysis()
	require.True(t, ok)
	assert.True(t, a.Intersecting)
	assert.True(t, a.Validation.Valid)
}

func TestSimplifyPolygon(t *testing.T) {
	s := newState(t)
	pts := []geometry.Point{
		geometry.Pt(0, 0), geometry.Pt(50, 1), geometry.Pt(100, 0),
		geometry.Pt(100, 100), geometry.Pt(0, 100),
	}
	require.NoError(t, s.SetPolygon(pts))
	assert.Equal(t, 4, s.SimplifyPolygon(SimplifyTolerancePx))
	assert.NotContains(t, s.Polygon(), geometry.Pt(50, 1))
}

func TestSuggestTreeDistribution(t *testing.T) {
	sug, ok := SuggestTreeDistribution(10000, 2)
	require.True(t, ok)
	assert.Equal(t, 557, sug.MaxTrees)
	assert.Equal(t, 5.0, sug.OptimalSpacing)
	_, ok = SuggestTreeDistribution(0, 2)
	assert.False(t, ok)
}

func TestQueriesWithoutScale(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.SetPolygon(square(0, 0, 10)))
	_, ok := s.PolygonAreaMeters()
	assert.False(t, ok)
	_, ok = s.TotalPipelineLength()
	assert.False(t, ok)
	_, ok = s.SpacingStats()
	assert.False(t, ok)
	_, ok = s.Density()
	assert.False(t, ok)
	_, err := s.PixelsToMeters(10)
	assert.ErrorIs(t, err, ErrScaleRequired)
	assert.Nil(t, s.Statistics().AreaM2)
}

func TestCountsAndLengths(t *testing.T) {
	s := newState(t)
	_, err := s.SetScale(1, 10)
	require.NoError(t, err)

	addTree(t, s, "NUEVO_3M", 10, 10)
	addTree(t, s, "EXISTENTE_2M", 20, 20)
	addTree(t, s, "EXISTENTE_5M", 30, 30)
	assert.Equal(t, map[document.TreeCategory]int{document.CategoryNew: 1, document.CategoryExisting: 2}, s.TreeCountsByCategory())

	require.NoError(t, s.StartPipeline(document.KindGas))
	_, _ = s.AddPipelinePoint(geometry.Pt(0, 0))
	_, _ = s.AddPipelinePoint(geometry.Pt(30, 40))
	_, err = s.FinishPipeline()
	require.NoError(t, err)

	total, ok := s.TotalPipelineLength()
	require.True(t, ok)
	assert.InDelta(t, 5.0, total, 1e-9)
	counts := s.PipelineCountsByKind()
	assert.Equal(t, 1, counts[document.KindGas])
	assert.Equal(t, 0, counts[document.KindWater])
}

func TestAnalysis(t *testing.T) {
	s := newState(t)
	assert.Equal(t, "Insuficientes datos", s.Distribution().Description)

	_, err := s.SetScale(10, 10)
	require.NoError(t, err)
	require.NoError(t, s.SetPolygon(square(0, 0, 100)))

	for _, p := range []geometry.Point{geometry.Pt(10, 10), geometry.Pt(90, 10), geometry.Pt(10, 90), geometry.Pt(90, 90)} {
		addTree(t, s, "NUEVO_3M", p.X, p.Y)
	}
	d := s.Distribution()
	assert.Equal(t, 100.0, d.Uniformity)
	assert.Equal(t, "Muy uniforme", d.Description)

	sp, ok := s.SpacingStats()
	require.True(t, ok)
	assert.Equal(t, 80.0, sp.Min)
	assert.InDelta(t, 80*math.Sqrt2, sp.Max, 1e-9)

	h := s.HealthSummary()
	assert.Equal(t, 100.0, h.Average)
	assert.Equal(t, 4, h.Healthy)

	assert.InDelta(t, 4*math.Pi*1.5*1.5, s.CanopyCoverage(), 1e-9)

	dens, ok := s.Density()
	require.True(t, ok)
	assert.Equal(t, 4.0, dens.TreesPerHectare)
	assert.Equal(t, "Baja", dens.Description)

	assert.Len(t, s.TreesInPolygon(), 4)
	assert.Empty(t, s.TreesOutsidePolygon())

	nn, ok := s.NearestNeighbor(0)
	require.True(t, ok)
	assert.Equal(t, 80.0, nn)

	stats := s.Statistics()
	assert.Equal(t, 4, stats.TreeCount)
	require.NotNil(t, stats.AreaM2)
	assert.Equal(t, 10000.0, *stats.AreaM2)
}

func TestUnevenDistribution(t *testing.T) {
	s := newState(t)
	for i := 0; i < 7; i++ {
		addTree(t, s, "NUEVO_3M", float64(i), float64(i))
	}
	addTree(t, s, "NUEVO_3M", 100, 100)
	d := s.Distribution()
	assert.Less(t, d.Uniformity, 20.0)
	assert.Equal(t, "Muy desigual", d.Description)
}

func TestSpacingConflictsAndOptimize(t *testing.T) {
	s := newState(t)
	_, _, err := s.OptimizeSpacing()
	assert.ErrorIs(t, err, ErrScaleRequired)

	_, err = s.SetScale(10, 100)
	require.NoError(t, err)
	addTree(t, s, "NUEVO_3M", 100, 100)
	second := addTree(t, s, "NUEVO_3M", 120, 100)

	conflicts := s.SpacingConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, 50.0, conflicts[0].Required)

	found, resolved, err := s.OptimizeSpacing()
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Equal(t, 1, resolved)
	moved, _ := s.Tree(second.ID)
	assert.InDelta(t, 131.0, moved.X, 1e-9)
	assert.InDelta(t, 100.0, moved.Y, 1e-9)

	require.NoError(t, s.Undo())
	back, _ := s.Tree(second.ID)
	assert.Equal(t, 120.0, back.X)
}

func TestTreeEdits(t *testing.T) {
	s := newState(t)
	tr := addTree(t, s, "NUEVO_3M", 10, 10)
	require.NoError(t, s.SetTreeHealth(tr.ID, 1.7))
	require.NoError(t, s.SetTreeGrowth(tr.ID, -1))
	require.NoError(t, s.SetTreeNotes(tr.ID, "riego semanal"))
	got, _ := s.Tree(tr.ID)
	assert.Equal(t, 1.0, got.Health)
	assert.Equal(t, 0.0, got.Growth)
	assert.Equal(t, "riego semanal", got.Notes)
	assert.ErrorIs(t, s.SetTreeHealth("x", 1), ErrNotFound)
}

func TestPlantPattern(t *testing.T) {
	s := newState(t)
	_, err := s.PlantPattern(PatternGrid, "NUEVO_3M", 10)
	assert.ErrorIs(t, err, ErrScaleRequired)

	_, err = s.SetScale(10, 10)
	require.NoError(t, err)
	_, err = s.PlantPattern(PatternGrid, "NUEVO_3M", 10)
	assert.ErrorIs(t, err, ErrPolygonRequired)

	poly := square(100, 100, 200)
	require.NoError(t, s.SetPolygon(poly))
	_, err = s.PlantPattern("spiral", "NUEVO_3M", 10)
	assert.ErrorIs(t, err, ErrUnknownPattern)
	_, err = s.PlantPattern(PatternGrid, "NUEVO_3M", 0.001)
	assert.ErrorIs(t, err, ErrInvalidSpacing)

	for _, p := range Patterns {
		t.Run(string(p), func(t *testing.T) {
			before := len(s.Trees())
			planted, err := s.PlantPattern(p, "NUEVO_3M", 20)
			require.NoError(t, err)
			require.NotEmpty(t, planted)
			for _, tr := range planted {
				assert.True(t, geometry.PointInPolygon(tr.Position(), poly))
			}
			assert.Len(t, s.Trees(), before+len(planted))

			require.NoError(t, s.Undo())
			assert.Len(t, s.Trees(), before, "one undo removes the batch")
		})
	}
}

func TestRandomPatternKeepsSpacing(t *testing.T) {
	s := newState(t)
	_, err := s.SetScale(10, 10)
	require.NoError(t, err)
	require.NoError(t, s.SetPolygon(square(0, 0, 500)))

	planted, err := s.PlantPattern(PatternRandom, "NUEVO_3M", 30)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(planted), randomTarget)
	for i := range planted {
		for j := i + 1; j < len(planted); j++ {
			assert.GreaterOrEqual(t, geometry.Distance(planted[i].Position(), planted[j].Position()), 30.0)
		}
	}
}

func TestCancel(t *testing.T) {
	s := newState(t)
	require.NoError(t, s.StartPolygon())
	require.NoError(t, s.AddPolygonPoint(geometry.Pt(1, 1)))
	require.NoError(t, s.StartGuideline(document.ShapeLine))
	s.Cancel()
	assert.Equal(t, ModeNormal, s.Mode())
	assert.Equal(t, GuideNone, s.GuidelineMode())
	assert.Empty(t, s.Polygon())

	require.NoError(t, s.SetPolygon(square(0, 0, 10)))
	require.NoError(t, s.StartPipeline(document.KindGas))
	s.Cancel()
	assert.Len(t, s.Polygon(), 4, "a finished boundary survives cancel outside polygon mode")
	_, ok := s.CurrentPipeline()
	assert.False(t, ok)
}

func TestResetAndEvents(t *testing.T) {
	s := newState(t)
	var events []EventType
	s.On(EventReset, func(interface{}) { events = append(events, EventReset) })
	s.On(EventContentChanged, func(interface{}) { events = append(events, EventContentChanged) })

	addTree(t, s, "NUEVO_3M", 10, 10)
	_, err := s.SetScale(1, 10)
	require.NoError(t, err)
	s.SetView(view.View{Zoom: 3, PanX: 5})
	require.NoError(t, s.SetMinSpacing(2))
	s.ToggleAutoSpacing()
	require.NotEqual(t, PrecisionUnknown, s.ScalePrecision())

	s.Reset()
	assert.True(t, s.AutoSpacing(), "spacing settings survive a reset")
	assert.Equal(t, 2.0, s.MinSpacing())
	assert.Empty(t, s.Trees())
	assert.Nil(t, s.Image())
	assert.Equal(t, view.Default(), s.View())
	assert.False(t, s.CanUndo())
	_, ok := s.Scale()
	assert.False(t, ok)
	assert.Empty(t, s.ScaleHistory())
	assert.Equal(t, PrecisionUnknown, s.ScalePrecision())
	assert.Equal(t, []EventType{EventContentChanged, EventReset}, events)
	assert.Equal(t, "reset", EventReset.String())
}

func TestProjectDataRoundTrip(t *testing.T) {
	s := newState(t)
	s.image.Data = "data:image/png;base64,AAAA"
	_, err := s.SetScale(10, 200)
	require.NoError(t, err)
	require.NoError(t, s.SetPolygon(square(0, 0, 100)))
	addTree(t, s, "NUEVO_3M", 10, 10)
	s.SetName("Finca Norte")

	data := s.ProjectData()
	assert.Equal(t, document.CurrentVersion, data.Version)
	assert.Equal(t, "data:image/png;base64,AAAA", data.BackgroundImageData)
	assert.Equal(t, fixedNow, data.Timestamp)

	other := newState(t)
	addTree(t, other, "NUEVO_8M", 1, 1)
	require.NoError(t, other.StartPipeline(document.KindGas))
	other.LoadProjectData(data, &Image{Width: 1000, Height: 1000})

	assert.Equal(t, "Finca Norte", other.Name())
	assert.Equal(t, s.Collections(), other.Collections())
	assert.Equal(t, s.Polygon(), other.Polygon())
	scale, ok := other.Scale()
	require.True(t, ok)
	assert.InDelta(t, 0.05, scale, 1e-12)
	assert.False(t, other.CanUndo(), "a loaded project has no history")
	assert.Equal(t, ModeNormal, other.Mode())
	_, ok = other.CurrentPipeline()
	assert.False(t, ok)

	data.Name = ""
	data.Zoom = 0
	other.LoadProjectData(data, nil)
	assert.Equal(t, LoadedProjectName, other.Name())
	assert.Equal(t, 1.0, other.View().Zoom)
}
