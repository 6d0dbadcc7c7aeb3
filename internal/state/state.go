// Package state owns a project being edited: entity collections, scale,
// view, tool mode, selection and undo history. A State is not safe for
// concurrent use; hosts drive it from one goroutine.
package state

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/history"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// Mode is the active tool.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeScaling  Mode = "scaling"
	ModePolygon  Mode = "polygon"
	ModePipeline Mode = "pipeline"
)

// GuidelineMode runs alongside Mode while a guideline is being drawn.
type GuidelineMode string

const (
	GuideNone     GuidelineMode = "normal"
	GuideLine     GuidelineMode = GuidelineMode(document.ShapeLine)
	GuideTriangle GuidelineMode = GuidelineMode(document.ShapeTriangle)
	GuideSquare   GuidelineMode = GuidelineMode(document.ShapeSquare)
)

// Image is the loaded background image. Only its size matters to editing;
// Data is the encoded image carried into saved projects.
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"-"`
}

func (img *Image) Contains(p geometry.Point) bool {
	return p.X >= 0 && p.X <= float64(img.Width) && p.Y >= 0 && p.Y <= float64(img.Height)
}

// ScaleLine is the reference segment drawn in scaling mode.
type ScaleLine struct {
	Start geometry.Point `json:"start"`
	End   geometry.Point `json:"end"`
}

func (l ScaleLine) Length() float64 { return geometry.Distance(l.Start, l.End) }

const DefaultMinSpacing = 5.0

type Config struct {
	// History defaults to a history.Stack bounded by MaxUndo.
	History history.Store
	MaxUndo int
	// MinSpacing is the auto-spacing distance in meters.
	MinSpacing float64
	Logger     *slog.Logger
	// Rand drives the random planting patterns.
	Rand *rand.Rand
	Now  func() time.Time
}

type State struct {
	log     *slog.Logger
	history history.Store
	rng     *rand.Rand
	now     func() time.Time

	name  string
	image *Image

	scale        *float64
	scaleLine    *ScaleLine
	scaleHistory []ScaleRecord

	view view.View

	mode      Mode
	guideMode GuidelineMode

	polygon    []geometry.Point
	trees      []document.Tree
	pipelines  []document.Pipeline
	guidelines []document.Guideline

	currentPipeline  *document.Pipeline
	currentGuideline *document.Guideline

	selectedTree     document.ID
	selectedPipeline document.ID

	layers           document.LayerVisibility
	snapToGuides     bool
	showMeasurements bool
	autoSpacing      bool
	minSpacing       float64

	listeners map[EventType][]Listener
}

func New(cfg Config) *State {
	s := &State{
		log:        cfg.Logger,
		history:    cfg.History,
		rng:        cfg.Rand,
		now:        cfg.Now,
		minSpacing: cfg.MinSpacing,
		listeners:  make(map[EventType][]Listener),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.history == nil {
		s.history = history.NewStack(cfg.MaxUndo)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.minSpacing <= 0 || s.minSpacing > MaxMinSpacing {
		s.minSpacing = DefaultMinSpacing
	}
	s.resetFields()
	return s
}

func (s *State) resetFields() {
	s.name = document.DefaultProjectName
	s.image = nil
	s.scale = nil
	s.scaleLine = nil
	s.scaleHistory = nil
	s.view = view.Default()
	s.mode = ModeNormal
	s.guideMode = GuideNone
	s.polygon = []geometry.Point{}
	s.trees = []document.Tree{}
	s.pipelines = []document.Pipeline{}
	s.guidelines = []document.Guideline{}
	s.currentPipeline = nil
	s.currentGuideline = nil
	s.selectedTree = ""
	s.selectedPipeline = ""
	s.layers = document.DefaultLayerVisibility()
	s.snapToGuides = true
	s.showMeasurements = true
}

// Reset returns every collection, the scale and its history, the view and
// the modes to their defaults and wipes both undo stacks. Auto-spacing and
// the minimum spacing are editor settings and survive.
func (s *State) Reset() {
	s.resetFields()
	s.history.Reset()
	s.emit(EventReset, nil)
}

// collections returns deep copies of the undoable lists.
func (s *State) collections() document.Collections {
	return document.Collections{Trees: s.trees, Pipelines: s.pipelines, Guidelines: s.guidelines}.Clone()
}

func (s *State) checkpoint(kind history.Kind, payload history.Payload) {
	s.history.Checkpoint(kind, s.collections(), payload)
	s.emit(EventHistoryChanged, kind)
}

// Accessors. Slices are copies.

func (s *State) Name() string { return s.name }

func (s *State) SetName(name string) {
	if name == "" {
		name = document.DefaultProjectName
	}
	s.name = name
}

func (s *State) Image() *Image { return s.image }

// LargeImagePx is the side length above which an image is flagged.
const LargeImagePx = 8192

// SetImage installs a decoded background image. The host fits the view.
func (s *State) SetImage(img *Image) []Advisory {
	s.image = img
	s.emit(EventImageChanged, img)
	if img != nil && (img.Width > LargeImagePx || img.Height > LargeImagePx) {
		return []Advisory{AdvisoryLargeImage}
	}
	return nil
}

func (s *State) Scale() (float64, bool) {
	if s.scale == nil {
		return 0, false
	}
	return *s.scale, true
}

// scaleOrZero returns the scale, 0 when undefined.
func (s *State) scaleOrZero() float64 {
	v, _ := s.Scale()
	return v
}

func (s *State) View() view.View { return s.view }

func (s *State) SetView(v view.View) {
	v.Zoom = view.ClampZoom(v.Zoom)
	s.view = v
	s.emit(EventViewChanged, nil)
}

func (s *State) Mode() Mode                   { return s.mode }
func (s *State) GuidelineMode() GuidelineMode { return s.guideMode }

func (s *State) Polygon() []geometry.Point { return geometry.ClonePoints(s.polygon) }

func (s *State) Trees() []document.Tree {
	out := make([]document.Tree, len(s.trees))
	copy(out, s.trees)
	return out
}

func (s *State) Pipelines() []document.Pipeline {
	return document.Collections{Pipelines: s.pipelines}.Clone().Pipelines
}

func (s *State) Guidelines() []document.Guideline { return document.CloneGuidelines(s.guidelines) }

// Collections returns deep copies of trees, pipelines and guidelines.
func (s *State) Collections() document.Collections { return s.collections() }

func (s *State) CurrentPipeline() (document.Pipeline, bool) {
	if s.currentPipeline == nil {
		return document.Pipeline{}, false
	}
	return s.currentPipeline.Clone(), true
}

func (s *State) CurrentGuideline() (document.Guideline, bool) {
	if s.currentGuideline == nil {
		return document.Guideline{}, false
	}
	return s.currentGuideline.Clone(), true
}

func (s *State) LayerVisibility() document.LayerVisibility { return s.layers }

func (s *State) SetLayerVisibility(lv document.LayerVisibility) {
	s.layers = lv
	s.emit(EventViewChanged, nil)
}

func (s *State) SnapToGuides() bool { return s.snapToGuides }

func (s *State) SetSnapToGuides(on bool) { s.snapToGuides = on }

func (s *State) ShowGuidelineMeasurements() bool { return s.showMeasurements }

func (s *State) SetShowGuidelineMeasurements(on bool) {
	s.showMeasurements = on
	s.emit(EventViewChanged, nil)
}

func (s *State) CanUndo() bool { return s.history.CanUndo() }
func (s *State) CanRedo() bool { return s.history.CanRedo() }

// Snap applies guideline snapping with the current view and settings.
func (s *State) Snap(p geometry.Point) geometry.Point {
	return view.SnapToGuidelines(p, s.guidelines, s.view.Zoom, s.snapToGuides)
}

// HasContent reports whether there is anything a reset would lose.
func (s *State) HasContent() bool {
	return len(s.trees) > 0 || len(s.pipelines) > 0 || len(s.polygon) > 0 || s.image != nil
}

func (s *State) treeIndex(id document.ID) int {
	for i := range s.trees {
		if s.trees[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) pipelineIndex(id document.ID) int {
	for i := range s.pipelines {
		if s.pipelines[i].ID == id {
			return i
		}
	}
	return -1
}

// Cancel abandons whatever is being drawn: the pipeline, guideline or
// reference line in progress and, in polygon mode, the unfinished boundary.
// The selection is cleared and both modes return to normal.
func (s *State) Cancel() {
	if s.mode == ModePolygon {
		s.polygon = []geometry.Point{}
		s.emit(EventPolygonChanged, nil)
	}
	s.currentPipeline = nil
	s.scaleLine = nil
	s.CancelGuideline()
	s.ClearSelection()
	s.setMode(ModeNormal)
}
