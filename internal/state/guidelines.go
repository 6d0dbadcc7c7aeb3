package state

import (
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/history"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

// StartGuideline begins drawing a guideline. Guideline drawing runs beside
// the main mode rather than replacing it.
func (s *State) StartGuideline(shape document.GuidelineShape) error {
	const op = "start guideline"
	if s.image == nil {
		return invalid(op, ErrNoImage, "")
	}
	switch shape {
	case document.ShapeLine, document.ShapeTriangle, document.ShapeSquare:
	default:
		return invalid(op, ErrUnknownShape, "%q", shape)
	}
	s.currentGuideline = &document.Guideline{
		ID:      document.ID(typeid.NewGuidelineID()),
		Shape:   shape,
		Points:  []geometry.Point{},
		Visible: true,
	}
	s.guideMode = GuidelineMode(shape)
	s.emit(EventModeChanged, s.guideMode)
	return nil
}

// AddGuidelinePoint appends p as is. Guideline points are never snapped.
func (s *State) AddGuidelinePoint(p geometry.Point) error {
	if s.currentGuideline == nil {
		return invalid("add guideline point", ErrNotDrawing, "")
	}
	s.currentGuideline.Points = append(s.currentGuideline.Points, p)
	return nil
}

// FinishGuideline commits the guideline being drawn. Triangles and squares
// are derived from their first two points. Guideline drawing ends whether
// or not the guideline was valid.
func (s *State) FinishGuideline() (document.Guideline, error) {
	const op = "finish guideline"
	g := s.currentGuideline
	if g == nil {
		return document.Guideline{}, invalid(op, ErrNotDrawing, "")
	}
	s.currentGuideline = nil
	s.guideMode = GuideNone
	s.emit(EventModeChanged, s.guideMode)

	if len(g.Points) < 2 {
		return document.Guideline{}, invalid(op, ErrTooFewPoints, "need 2, have %d", len(g.Points))
	}
	switch g.Shape {
	case document.ShapeTriangle:
		g.Points = geometry.TriangleRing(g.Points[0], g.Points[1])
	case document.ShapeSquare:
		g.Points = geometry.SquareRing(g.Points[0], g.Points[1])
	}

	s.checkpoint(history.KindAddGuideline, history.Payload{Count: 1})
	s.guidelines = append(s.guidelines, g.Clone())
	s.emit(EventContentChanged, *g)
	return g.Clone(), nil
}

// CancelGuideline drops the guideline being drawn.
func (s *State) CancelGuideline() {
	s.currentGuideline = nil
	if s.guideMode != GuideNone {
		s.guideMode = GuideNone
		s.emit(EventModeChanged, s.guideMode)
	}
}

// ClearGuidelines removes every guideline and cancels the one being drawn.
func (s *State) ClearGuidelines() error {
	if len(s.guidelines) == 0 && s.currentGuideline == nil {
		return invalid("clear guidelines", ErrNothingToClear, "")
	}
	if len(s.guidelines) > 0 {
		s.checkpoint(history.KindClearGuidelines, history.Payload{Guidelines: document.CloneGuidelines(s.guidelines)})
	}
	s.guidelines = []document.Guideline{}
	s.CancelGuideline()
	s.emit(EventContentChanged, nil)
	return nil
}

func (s *State) DeleteGuideline(id document.ID) error {
	for i, g := range s.guidelines {
		if g.ID != id {
			continue
		}
		removed := g.Clone()
		s.checkpoint(history.KindDeleteGuideline, history.Payload{Index: i, Guideline: &removed})
		s.guidelines = append(s.guidelines[:i:i], s.guidelines[i+1:]...)
		s.emit(EventContentChanged, removed)
		return nil
	}
	return invalid("delete guideline", ErrNotFound, "%s", id)
}

// ToggleGuidelinesVisibility shows every guideline unless all are already
// visible, in which case it hides them. It returns the new visibility.
func (s *State) ToggleGuidelinesVisibility() bool {
	visible := false
	for _, g := range s.guidelines {
		if !g.Visible {
			visible = true
			break
		}
	}
	for i := range s.guidelines {
		s.guidelines[i].Visible = visible
	}
	s.emit(EventViewChanged, nil)
	return visible
}

func (s *State) ToggleSnapToGuides() bool {
	s.snapToGuides = !s.snapToGuides
	return s.snapToGuides
}

func (s *State) ToggleGuidelineMeasurements() bool {
	s.SetShowGuidelineMeasurements(!s.showMeasurements)
	return s.showMeasurements
}
