package state

import (
	"fmt"
	"math"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/history"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

const MaxPipelinePoints = 50

// StartPipeline begins drawing a pipeline of the given kind.
func (s *State) StartPipeline(kind document.PipelineKind) error {
	const op = "start pipeline"
	if s.image == nil {
		return invalid(op, ErrNoImage, "")
	}
	style, ok := document.StyleFor(kind)
	if !ok {
		return invalid(op, ErrUnknownPipelineKind, "%q", kind)
	}
	n := 0
	for _, p := range s.pipelines {
		if p.Kind == kind {
			n++
		}
	}
	s.currentPipeline = &document.Pipeline{
		ID:     document.ID(typeid.NewPipelineID()),
		Kind:   kind,
		Name:   fmt.Sprintf("%s %d", style.Name, n+1),
		Points: []geometry.Point{},
	}
	s.setMode(ModePipeline)
	return nil
}

// AddPipelinePoint appends p, snapped to guidelines, to the pipeline being
// drawn and returns the stored point.
func (s *State) AddPipelinePoint(p geometry.Point) (geometry.Point, error) {
	const op = "add pipeline point"
	if s.currentPipeline == nil {
		return p, invalid(op, ErrNotDrawing, "")
	}
	if len(s.currentPipeline.Points) >= MaxPipelinePoints {
		return p, invalid(op, ErrTooManyPoints, "maximum %d", MaxPipelinePoints)
	}
	p = s.Snap(p)
	s.currentPipeline.Points = append(s.currentPipeline.Points, p)
	return p, nil
}

// FinishPipeline commits the pipeline being drawn.
func (s *State) FinishPipeline() (document.Pipeline, error) {
	const op = "finish pipeline"
	if s.currentPipeline == nil {
		return document.Pipeline{}, invalid(op, ErrNotDrawing, "")
	}
	if len(s.currentPipeline.Points) < 2 {
		return document.Pipeline{}, invalid(op, ErrTooFewPoints, "need 2, have %d", len(s.currentPipeline.Points))
	}
	s.checkpoint(history.KindAddPipeline, history.Payload{Count: 1})
	p := s.currentPipeline.Clone()
	s.pipelines = append(s.pipelines, p.Clone())
	s.currentPipeline = nil
	s.setMode(ModeNormal)
	s.log.Debug("pipeline added", "id", p.ID, "kind", p.Kind, "points", len(p.Points))
	s.emit(EventContentChanged, p)
	return p, nil
}

// CancelPipeline drops the pipeline being drawn.
func (s *State) CancelPipeline() {
	s.currentPipeline = nil
	if s.mode == ModePipeline {
		s.setMode(ModeNormal)
	}
}

// ClearPipelines removes every pipeline. It is a bulk reset and is not
// recorded in the undo history.
func (s *State) ClearPipelines() error {
	if len(s.pipelines) == 0 && s.currentPipeline == nil {
		return invalid("clear pipelines", ErrNothingToClear, "")
	}
	s.pipelines = []document.Pipeline{}
	s.currentPipeline = nil
	s.selectedPipeline = ""
	if s.mode == ModePipeline {
		s.setMode(ModeNormal)
	}
	s.emit(EventContentChanged, nil)
	return nil
}

func (s *State) DeletePipeline(id document.ID) error {
	i := s.pipelineIndex(id)
	if i < 0 {
		return invalid("delete pipeline", ErrNotFound, "%s", id)
	}
	removed := s.pipelines[i].Clone()
	s.checkpoint(history.KindDeletePipeline, history.Payload{Index: i, Pipeline: &removed})
	s.pipelines = append(s.pipelines[:i:i], s.pipelines[i+1:]...)
	s.ClearSelection()
	s.emit(EventContentChanged, removed)
	return nil
}

func (s *State) Pipeline(id document.ID) (document.Pipeline, bool) {
	if i := s.pipelineIndex(id); i >= 0 {
		return s.pipelines[i].Clone(), true
	}
	return document.Pipeline{}, false
}

// MovePipeline translates every point of a pipeline without recording
// history.
func (s *State) MovePipeline(id document.ID, dx, dy float64) error {
	i := s.pipelineIndex(id)
	if i < 0 {
		return invalid("move pipeline", ErrNotFound, "%s", id)
	}
	s.pipelines[i].Points = geometry.Translate(s.pipelines[i].Points, dx, dy)
	s.emit(EventContentChanged, nil)
	return nil
}

// CommitPipelineMove records a MOVE_PIPELINE checkpoint when any point moved
// more than a pixel since from.
func (s *State) CommitPipelineMove(id document.ID, from []geometry.Point) bool {
	i := s.pipelineIndex(id)
	if i < 0 || len(from) != len(s.pipelines[i].Points) {
		return false
	}
	moved := false
	for j, p := range s.pipelines[i].Points {
		if math.Abs(p.X-from[j].X) > moveThreshold || math.Abs(p.Y-from[j].Y) > moveThreshold {
			moved = true
			break
		}
	}
	if !moved {
		return false
	}
	snap := s.collections()
	snap.Pipelines[i].Points = geometry.ClonePoints(from)
	s.history.Checkpoint(history.KindMovePipeline, snap, history.Payload{ID: id, FromPoints: geometry.ClonePoints(from)})
	s.emit(EventHistoryChanged, history.KindMovePipeline)
	return true
}
