package tool

import (
	"fmt"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// PointerDown starts a drag. In scaling mode it anchors the reference line
// unless one is already drawn. In normal mode it grabs the tree or pipeline
// under the pointer, or starts panning over empty space.
func (m *Machine) PointerDown(p geometry.Point) {
	s := m.state
	w := m.world(p)
	m.last, m.cursor = p, w

	switch s.Mode() {
	case state.ModeScaling:
		if _, ok := s.ScaleLine(); !ok {
			s.BeginScaleLine(w)
			m.drag = dragScale
		}
	case state.ModeNormal:
		if s.GuidelineMode() != state.GuideNone {
			return
		}
		if t, ok := m.treeAt(w); ok {
			_ = s.SelectTree(t.ID)
			m.drag, m.dragID, m.treeFrom = dragTree, t.ID, t.Position()
			return
		}
		if pl, ok := m.pipelineAt(w); ok {
			_ = s.SelectPipeline(pl.ID)
			m.drag, m.dragID, m.pipelineFrom = dragPipeline, pl.ID, pl.Points
			return
		}
		s.ClearSelection()
		v := s.View()
		m.drag = dragPan
		m.panAnchor = geometry.Pt(p.X-v.PanX, p.Y-v.PanY)
	}
}

// PointerMove updates the active drag, or the preview segment when no drag
// is active. Dragged trees follow the cursor through guideline snapping;
// dragged pipelines move by the pointer delta and are not snapped.
func (m *Machine) PointerMove(p geometry.Point) {
	s := m.state
	w := m.world(p)
	m.cursor = w

	switch m.drag {
	case dragNone:
		m.updatePreview(w)
	case dragScale:
		s.UpdateScaleLine(w)
	case dragTree:
		_ = s.SetTreePosition(m.dragID, s.Snap(w))
	case dragPipeline:
		z := s.View().Zoom
		_ = s.MovePipeline(m.dragID, (p.X-m.last.X)/z, (p.Y-m.last.Y)/z)
	case dragPan:
		v := s.View()
		v.PanX, v.PanY = p.X-m.panAnchor.X, p.Y-m.panAnchor.Y
		s.SetView(v)
	}
	m.last = p
}

// PointerUp ends a drag and records a move in the history when the
// entity travelled more than a pixel.
func (m *Machine) PointerUp(p geometry.Point) {
	s := m.state
	switch m.drag {
	case dragTree:
		if s.CommitTreeMove(m.dragID, m.treeFrom) {
			m.log.Debug("tree moved", "id", m.dragID)
		}
	case dragPipeline:
		if s.CommitPipelineMove(m.dragID, m.pipelineFrom) {
			m.log.Debug("pipeline moved", "id", m.dragID)
		}
	}
	m.cursor = m.world(p)
	m.endDrag()
}

// Click adds a point to the shape being drawn. detail is the click count
// reported by the host: a second click finishes the shape once it has
// enough points, and adds a point otherwise. In normal mode a click
// selects what is under the pointer.
func (m *Machine) Click(p geometry.Point, detail int) {
	s := m.state
	w := m.world(p)
	double := detail >= 2

	switch {
	case s.Mode() == state.ModePolygon:
		if double && len(s.Polygon()) >= 3 {
			_, _ = m.FinishPolygon()
			return
		}
		if err := s.AddPolygonPoint(w); err != nil {
			m.report(err)
		}
	case s.Mode() == state.ModePipeline:
		cur, ok := s.CurrentPipeline()
		if !ok {
			return
		}
		if double && len(cur.Points) >= 2 {
			_, _ = m.FinishPipeline()
			return
		}
		if _, err := s.AddPipelinePoint(w); err != nil {
			m.report(err)
		}
		m.preview = nil
	case s.GuidelineMode() != state.GuideNone:
		if cur, ok := s.CurrentGuideline(); ok && double && len(cur.Points) >= 2 {
			_, _ = m.FinishGuideline()
			return
		}
		if err := s.AddGuidelinePoint(w); err != nil {
			m.report(err)
		}
		m.preview = nil
	case s.Mode() == state.ModeNormal:
		m.selectAt(w)
	}
}

// Wheel zooms one notch about the cursor; positive deltaY zooms out.
func (m *Machine) Wheel(p geometry.Point, deltaY float64) {
	v := m.state.View()
	if nv := view.Wheel(deltaY, p, v); nv != v {
		m.state.SetView(nv)
	}
}

// Drop plants a catalog tree where it was dropped, snapped to guidelines.
func (m *Machine) Drop(p geometry.Point, key document.TreeTypeKey) (document.Tree, error) {
	s := m.state
	if s.Image() == nil {
		m.notify.Notify(notify.Warning, "Imagen Requerida", "Primero carga una imagen satelital")
		return document.Tree{}, state.ErrNoImage
	}
	res, err := s.AddTree(key, s.Snap(m.world(p)))
	if err != nil {
		m.report(err)
		return document.Tree{}, err
	}
	m.advise(res.Advisories)
	if n := len(s.Trees()); n%10 == 0 {
		m.notify.Notify(notify.Info, "Progreso", fmt.Sprintf("%d árboles plantados", n))
	}
	return res.Tree, nil
}

func (m *Machine) selectAt(w geometry.Point) {
	s := m.state
	if t, ok := m.treeAt(w); ok {
		_ = s.SelectTree(t.ID)
		return
	}
	if pl, ok := m.pipelineAt(w); ok {
		_ = s.SelectPipeline(pl.ID)
		return
	}
	s.ClearSelection()
}

func (m *Machine) treeAt(w geometry.Point) (document.Tree, bool) {
	scale, _ := m.state.Scale()
	trees := m.state.Trees()
	if i, ok := view.TreeAt(w, trees, scale); ok {
		return trees[i], true
	}
	return document.Tree{}, false
}

func (m *Machine) pipelineAt(w geometry.Point) (document.Pipeline, bool) {
	pipelines := m.state.Pipelines()
	if i, ok := view.PipelineAt(w, pipelines, m.state.View().Zoom); ok {
		return pipelines[i], true
	}
	return document.Pipeline{}, false
}

func (m *Machine) updatePreview(w geometry.Point) {
	s := m.state
	if s.Mode() == state.ModePipeline {
		if cur, ok := s.CurrentPipeline(); ok && len(cur.Points) > 0 {
			m.preview = &Preview{Kind: cur.Kind, Start: cur.Points[len(cur.Points)-1], End: w}
			return
		}
	} else if s.GuidelineMode() != state.GuideNone {
		if cur, ok := s.CurrentGuideline(); ok && len(cur.Points) > 0 {
			m.preview = &Preview{Guideline: true, Start: cur.Points[len(cur.Points)-1], End: w}
			return
		}
	}
	m.preview = nil
}
