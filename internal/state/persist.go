package state

import (
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// LoadedProjectName names projects loaded from data without a name.
const LoadedProjectName = "Proyecto Cargado"

// ProjectData returns a full snapshot of the project for saving.
func (s *State) ProjectData() *document.ProjectData {
	c := s.collections()
	p := &document.ProjectData{
		Version:         document.CurrentVersion,
		Name:            s.name,
		Polygon:         geometry.ClonePoints(s.polygon),
		Trees:           c.Trees,
		Pipelines:       c.Pipelines,
		Guidelines:      c.Guidelines,
		LayerVisibility: s.layers,
		Zoom:            s.view.Zoom,
		PanX:            s.view.PanX,
		PanY:            s.view.PanY,
		Timestamp:       s.now().UTC(),
	}
	if s.scale != nil {
		v := *s.scale
		p.Scale = &v
	}
	if s.image != nil {
		p.BackgroundImageData = s.image.Data
	}
	return p
}

// LoadProjectData replaces the whole project with p. img is the decoded
// background image, or nil. The undo history is wiped, and the selection,
// in-progress shapes and modes are reset.
func (s *State) LoadProjectData(p *document.ProjectData, img *Image) {
	c := p.Collections()

	s.name = p.Name
	if s.name == "" {
		s.name = LoadedProjectName
	}
	s.image = img
	s.scale = nil
	if v, ok := p.ScaleValue(); ok {
		s.scale = &v
	}
	s.scaleLine = nil
	s.polygon = geometry.ClonePoints(p.Polygon)
	if s.polygon == nil {
		s.polygon = []geometry.Point{}
	}
	s.trees = c.Trees
	s.pipelines = c.Pipelines
	s.guidelines = c.Guidelines
	s.layers = p.LayerVisibility

	s.view = view.View{Zoom: p.Zoom, PanX: p.PanX, PanY: p.PanY}
	if p.Zoom == 0 {
		s.view.Zoom = 1
	}
	s.view.Zoom = view.ClampZoom(s.view.Zoom)

	s.currentPipeline = nil
	s.currentGuideline = nil
	s.selectedTree, s.selectedPipeline = "", ""
	s.mode = ModeNormal
	s.guideMode = GuideNone
	s.history.Reset()

	s.log.Debug("project loaded", "name", s.name, "trees", len(s.trees), "pipelines", len(s.pipelines))
	s.emit(EventProjectLoaded, s.name)
}
