package state

import (
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
)

// Queries that return real-world units report false when the scale is not
// defined.

func (s *State) TotalPipelineLength() (float64, bool) {
	if s.scale == nil {
		return 0, false
	}
	total := 0.0
	for _, p := range s.pipelines {
		total += geometry.PathLength(p.Points)
	}
	return total * *s.scale, true
}

// PipelineLengthsByKind returns meters of pipeline per kind.
func (s *State) PipelineLengthsByKind() (map[document.PipelineKind]float64, bool) {
	if s.scale == nil {
		return nil, false
	}
	out := make(map[document.PipelineKind]float64, len(document.PipelineKinds))
	for _, p := range s.pipelines {
		out[p.Kind] += geometry.PathLength(p.Points) * *s.scale
	}
	return out, true
}

// PolygonAreaMeters returns the boundary area in square meters.
func (s *State) PolygonAreaMeters() (float64, bool) {
	if s.scale == nil || len(s.polygon) < 3 {
		return 0, false
	}
	return geometry.PolygonArea(s.polygon) * *s.scale * *s.scale, true
}

func (s *State) PolygonPerimeterMeters() (float64, bool) {
	if s.scale == nil || len(s.polygon) < 2 {
		return 0, false
	}
	return geometry.PolygonPerimeter(s.polygon) * *s.scale, true
}

func (s *State) TreeCountsByCategory() map[document.TreeCategory]int {
	out := map[document.TreeCategory]int{
		document.CategoryNew:      0,
		document.CategoryExisting: 0,
	}
	for _, t := range s.trees {
		if cfg, ok := t.Config(); ok {
			out[cfg.Category]++
		}
	}
	return out
}

// TreeCountsByType counts trees per catalog key.
func (s *State) TreeCountsByType() map[document.TreeTypeKey]int {
	out := make(map[document.TreeTypeKey]int)
	for _, t := range s.trees {
		out[t.Type]++
	}
	return out
}

func (s *State) PipelineCountsByKind() map[document.PipelineKind]int {
	out := make(map[document.PipelineKind]int, len(document.PipelineKinds))
	for _, k := range document.PipelineKinds {
		out[k] = 0
	}
	for _, p := range s.pipelines {
		out[p.Kind]++
	}
	return out
}

// TreesInPolygon returns the trees inside the boundary. Without a finished
// boundary no tree is inside.
func (s *State) TreesInPolygon() []document.Tree {
	var out []document.Tree
	if len(s.polygon) < 3 {
		return out
	}
	for _, t := range s.trees {
		if geometry.PointInPolygon(t.Position(), s.polygon) {
			out = append(out, t)
		}
	}
	return out
}

// TreesOutsidePolygon returns the trees outside the boundary, or every tree
// when there is no finished boundary.
func (s *State) TreesOutsidePolygon() []document.Tree {
	if len(s.polygon) < 3 {
		return s.Trees()
	}
	var out []document.Tree
	for _, t := range s.trees {
		if !geometry.PointInPolygon(t.Position(), s.polygon) {
			out = append(out, t)
		}
	}
	return out
}

// MeasureDistance returns the distance between two world points in meters.
func (s *State) MeasureDistance(a, b geometry.Point) (float64, error) {
	return s.PixelsToMeters(geometry.Distance(a, b))
}

// NearestNeighbor returns the distance in meters from tree i to its closest
// neighbour.
func (s *State) NearestNeighbor(i int) (float64, bool) {
	if s.scale == nil || i < 0 || i >= len(s.trees) || len(s.trees) < 2 {
		return 0, false
	}
	best := -1.0
	for j, t := range s.trees {
		if j == i {
			continue
		}
		d := geometry.Distance(s.trees[i].Position(), t.Position())
		if best < 0 || d < best {
			best = d
		}
	}
	return best * *s.scale, true
}
