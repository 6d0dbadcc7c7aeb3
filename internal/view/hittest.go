package view

import (
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
)

const (
	// PipelineHitPx is the on-screen pick tolerance for pipelines.
	PipelineHitPx = 10.0
	// SnapPx is the on-screen snap radius for guidelines.
	SnapPx = 25.0
)

// TreeAt returns the index of the topmost tree whose canopy contains p.
// Later trees are drawn on top, so the search runs from the end.
func TreeAt(p geometry.Point, trees []document.Tree, scale float64) (int, bool) {
	for i := len(trees) - 1; i >= 0; i-- {
		if geometry.Distance(p, trees[i].Position()) <= trees[i].CanopyRadius(scale) {
			return i, true
		}
	}
	return -1, false
}

// PipelineAt returns the index of the first pipeline with a segment within
// PipelineHitPx screen pixels of p.
func PipelineAt(p geometry.Point, pipelines []document.Pipeline, zoom float64) (int, bool) {
	tolerance := PixelTolerance(PipelineHitPx, zoom)
	for i, pl := range pipelines {
		for j := 0; j+1 < len(pl.Points); j++ {
			if geometry.DistancePointToSegment(p, pl.Points[j], pl.Points[j+1]) <= tolerance {
				return i, true
			}
		}
	}
	return -1, false
}

// SnapToGuidelines moves p onto the nearest visible guideline vertex or
// segment point within SnapPx screen pixels. Vertices of a guideline are
// checked before its segments; a candidate must be strictly closer than the
// best so far, so the first one found wins ties.
func SnapToGuidelines(p geometry.Point, guidelines []document.Guideline, zoom float64, enabled bool) geometry.Point {
	if !enabled || len(guidelines) == 0 {
		return p
	}

	best := p
	bestDist := PixelTolerance(SnapPx, zoom)

	for _, g := range guidelines {
		if !g.Visible {
			continue
		}
		for _, v := range g.Points {
			if d := geometry.Distance(p, v); d < bestDist {
				best, bestDist = v, d
			}
		}
		for i := 0; i+1 < len(g.Points); i++ {
			c := geometry.ClosestPointOnSegment(p, g.Points[i], g.Points[i+1])
			if d := geometry.Distance(p, c); d < bestDist {
				best, bestDist = c, d
			}
		}
	}
	return best
}
