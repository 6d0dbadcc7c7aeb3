package state

import (
	"math"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/history"
)

// Pattern is a planting layout.
type Pattern string

const (
	PatternGrid      Pattern = "grid"
	PatternStaggered Pattern = "staggered"
	PatternRandom    Pattern = "random"
	PatternCluster   Pattern = "cluster"
	PatternNatural   Pattern = "natural"
)

var Patterns = []Pattern{PatternGrid, PatternStaggered, PatternRandom, PatternCluster, PatternNatural}

func ParsePattern(s string) (Pattern, error) {
	for _, p := range Patterns {
		if string(p) == s {
			return p, nil
		}
	}
	return "", invalid("parse pattern", ErrUnknownPattern, "%q", s)
}

const (
	randomAttempts  = 1000
	randomTarget    = 100
	clusterCount    = 5
	clusterSize     = 8
	naturalSeeds    = 3
	naturalChildren = 15
	naturalAttempts = 20
	maxGridCells    = 50000
	// rowFactor is sin(60°), the row pitch of a staggered layout.
	rowFactor = 0.866
)

// PlantPattern fills the boundary with trees laid out in a pattern,
// spacingMeters apart. Candidates outside the boundary are dropped. The
// whole batch is a single undo step. It returns the trees planted.
func (s *State) PlantPattern(pattern Pattern, key document.TreeTypeKey, spacingMeters float64) ([]document.Tree, error) {
	const op = "plant pattern"
	if s.scale == nil {
		return nil, invalid(op, ErrScaleRequired, "")
	}
	if len(s.polygon) < 3 {
		return nil, invalid(op, ErrPolygonRequired, "")
	}
	cfg, ok := document.LookupTreeType(key)
	if !ok {
		return nil, invalid(op, ErrUnknownTreeType, "%q", key)
	}
	if !(spacingMeters > 0) {
		return nil, invalid(op, ErrInvalidSpacing, "%g m", spacingMeters)
	}

	bounds, _ := geometry.Bounds(s.polygon)
	spacing := spacingMeters / *s.scale
	if cells := (bounds.Width/spacing + 1) * (bounds.Height/spacing + 1); cells > maxGridCells {
		return nil, invalid(op, ErrInvalidSpacing, "%g m yields %.0f candidates", spacingMeters, cells)
	}
	var candidates []geometry.Point
	switch pattern {
	case PatternGrid:
		candidates = gridPoints(bounds, spacing)
	case PatternStaggered:
		candidates = staggeredPoints(bounds, spacing)
	case PatternRandom:
		candidates = s.randomPoints(bounds, spacing)
	case PatternCluster:
		candidates = s.clusterPoints(bounds, spacing)
	case PatternNatural:
		candidates = s.naturalPoints(bounds, spacing)
	default:
		return nil, invalid(op, ErrUnknownPattern, "%q", pattern)
	}

	var planted []document.Tree
	for _, p := range candidates {
		if geometry.PointInPolygon(p, s.polygon) {
			planted = append(planted, s.newTree(cfg, p))
		}
	}
	if len(planted) == 0 {
		return planted, nil
	}
	s.checkpoint(history.KindAddTree, history.Payload{Count: len(planted)})
	s.trees = append(s.trees, planted...)
	s.log.Debug("pattern planted", "pattern", pattern, "type", key, "trees", len(planted))
	s.emit(EventContentChanged, nil)
	return planted, nil
}

func gridPoints(b geometry.Rect, spacing float64) []geometry.Point {
	var pts []geometry.Point
	for x := b.X; x <= b.MaxX(); x += spacing {
		for y := b.Y; y <= b.MaxY(); y += spacing {
			pts = append(pts, geometry.Pt(x, y))
		}
	}
	return pts
}

func staggeredPoints(b geometry.Rect, spacing float64) []geometry.Point {
	var pts []geometry.Point
	offset := 0.0
	for y := b.Y; y <= b.MaxY(); y += spacing * rowFactor {
		for x := b.X + offset; x <= b.MaxX(); x += spacing {
			pts = append(pts, geometry.Pt(x, y))
		}
		if offset == 0 {
			offset = spacing / 2
		} else {
			offset = 0
		}
	}
	return pts
}

func (s *State) randomIn(b geometry.Rect) geometry.Point {
	return geometry.Pt(b.X+s.rng.Float64()*b.Width, b.Y+s.rng.Float64()*b.Height)
}

func tooClose(p geometry.Point, pts []geometry.Point, minDist float64) bool {
	for _, q := range pts {
		if geometry.Distance(p, q) < minDist {
			return true
		}
	}
	return false
}

// randomPoints scatters up to randomTarget points at least spacing apart.
func (s *State) randomPoints(b geometry.Rect, spacing float64) []geometry.Point {
	var pts []geometry.Point
	for i := 0; i < randomAttempts && len(pts) < randomTarget; i++ {
		p := s.randomIn(b)
		if !tooClose(p, pts, spacing) {
			pts = append(pts, p)
		}
	}
	return pts
}

// clusterPoints rings clusterSize trees around each of clusterCount random
// centres.
func (s *State) clusterPoints(b geometry.Rect, spacing float64) []geometry.Point {
	pts := make([]geometry.Point, 0, clusterCount*clusterSize)
	for c := 0; c < clusterCount; c++ {
		centre := s.randomIn(b)
		for t := 0; t < clusterSize; t++ {
			angle := float64(t) / clusterSize * 2 * math.Pi
			r := spacing * (0.5 + s.rng.Float64()*1.5)
			pts = append(pts, geometry.Pt(centre.X+math.Cos(angle)*r, centre.Y+math.Sin(angle)*r))
		}
	}
	return pts
}

// naturalPoints grows naturalChildren descendants around each of a few
// random seeds, keeping every point at least spacing from the others.
func (s *State) naturalPoints(b geometry.Rect, spacing float64) []geometry.Point {
	var pts []geometry.Point
	for seed := 0; seed < naturalSeeds; seed++ {
		centre := s.randomIn(b)
		pts = append(pts, centre)
		for child := 0; child < naturalChildren; child++ {
			for attempt := 0; attempt < naturalAttempts; attempt++ {
				d := s.rng.Float64() * spacing * 3
				angle := s.rng.Float64() * 2 * math.Pi
				p := geometry.Pt(centre.X+math.Cos(angle)*d, centre.Y+math.Sin(angle)*d)
				if !tooClose(p, pts, spacing) {
					pts = append(pts, p)
					break
				}
			}
		}
	}
	return pts
}
