package state

import (
	"math"

	"github.com/reforesta/planner/backend-go/internal/geometry"
)

const (
	MaxPolygonPoints = 100
	// closeVertexPx is the distance under which two vertices are flagged.
	closeVertexPx = 5.0
	// SimplifyTolerancePx is the default tolerance for SimplifyPolygon.
	SimplifyTolerancePx = 5.0
	// maxCoverage is the share of the area trees may cover in a suggestion.
	maxCoverage = 0.7
)

type PolygonResult struct {
	Points int `json:"points"`
	// AreaM2 is set only when the scale is defined.
	AreaM2     *float64   `json:"areaM2,omitempty"`
	Advisories []Advisory `json:"advisories,omitempty"`
}

// StartPolygon enters polygon mode with an empty boundary.
func (s *State) StartPolygon() error {
	if s.image == nil {
		return invalid("start polygon", ErrNoImage, "")
	}
	s.polygon = []geometry.Point{}
	s.setMode(ModePolygon)
	s.emit(EventPolygonChanged, nil)
	return nil
}

// AddPolygonPoint appends a boundary vertex. Boundary vertices are not
// snapped.
func (s *State) AddPolygonPoint(p geometry.Point) error {
	const op = "add polygon point"
	if s.mode != ModePolygon {
		return invalid(op, ErrNotDrawing, "")
	}
	if len(s.polygon) >= MaxPolygonPoints {
		return invalid(op, ErrTooManyPoints, "maximum %d", MaxPolygonPoints)
	}
	s.polygon = append(s.polygon, p)
	s.emit(EventPolygonChanged, nil)
	return nil
}

// FinishPolygon closes the boundary and returns to normal mode.
func (s *State) FinishPolygon() (PolygonResult, error) {
	if len(s.polygon) < 3 {
		return PolygonResult{}, invalid("finish polygon", ErrTooFewPoints, "need 3, have %d", len(s.polygon))
	}
	s.setMode(ModeNormal)

	res := PolygonResult{Points: len(s.polygon)}
	if a, ok := s.PolygonAreaMeters(); ok {
		res.AreaM2 = &a
	}
	res.Advisories = polygonAdvisories(s.polygon)
	s.log.Debug("polygon finished", "points", res.Points)
	s.emit(EventPolygonChanged, nil)
	return res, nil
}

func polygonAdvisories(poly []geometry.Point) []Advisory {
	var out []Advisory
	if geometry.IsSelfIntersecting(poly) {
		out = append(out, AdvisorySelfIntersecting)
	}
	if geometry.HasCloseVertices(poly, closeVertexPx) {
		out = append(out, AdvisoryCloseVertices)
	}
	return out
}

// ClearPolygon removes the boundary. Boundary edits are not undoable.
func (s *State) ClearPolygon() error {
	if len(s.polygon) == 0 {
		return invalid("clear polygon", ErrNothingToClear, "")
	}
	s.polygon = []geometry.Point{}
	if s.mode == ModePolygon {
		s.setMode(ModeNormal)
	}
	s.emit(EventPolygonChanged, nil)
	return nil
}

// SetPolygon replaces the boundary with a finished ring of at least three
// points.
func (s *State) SetPolygon(pts []geometry.Point) error {
	if len(pts) < 3 {
		return invalid("set polygon", ErrTooFewPoints, "need 3, have %d", len(pts))
	}
	if len(pts) > MaxPolygonPoints {
		return invalid("set polygon", ErrTooManyPoints, "maximum %d", MaxPolygonPoints)
	}
	s.polygon = geometry.ClonePoints(pts)
	s.emit(EventPolygonChanged, nil)
	return nil
}

// PolygonValidation lists what is wrong with the boundary.
type PolygonValidation struct {
	Valid  bool    `json:"isValid"`
	Errors []error `json:"-"`
}

func ValidatePolygon(poly []geometry.Point) PolygonValidation {
	var errs []error
	if len(poly) < 3 {
		errs = append(errs, ErrTooFewPoints)
	}
	if len(poly) > MaxPolygonPoints {
		errs = append(errs, ErrTooManyPoints)
	}
	if geometry.HasCloseVertices(poly, closeVertexPx) {
		errs = append(errs, ErrCloseVertices)
	}
	return PolygonValidation{Valid: len(errs) == 0, Errors: errs}
}

// SimplifyPolygon drops vertices lying within tolerance pixels of the
// segment joining their neighbours. The first and last vertices are kept.
// The boundary is left alone when simplifying would leave fewer than three
// points. It returns the resulting vertex count.
func (s *State) SimplifyPolygon(tolerance float64) int {
	n := len(s.polygon)
	if n <= 3 {
		return n
	}
	out := []geometry.Point{s.polygon[0]}
	for i := 1; i < n-1; i++ {
		if geometry.DistancePointToSegment(s.polygon[i], s.polygon[i-1], s.polygon[i+1]) > tolerance {
			out = append(out, s.polygon[i])
		}
	}
	out = append(out, s.polygon[n-1])
	if len(out) < 3 {
		return n
	}
	s.polygon = out
	s.emit(EventPolygonChanged, nil)
	return len(out)
}

// TreeSuggestion is how many trees of a canopy radius fit the boundary.
type TreeSuggestion struct {
	MaxTrees       int     `json:"maxTrees"`
	OptimalSpacing float64 `json:"optimalSpacing"`
	// Coverage is the percentage of the area covered at MaxTrees.
	Coverage float64 `json:"coverage"`
}

// SuggestTreeDistribution sizes a planting for areaM2 square meters of
// trees with the given canopy radius in meters.
func SuggestTreeDistribution(areaM2, radius float64) (TreeSuggestion, bool) {
	if areaM2 <= 0 || radius <= 0 {
		return TreeSuggestion{}, false
	}
	treeArea := math.Pi * radius * radius
	maxTrees := int(math.Floor(areaM2 * maxCoverage / treeArea))
	return TreeSuggestion{
		MaxTrees:       maxTrees,
		OptimalSpacing: radius * 2.5,
		Coverage:       float64(maxTrees) * treeArea / areaM2 * 100,
	}, true
}

type PolygonAnalysis struct {
	Points       int               `json:"points"`
	AreaM2       *float64          `json:"areaM2,omitempty"`
	PerimeterM   *float64          `json:"perimeterM,omitempty"`
	Center       geometry.Point    `json:"center"`
	Bounds       geometry.Rect     `json:"bounds"`
	Validation   PolygonValidation `json:"validation"`
	Intersecting bool              `json:"isIntersecting"`
}

// PolygonAnalysis describes the finished boundary; false without one.
func (s *State) PolygonAnalysis() (PolygonAnalysis, bool) {
	if len(s.polygon) < 3 {
		return PolygonAnalysis{}, false
	}
	a := PolygonAnalysis{
		Points:       len(s.polygon),
		Validation:   ValidatePolygon(s.polygon),
		Intersecting: geometry.IsSelfIntersecting(s.polygon),
	}
	a.Center, _ = geometry.Centroid(s.polygon)
	a.Bounds, _ = geometry.Bounds(s.polygon)
	if v, ok := s.PolygonAreaMeters(); ok {
		a.AreaM2 = &v
	}
	if v, ok := s.PolygonPerimeterMeters(); ok {
		a.PerimeterM = &v
	}
	return a, true
}
