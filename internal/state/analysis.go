package state

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/history"
)

// SpacingStats summarises pairwise tree distances in meters.
type SpacingStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// SpacingStats needs two trees and a scale.
func (s *State) SpacingStats() (SpacingStats, bool) {
	if len(s.trees) < 2 || s.scale == nil {
		return SpacingStats{}, false
	}
	n, scale := len(s.trees), *s.scale
	d := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			d = append(d, geometry.Distance(s.trees[i].Position(), s.trees[j].Position())*scale)
		}
	}
	return SpacingStats{Average: stat.Mean(d, nil), Min: floats.Min(d), Max: floats.Max(d)}, true
}

type Distribution struct {
	// Uniformity is 0..100; 100 means trees split evenly across quadrants.
	Uniformity  float64 `json:"uniformity"`
	Description string  `json:"description"`
	Quadrants   [4]int  `json:"quadrants"`
}

// Distribution compares tree counts in the four quadrants around the
// centre of the trees' bounding box.
func (s *State) Distribution() Distribution {
	if len(s.trees) < 4 {
		return Distribution{Uniformity: 50, Description: "Insuficientes datos"}
	}
	pts := make([]geometry.Point, len(s.trees))
	for i, t := range s.trees {
		pts[i] = t.Position()
	}
	b, _ := geometry.Bounds(pts)
	c := b.Center()

	var q [4]int
	for _, p := range pts {
		switch {
		case p.X < c.X && p.Y < c.Y:
			q[0]++
		case p.X >= c.X && p.Y < c.Y:
			q[1]++
		case p.X < c.X:
			q[2]++
		default:
			q[3]++
		}
	}
	counts := []float64{float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])}
	expected := float64(len(s.trees)) / 4
	_, variance := stat.PopMeanVariance(counts, nil)
	u := math.Max(0, 100-math.Sqrt(variance)/expected*100)

	return Distribution{Uniformity: u, Description: uniformityLabel(u), Quadrants: q}
}

func uniformityLabel(u float64) string {
	switch {
	case u < 20:
		return "Muy desigual"
	case u < 40:
		return "Poco uniforme"
	case u < 70:
		return "Moderadamente uniforme"
	}
	return "Muy uniforme"
}

type HealthSummary struct {
	// Average is a percentage.
	Average float64 `json:"average"`
	Healthy int     `json:"healthy"`
	Total   int     `json:"total"`
	// Percentage of trees above healthyThreshold.
	Percentage float64 `json:"percentage"`
}

const healthyThreshold = 0.8

func (s *State) HealthSummary() HealthSummary {
	h := HealthSummary{Total: len(s.trees)}
	if h.Total == 0 {
		return h
	}
	values := make([]float64, len(s.trees))
	for i, t := range s.trees {
		values[i] = t.Health
		if t.Health > healthyThreshold {
			h.Healthy++
		}
	}
	h.Average = stat.Mean(values, nil) * 100
	h.Percentage = float64(h.Healthy) / float64(h.Total) * 100
	return h
}

// CanopyCoverage is the summed canopy area of all trees in square meters.
// Overlaps are counted twice.
func (s *State) CanopyCoverage() float64 {
	total := 0.0
	for _, t := range s.trees {
		if cfg, ok := t.Config(); ok {
			r := cfg.Diameter / 2
			total += math.Pi * r * r
		}
	}
	return total
}

type Density struct {
	TreesPerHectare float64 `json:"value"`
	Description     string  `json:"description"`
}

// Density needs trees, a finished boundary and a scale.
func (s *State) Density() (Density, bool) {
	area, ok := s.PolygonAreaMeters()
	if !ok || len(s.trees) == 0 || area == 0 {
		return Density{Description: "No calculable"}, false
	}
	d := float64(len(s.trees)) / (area / 10000)
	desc := "Adecuada"
	switch {
	case d < 50:
		desc = "Baja"
	case d > 300:
		desc = "Alta"
	case d > 200:
		desc = "Moderada-Alta"
	}
	return Density{TreesPerHectare: d, Description: desc}, true
}

// SpacingConflict is a pair of trees closer than allowed. Distances are in
// pixels.
type SpacingConflict struct {
	A        document.ID `json:"tree1"`
	B        document.ID `json:"tree2"`
	Current  float64     `json:"currentDistance"`
	Required float64     `json:"requiredDistance"`
}

// SpacingConflicts lists tree pairs closer than the larger of the minimum
// spacing and their mean canopy diameter.
func (s *State) SpacingConflicts() []SpacingConflict {
	if s.scale == nil {
		return nil
	}
	scale := *s.scale
	minPx := s.minSpacing / scale
	var out []SpacingConflict
	for i := 0; i < len(s.trees)-1; i++ {
		for j := i + 1; j < len(s.trees); j++ {
			a, b := s.trees[i], s.trees[j]
			required := math.Max(minPx, a.CanopyRadius(scale)+b.CanopyRadius(scale))
			if d := geometry.Distance(a.Position(), b.Position()); d < required {
				out = append(out, SpacingConflict{A: a.ID, B: b.ID, Current: d, Required: required})
			}
		}
	}
	return out
}

// OptimizeSpacing pushes the newer tree of each conflicting pair away from
// the older one until their canopies no longer overlap. A move that would
// leave the image, or break auto-spacing, is skipped. All moves form one
// undo step. It returns the conflicts found and how many were resolved.
func (s *State) OptimizeSpacing() (found, resolved int, err error) {
	if len(s.trees) < 2 || s.scale == nil {
		return 0, 0, invalid("optimize spacing", ErrScaleRequired, "need 2 trees and a scale")
	}
	conflicts := s.SpacingConflicts()
	if len(conflicts) == 0 {
		return 0, 0, nil
	}
	scale := *s.scale
	before := s.collections()

	for _, c := range conflicts {
		ai, bi := s.treeIndex(c.A), s.treeIndex(c.B)
		if ai < 0 || bi < 0 {
			continue
		}
		static, mover := ai, bi
		if ai > bi {
			static, mover = bi, ai
		}
		st, mv := s.trees[static], s.trees[mover]
		angle := math.Atan2(mv.Y-st.Y, mv.X-st.X)
		dist := st.CanopyRadius(scale) + mv.CanopyRadius(scale) + 1
		to := geometry.Pt(st.X+math.Cos(angle)*dist, st.Y+math.Sin(angle)*dist)
		if !s.validPosition(mover, to) {
			continue
		}
		s.trees[mover].X, s.trees[mover].Y = to.X, to.Y
		resolved++
	}

	if resolved > 0 {
		s.history.Checkpoint(history.KindMoveTrees, before, history.Payload{Count: resolved})
		s.emit(EventHistoryChanged, history.KindMoveTrees)
		s.emit(EventContentChanged, nil)
	}
	return len(conflicts), resolved, nil
}

// validPosition checks p against the image bounds and, when auto-spacing is
// on, against every tree other than skip.
func (s *State) validPosition(skip int, p geometry.Point) bool {
	if s.image != nil && !s.image.Contains(p) {
		return false
	}
	if !s.autoSpacing || s.scale == nil {
		return true
	}
	scale := *s.scale
	minPx := s.minSpacing / scale
	r := s.trees[skip].CanopyRadius(scale)
	for i, t := range s.trees {
		if i == skip {
			continue
		}
		if geometry.Distance(p, t.Position()) < math.Max(minPx, r+t.CanopyRadius(scale)) {
			return false
		}
	}
	return true
}

// Statistics is the aggregate read by reports and the project summary.
type Statistics struct {
	Name               string                            `json:"name"`
	Scale              *float64                          `json:"scale,omitempty"`
	ScalePrecision     Precision                         `json:"scalePrecision"`
	TreeCount          int                               `json:"treeCount"`
	TreesByCategory    map[document.TreeCategory]int     `json:"treesByCategory"`
	TreesByType        map[document.TreeTypeKey]int      `json:"treesByType"`
	PipelineCount      int                               `json:"pipelineCount"`
	PipelinesByKind    map[document.PipelineKind]int     `json:"pipelinesByKind"`
	PipelineLengthM    *float64                          `json:"pipelineLengthM,omitempty"`
	PipelineLengthsM   map[document.PipelineKind]float64 `json:"pipelineLengthsM,omitempty"`
	GuidelineCount     int                               `json:"guidelineCount"`
	PolygonPoints      int                               `json:"polygonPoints"`
	AreaM2             *float64                          `json:"areaM2,omitempty"`
	PerimeterM         *float64                          `json:"perimeterM,omitempty"`
	TreesInsidePolygon int                               `json:"treesInsidePolygon"`
	Spacing            *SpacingStats                     `json:"spacing,omitempty"`
	Distribution       Distribution                      `json:"distribution"`
	Health             HealthSummary                     `json:"health"`
	CanopyCoverageM2   float64                           `json:"canopyCoverageM2"`
	Density            *Density                          `json:"density,omitempty"`
	SpacingConflicts   int                               `json:"spacingConflicts"`
}

func (s *State) Statistics() Statistics {
	st := Statistics{
		Name:               s.name,
		ScalePrecision:     s.ScalePrecision(),
		TreeCount:          len(s.trees),
		TreesByCategory:    s.TreeCountsByCategory(),
		TreesByType:        s.TreeCountsByType(),
		PipelineCount:      len(s.pipelines),
		PipelinesByKind:    s.PipelineCountsByKind(),
		GuidelineCount:     len(s.guidelines),
		PolygonPoints:      len(s.polygon),
		TreesInsidePolygon: len(s.TreesInPolygon()),
		Distribution:       s.Distribution(),
		Health:             s.HealthSummary(),
		CanopyCoverageM2:   s.CanopyCoverage(),
		SpacingConflicts:   len(s.SpacingConflicts()),
	}
	if v, ok := s.Scale(); ok {
		st.Scale = &v
	}
	if v, ok := s.TotalPipelineLength(); ok {
		st.PipelineLengthM = &v
	}
	st.PipelineLengthsM, _ = s.PipelineLengthsByKind()
	if v, ok := s.PolygonAreaMeters(); ok {
		st.AreaM2 = &v
	}
	if v, ok := s.PolygonPerimeterMeters(); ok {
		st.PerimeterM = &v
	}
	if v, ok := s.SpacingStats(); ok {
		st.Spacing = &v
	}
	if v, ok := s.Density(); ok {
		st.Density = &v
	}
	return st
}
