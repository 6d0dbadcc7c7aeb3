package geometry

import "math"

// PolygonArea returns the unsigned shoelace area of a closed polygon in
// square pixels. Fewer than three points have no area.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter returns the length of the closed ring through pts,
// including the edge from the last point back to the first.
func PolygonPerimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var total float64
	for i := range pts {
		j := (i + 1) % len(pts)
		total += Distance(pts[i], pts[j])
	}
	return total
}

// PointInPolygon reports whether p lies inside poly using the even-odd rule.
// Edges use the half-open y interval so a vertex shared by two edges is
// counted once.
func PointInPolygon(p Point, poly []Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// Centroid returns the vertex average of pts and false for an empty list.
func Centroid(pts []Point) (Point, bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}, true
}

// IsSelfIntersecting reports whether any two non-adjacent edges of the
// closed polygon cross.
func IsSelfIntersecting(poly []Point) bool {
	n := len(poly)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := poly[i], poly[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if SegmentsIntersect(a1, a2, poly[j], poly[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// HasCloseVertices reports whether any two vertices are nearer than minDist.
func HasCloseVertices(pts []Point, minDist float64) bool {
	for i := 0; i < len(pts)-1; i++ {
		for j := i + 1; j < len(pts); j++ {
			if Distance(pts[i], pts[j]) < minDist {
				return true
			}
		}
	}
	return false
}
