package geometry

import "math"

// projectionT returns the clamped projection parameter of p onto segment ab,
// and false when the segment is degenerate.
func projectionT(p, a, b Point) (float64, bool) {
	cx, cy := b.X-a.X, b.Y-a.Y
	lenSq := cx*cx + cy*cy
	if lenSq == 0 {
		return 0, false
	}
	t := ((p.X-a.X)*cx + (p.Y-a.Y)*cy) / lenSq
	return math.Max(0, math.Min(1, t)), true
}

// ClosestPointOnSegment returns the point on segment ab nearest to p.
// A degenerate segment (a == b) returns a.
func ClosestPointOnSegment(p, a, b Point) Point {
	t, ok := projectionT(p, a, b)
	if !ok {
		return a
	}
	return Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
}

// DistancePointToSegment returns the distance from p to segment ab.
func DistancePointToSegment(p, a, b Point) float64 {
	return Distance(p, ClosestPointOnSegment(p, a, b))
}

// SegmentsIntersect reports whether segment p1p2 intersects segment p3p4.
// Parallel (and collinear) segments are reported as non-intersecting.
func SegmentsIntersect(p1, p2, p3, p4 Point) bool {
	den := (p4.Y-p3.Y)*(p2.X-p1.X) - (p4.X-p3.X)*(p2.Y-p1.Y)
	if den == 0 {
		return false
	}
	ua := ((p4.X-p3.X)*(p1.Y-p3.Y) - (p4.Y-p3.Y)*(p1.X-p3.X)) / den
	ub := ((p2.X-p1.X)*(p1.Y-p3.Y) - (p2.Y-p1.Y)*(p1.X-p3.X)) / den
	return ua >= 0 && ua <= 1 && ub >= 0 && ub <= 1
}
