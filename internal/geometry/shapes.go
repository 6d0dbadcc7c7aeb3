package geometry

import "math"

// TriangleRing derives an equilateral triangle from the base p1p2 and
// returns the closed ring [p1, p2, apex, p1]. The apex sits on the side the
// base normal (-dy, dx) points to.
func TriangleRing(p1, p2 Point) []Point {
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return []Point{p1, p2, p1, p1}
	}
	h := length * math.Sqrt(3) / 2
	mid := Midpoint(p1, p2)
	apex := Point{
		X: mid.X - h*dy/length,
		Y: mid.Y + h*dx/length,
	}
	return []Point{p1, p2, apex, p1}
}

// SquareRing derives a square from the side p1p2 and returns the closed ring
// [p1, p2, p3, p4, p1] with p3 = p2 + perp and p4 = p1 + perp, perp(dx, dy) = (-dy, dx).
func SquareRing(p1, p2 Point) []Point {
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	p3 := Point{X: p2.X - dy, Y: p2.Y + dx}
	p4 := Point{X: p1.X - dy, Y: p1.Y + dx}
	return []Point{p1, p2, p3, p4, p1}
}
