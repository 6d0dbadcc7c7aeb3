package engine

import (
	"encoding/json"

	"github.com/reforesta/planner/backend-go/internal/geometry"
)

// DrawCommand is a single drawing operation for the host surface. A frame is
// a list of these in painter's order (back to front). Coordinates are world
// pixels; the leading "transform" op carries the view matrix.
type DrawCommand struct {
	Op           string        `json:"op"`                     // "save", "restore", "transform", "image", "path", "text"
	ObjectID     string        `json:"objectId,omitempty"`     // For hit correlation
	Transform    []float64     `json:"transform,omitempty"`    // [a, b, c, d, e, f] affine matrix
	Path         []PathCommand `json:"path,omitempty"`         // Path data for "path" ops
	Fill         string        `json:"fill,omitempty"`         // Fill color
	Stroke       string        `json:"stroke,omitempty"`       // Stroke color
	StrokeWidth  float64       `json:"strokeWidth,omitempty"`  // Stroke width in world pixels
	Dash         []float64     `json:"dash,omitempty"`         // Line dash pattern
	LineCap      string        `json:"lineCap,omitempty"`      // "round" or empty for butt
	Opacity      float64       `json:"opacity,omitempty"`      // Global alpha, 0 means opaque
	Text         string        `json:"text,omitempty"`         // Label for "text" ops
	X            float64       `json:"x,omitempty"`            // Text anchor
	Y            float64       `json:"y,omitempty"`            // Text anchor
	Font         string        `json:"font,omitempty"`         // CSS font shorthand
	Align        string        `json:"align,omitempty"`        // Text alignment
	Background   string        `json:"background,omitempty"`   // Box drawn behind text
	Padding      float64       `json:"padding,omitempty"`      // Text box padding
	ImageAssetID string        `json:"imageAssetId,omitempty"` // Asset ID for image lookup
	ImageWidth   float64       `json:"imageWidth,omitempty"`   // Image natural width
	ImageHeight  float64       `json:"imageHeight,omitempty"`  // Image natural height
}

// PathCommand is a single path segment.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand []interface{}

// polylinePath traces pts in order, closing the path when closed is set.
func polylinePath(pts []geometry.Point, closed bool) []PathCommand {
	if len(pts) == 0 {
		return nil
	}
	path := make([]PathCommand, 0, len(pts)+1)
	path = append(path, PathCommand{"M", pts[0].X, pts[0].Y})
	for _, p := range pts[1:] {
		path = append(path, PathCommand{"L", p.X, p.Y})
	}
	if closed {
		path = append(path, PathCommand{"Z"})
	}
	return path
}

func segmentPath(a, b geometry.Point) []PathCommand {
	return []PathCommand{{"M", a.X, a.Y}, {"L", b.X, b.Y}}
}

// kappa places bezier control points so four curves approximate a circle:
// 4 * (sqrt(2) - 1) / 3.
const kappa = 0.5522847498

// circlePath approximates a circle centred on c with four cubic curves.
func circlePath(c geometry.Point, r float64) []PathCommand {
	k := r * kappa
	x, y := c.X, c.Y
	return []PathCommand{
		{"M", x + r, y},
		{"C", x + r, y + k, x + k, y + r, x, y + r},
		{"C", x - k, y + r, x - r, y + k, x - r, y},
		{"C", x - r, y - k, x - k, y - r, x, y - r},
		{"C", x + k, y - r, x + r, y - k, x + r, y},
		{"Z"},
	}
}

// PathBounds returns the axis-aligned bounds of a path's points, control
// points included.
func PathBounds(path []PathCommand) (geometry.Rect, bool) {
	var pts []geometry.Point
	for _, cmd := range path {
		if len(cmd) < 3 {
			continue
		}
		for i := 1; i+1 < len(cmd); i += 2 {
			pts = append(pts, geometry.Pt(toFloat64(cmd[i]), toFloat64(cmd[i+1])))
		}
	}
	return geometry.Bounds(pts)
}

// PathPoints returns the on-curve points of a path: the end point of every
// M, L and C segment.
func PathPoints(path []PathCommand) []geometry.Point {
	var pts []geometry.Point
	for _, cmd := range path {
		n := len(cmd)
		if n < 3 {
			continue
		}
		pts = append(pts, geometry.Pt(toFloat64(cmd[n-2]), toFloat64(cmd[n-1])))
	}
	return pts
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		return "[]", nil
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
