package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/reforesta/planner/backend-go/internal/engine"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// Screen pixels per terminal cell. Strokes are drawn on a braille
// micro-grid of 2x4 dots per cell.
const (
	cellW = 8.0
	cellH = 16.0
	dotW  = cellW / 2
	dotH  = cellH / 4
)

// markerMaxPx is the largest screen diameter drawn as a single glyph
// rather than an outline.
const markerMaxPx = 12.0

var imageBg = lipgloss.Color("#16241a")

type cell struct {
	mask  uint8
	glyph rune
	color string
	image bool
}

// canvas rasterises engine draw commands to a grid of terminal cells.
type canvas struct {
	cols, rows int
	cells      [][]cell
	// glyph picks the marker for an object id; trees get their category
	// glyph, everything else a dot. Only the first marker of an object in
	// a frame uses it.
	glyph  func(objectID string) (rune, bool)
	marked map[string]bool
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{}
	c.resize(cols, rows)
	return c
}

func (c *canvas) resize(cols, rows int) {
	c.cols, c.rows = max(cols, 1), max(rows, 1)
	c.cells = make([][]cell, c.rows)
	for y := range c.cells {
		c.cells[y] = make([]cell, c.cols)
	}
}

// pixelSize is the canvas size the engine should lay out for.
func (c *canvas) pixelSize() (w, h float64) {
	return float64(c.cols) * cellW, float64(c.rows) * cellH
}

// cellCenter returns the screen pixel at the middle of a cell.
func cellCenter(col, row int) geometry.Point {
	return geometry.Pt((float64(col)+0.5)*cellW, (float64(row)+0.5)*cellH)
}

func (c *canvas) reset() {
	for y := range c.cells {
		clear(c.cells[y])
	}
	c.marked = make(map[string]bool)
}

// Draw implements engine.Renderer.
func (c *canvas) Draw(commands []engine.DrawCommand) error {
	c.reset()
	m := view.Identity()
	var stack []view.Matrix2D

	for _, cmd := range commands {
		switch cmd.Op {
		case "save":
			stack = append(stack, m)
		case "restore":
			if n := len(stack); n > 0 {
				m, stack = stack[n-1], stack[:n-1]
			}
		case "transform":
			if len(cmd.Transform) == 6 {
				copy(m[:], cmd.Transform)
			}
		case "image":
			c.image(m.ApplyRect(geometry.Rect{Width: cmd.ImageWidth, Height: cmd.ImageHeight}))
		case "path":
			c.path(m, cmd)
		case "text":
			p := m.Apply(geometry.Pt(cmd.X, cmd.Y))
			c.text(p, cmd.Text, cmd.Fill)
		}
	}
	return nil
}

func (c *canvas) image(r geometry.Rect) {
	for row := 0; row < c.rows; row++ {
		for col := 0; col < c.cols; col++ {
			if r.Contains(cellCenter(col, row)) {
				c.cells[row][col].image = true
			}
		}
	}
}

func (c *canvas) path(m view.Matrix2D, cmd engine.DrawCommand) {
	bounds, ok := engine.PathBounds(cmd.Path)
	if !ok {
		return
	}
	screen := m.ApplyRect(bounds)
	if cmd.Stroke == "" && screen.Width <= markerMaxPx && screen.Height <= markerMaxPx {
		c.marker(screen.Center(), cmd.ObjectID, cmd.Fill)
		return
	}
	if cmd.Stroke == "" {
		return
	}

	var start, pen geometry.Point
	for _, seg := range cmd.Path {
		if len(seg) == 0 {
			continue
		}
		switch seg[0] {
		case "M":
			pen = m.Apply(segPoint(seg, 1))
			start = pen
		case "L":
			next := m.Apply(segPoint(seg, 1))
			c.line(pen, next, cmd.Stroke)
			pen = next
		case "C":
			// Sampled; markers are small enough for a few chords.
			p1, p2, p3 := m.Apply(segPoint(seg, 1)), m.Apply(segPoint(seg, 3)), m.Apply(segPoint(seg, 5))
			prev := pen
			for i := 1; i <= 8; i++ {
				next := cubic(pen, p1, p2, p3, float64(i)/8)
				c.line(prev, next, cmd.Stroke)
				prev = next
			}
			pen = p3
		case "Z":
			c.line(pen, start, cmd.Stroke)
			pen = start
		}
	}
}

func segPoint(seg engine.PathCommand, i int) geometry.Point {
	if i+1 >= len(seg) {
		return geometry.Point{}
	}
	x, _ := seg[i].(float64)
	y, _ := seg[i+1].(float64)
	return geometry.Pt(x, y)
}

func cubic(p0, p1, p2, p3 geometry.Point, t float64) geometry.Point {
	u := 1 - t
	a, b, cc, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return geometry.Pt(
		a*p0.X+b*p1.X+cc*p2.X+d*p3.X,
		a*p0.Y+b*p1.Y+cc*p2.Y+d*p3.Y,
	)
}

func (c *canvas) marker(p geometry.Point, objectID, color string) {
	col, row := int(math.Floor(p.X/cellW)), int(math.Floor(p.Y/cellH))
	if !c.inside(col, row) {
		return
	}
	g := '•'
	if c.glyph != nil && objectID != "" && !c.marked[objectID] {
		c.marked[objectID] = true
		if tg, ok := c.glyph(objectID); ok {
			g = tg
		}
	}
	cl := &c.cells[row][col]
	// A tree glyph is not replaced by a later vertex or health dot.
	if cl.glyph != 0 && cl.glyph != '•' && g == '•' {
		return
	}
	cl.glyph = g
	cl.color = hexColor(color)
}

// line draws a segment on the micro-grid with Bresenham's algorithm.
func (c *canvas) line(a, b geometry.Point, color string) {
	x0, y0 := int(math.Floor(a.X/dotW)), int(math.Floor(a.Y/dotH))
	x1, y1 := int(math.Floor(b.X/dotW)), int(math.Floor(b.Y/dotH))
	// Skip segments far outside the grid.
	limit := 4 * (c.cols + c.rows) * 4
	if abs(x0) > limit || abs(y0) > limit || abs(x1) > limit || abs(y1) > limit {
		return
	}
	dx, sx := abs(x1-x0), 1
	if x0 > x1 {
		sx = -1
	}
	dy, sy := -abs(y1-y0), 1
	if y0 > y1 {
		sy = -1
	}
	col := hexColor(color)
	err := dx + dy
	for {
		c.dot(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func (c *canvas) dot(mx, my int, color string) {
	if mx < 0 || my < 0 {
		return
	}
	col, row := mx/2, my/4
	if !c.inside(col, row) {
		return
	}
	cl := &c.cells[row][col]
	cl.mask |= brailleBits[mx%2][my%4]
	if cl.glyph == 0 {
		cl.color = color
	}
}

func (c *canvas) text(p geometry.Point, s, color string) {
	runes := []rune(s)
	row := int(math.Floor(p.Y / cellH))
	col := int(math.Floor(p.X/cellW)) - len(runes)/2
	for i, r := range runes {
		if c.inside(col+i, row) {
			cl := &c.cells[row][col+i]
			cl.glyph, cl.color = r, hexColor(color)
		}
	}
}

func (c *canvas) inside(col, row int) bool {
	return col >= 0 && row >= 0 && col < c.cols && row < c.rows
}

// hexColor reduces a CSS color to #rrggbb, dropping any alpha suffix.
// Other notations give "".
func hexColor(s string) string {
	if strings.HasPrefix(s, "#") && len(s) >= 7 {
		return s[:7]
	}
	return ""
}

func (cl cell) char() rune {
	switch {
	case cl.glyph != 0:
		return cl.glyph
	case cl.mask != 0:
		return rune(0x2800 + int(cl.mask))
	}
	return ' '
}

// Plain returns the grid without colors.
func (c *canvas) Plain() string {
	var b strings.Builder
	for y, row := range c.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		for _, cl := range row {
			b.WriteRune(cl.char())
		}
	}
	return b.String()
}

// String renders the grid with colors, one style per run of equal cells.
func (c *canvas) String() string {
	lines := make([]string, len(c.cells))
	for y, row := range c.cells {
		var (
			b   strings.Builder
			run strings.Builder
			cur cell
		)
		flush := func() {
			if run.Len() == 0 {
				return
			}
			st := lipgloss.NewStyle()
			if cur.color != "" {
				st = st.Foreground(lipgloss.Color(cur.color))
			}
			if cur.image {
				st = st.Background(imageBg)
			}
			b.WriteString(st.Render(run.String()))
			run.Reset()
		}
		for x, cl := range row {
			if x > 0 && (cl.color != cur.color || cl.image != cur.image) {
				flush()
			}
			cur = cl
			run.WriteRune(cl.char())
		}
		flush()
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
