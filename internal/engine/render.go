package engine

import (
	"fmt"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/tool"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// Renderer draws a compiled frame onto a host surface.
type Renderer interface {
	Draw(commands []DrawCommand) error
}

// BackgroundAssetID is the image asset id of the background image.
const BackgroundAssetID = "background"

const (
	colorSelected  = "#ff0000"
	colorPolygon   = "#007bff"
	fillPolygon    = "rgba(0, 123, 255, 0.1)"
	colorGuideline = "#9c27b0"
	colorScaleLine = "#ff0000"
	colorLabel     = "#000000"
	colorNewCore   = "#2e7d32"
	colorOldCore   = "#1565c0"
	colorDistance  = "#607d8b"
)

// Options tunes a frame beyond what the state holds.
type Options struct {
	// Preview is the rubber-band segment from the last drawn point to the
	// cursor, if any.
	Preview *tool.Preview
	// ShowDistances annotates each tree with the distance to its nearest
	// neighbour. It needs a scale.
	ShowDistances bool
}

// Compile produces the draw commands for one frame in fixed z-order:
// background, polygon, guidelines, pipelines, scale line, preview, trees
// and distance annotations. Line widths and marker radii are divided by
// the zoom so they keep their on-screen size.
func Compile(s *state.State, v view.View, opts Options) []DrawCommand {
	c := compiler{s: s, z: view.ClampZoom(v.Zoom)}
	c.scale, c.hasScale = s.Scale()

	c.emit(DrawCommand{Op: "save"})
	c.emit(DrawCommand{Op: "transform", Transform: v.Matrix().ToSlice()})
	c.background()
	c.polygon()
	c.guidelines()
	c.pipelines()
	c.scaleLine()
	c.preview(opts.Preview)
	c.trees()
	if opts.ShowDistances {
		c.distances()
	}
	c.emit(DrawCommand{Op: "restore"})
	return c.out
}

type compiler struct {
	s        *state.State
	z        float64
	scale    float64
	hasScale bool
	out      []DrawCommand
}

func (c *compiler) emit(cmd DrawCommand) { c.out = append(c.out, cmd) }

// px converts an on-screen size to world pixels.
func (c *compiler) px(screen float64) float64 { return screen / c.z }

func (c *compiler) dash(on, off float64) []float64 {
	return []float64{c.px(on), c.px(off)}
}

func (c *compiler) dot(id string, p geometry.Point, screenR float64, color string) {
	c.emit(DrawCommand{Op: "path", ObjectID: id, Path: circlePath(p, c.px(screenR)), Fill: color})
}

func (c *compiler) background() {
	img := c.s.Image()
	if img == nil {
		return
	}
	c.emit(DrawCommand{
		Op:           "image",
		ObjectID:     BackgroundAssetID,
		ImageAssetID: BackgroundAssetID,
		ImageWidth:   float64(img.Width),
		ImageHeight:  float64(img.Height),
	})
}

func (c *compiler) polygon() {
	poly := c.s.Polygon()
	if !c.s.LayerVisibility().Polygon || len(poly) == 0 {
		return
	}
	// The boundary stays open while it is being drawn.
	closed := c.s.Mode() != state.ModePolygon
	cmd := DrawCommand{
		Op:          "path",
		ObjectID:    "polygon",
		Path:        polylinePath(poly, closed),
		Stroke:      colorPolygon,
		StrokeWidth: c.px(3),
	}
	if closed {
		cmd.Fill = fillPolygon
	}
	c.emit(cmd)
	for _, p := range poly {
		c.dot("polygon", p, 4, colorPolygon)
	}
}

func (c *compiler) guidelines() {
	measure := c.s.ShowGuidelineMeasurements() && c.hasScale
	for _, g := range c.s.Guidelines() {
		if !g.Visible || len(g.Points) < 2 {
			continue
		}
		c.guideline(g, c.dash(10, 5), 0.7, measure)
	}
	if g, ok := c.s.CurrentGuideline(); ok && len(g.Points) > 0 {
		c.guideline(g, c.dash(5, 5), 0.9, measure)
	}
}

func (c *compiler) guideline(g document.Guideline, dash []float64, opacity float64, measure bool) {
	id := string(g.ID)
	c.emit(DrawCommand{
		Op:          "path",
		ObjectID:    id,
		Path:        polylinePath(g.Points, false),
		Stroke:      colorGuideline,
		StrokeWidth: c.px(2),
		Dash:        dash,
		Opacity:     opacity,
	})
	for _, p := range g.Points {
		c.dot(id, p, 3, colorGuideline)
	}
	if !measure {
		return
	}
	for i := 0; i+1 < len(g.Points); i++ {
		c.measurement(g.Points[i], g.Points[i+1], 12, 3, "rgba(255, 255, 255, 0.9)")
	}
}

// measurement labels the segment ab with its length in meters.
func (c *compiler) measurement(a, b geometry.Point, fontPx, padPx float64, bg string) {
	mid := geometry.Midpoint(a, b)
	c.emit(DrawCommand{
		Op:         "text",
		Text:       fmt.Sprintf("%.1fm", geometry.Distance(a, b)*c.scale),
		X:          mid.X,
		Y:          mid.Y,
		Font:       fmt.Sprintf("bold %gpx Arial", c.px(fontPx)),
		Align:      "center",
		Fill:       colorGuideline,
		Background: bg,
		Padding:    c.px(padPx),
		Opacity:    0.9,
	})
}

func (c *compiler) pipelines() {
	if !c.s.LayerVisibility().Pipelines {
		return
	}
	sel := c.s.Selection()
	for _, p := range c.s.Pipelines() {
		style, ok := document.StyleFor(p.Kind)
		if !ok || len(p.Points) < 2 {
			continue
		}
		stroke := style.Color
		if sel.Kind == state.SelectPipeline && sel.ID == p.ID {
			stroke = colorSelected
		}
		id := string(p.ID)
		c.emit(DrawCommand{
			Op:          "path",
			ObjectID:    id,
			Path:        polylinePath(p.Points, false),
			Stroke:      stroke,
			StrokeWidth: c.px(style.Width),
			LineCap:     "round",
		})
		for _, pt := range p.Points {
			c.dot(id, pt, 3, style.Color)
		}
	}

	cur, ok := c.s.CurrentPipeline()
	if !ok || len(cur.Points) == 0 {
		return
	}
	style, ok := document.StyleFor(cur.Kind)
	if !ok {
		return
	}
	c.emit(DrawCommand{
		Op:          "path",
		Path:        polylinePath(cur.Points, false),
		Stroke:      style.Color,
		StrokeWidth: c.px(style.Width),
		Dash:        c.dash(5, 5),
	})
	for _, pt := range cur.Points {
		c.dot("", pt, 3, style.Color)
	}
}

func (c *compiler) scaleLine() {
	line, ok := c.s.ScaleLine()
	if !ok || c.s.Mode() != state.ModeScaling {
		return
	}
	c.emit(DrawCommand{
		Op:          "path",
		ObjectID:    "scaleLine",
		Path:        segmentPath(line.Start, line.End),
		Stroke:      colorScaleLine,
		StrokeWidth: c.px(3),
		LineCap:     "round",
	})
	c.dot("scaleLine", line.Start, 4, colorScaleLine)
	c.dot("scaleLine", line.End, 4, colorScaleLine)
}

func (c *compiler) preview(p *tool.Preview) {
	if p == nil {
		return
	}
	if p.Guideline {
		c.emit(DrawCommand{
			Op:          "path",
			Path:        segmentPath(p.Start, p.End),
			Stroke:      colorGuideline,
			StrokeWidth: c.px(2),
			Dash:        c.dash(8, 4),
			Opacity:     0.6,
		})
		if c.hasScale && c.s.ShowGuidelineMeasurements() {
			c.measurement(p.Start, p.End, 14, 4, "rgba(255, 255, 255, 0.8)")
		}
		return
	}
	style, ok := document.StyleFor(p.Kind)
	if !ok {
		return
	}
	c.emit(DrawCommand{
		Op:          "path",
		Path:        segmentPath(p.Start, p.End),
		Stroke:      style.Color,
		StrokeWidth: c.px(style.Width),
		Dash:        c.dash(10, 5),
		Opacity:     0.6,
	})
}

func (c *compiler) trees() {
	layers := c.s.LayerVisibility()
	sel := c.s.Selection()
	for _, t := range c.s.Trees() {
		cfg, ok := t.Config()
		if !ok {
			continue
		}
		id := string(t.ID)
		pos := t.Position()
		r := t.CanopyRadius(c.scale)
		selected := sel.Kind == state.SelectTree && sel.ID == t.ID

		if layers.GrowthCircles {
			stroke, width := cfg.Color, c.px(2)
			if selected {
				stroke, width = colorSelected, c.px(3)
			}
			c.emit(DrawCommand{
				Op:          "path",
				ObjectID:    id,
				Path:        circlePath(pos, r),
				Fill:        cfg.Color + "20",
				Stroke:      stroke,
				StrokeWidth: width,
			})
		}

		core := colorOldCore
		if cfg.Category == document.CategoryNew {
			core = colorNewCore
		}
		if selected {
			core = colorSelected
		}
		c.dot(id, pos, 4, core)

		if layers.TreeLabels {
			c.emit(DrawCommand{
				Op:    "text",
				Text:  fmt.Sprintf("%gm", cfg.Diameter),
				X:     pos.X,
				Y:     pos.Y - r - c.px(8),
				Font:  fmt.Sprintf("%gpx Arial", c.px(12)),
				Align: "center",
				Fill:  colorLabel,
			})
		}

		if t.Health > 0 && t.Health < 1 {
			c.dot(id, geometry.Pt(pos.X+r*0.7, pos.Y-r*0.7), 3, healthColor(t.Health))
		}
	}
}

func healthColor(h float64) string {
	switch {
	case h > 0.7:
		return "#ffeb3b"
	case h > 0.4:
		return "#ff9800"
	}
	return "#f44336"
}

// distances draws a dashed line from every tree to its nearest neighbour,
// labelled in meters.
func (c *compiler) distances() {
	trees := c.s.Trees()
	if !c.hasScale || len(trees) < 2 {
		return
	}
	for i, t := range trees {
		j := nearest(trees, i)
		a, b := t.Position(), trees[j].Position()
		c.emit(DrawCommand{
			Op:          "path",
			Path:        segmentPath(a, b),
			Stroke:      colorDistance,
			StrokeWidth: c.px(1),
			Dash:        c.dash(4, 4),
			Opacity:     0.8,
		})
		mid := geometry.Midpoint(a, b)
		c.emit(DrawCommand{
			Op:    "text",
			Text:  fmt.Sprintf("%.1fm", geometry.Distance(a, b)*c.scale),
			X:     mid.X,
			Y:     mid.Y,
			Font:  fmt.Sprintf("%gpx Arial", c.px(10)),
			Align: "center",
			Fill:  colorDistance,
		})
	}
}

// nearest returns the index of the tree closest to trees[i]. There must be
// at least two trees.
func nearest(trees []document.Tree, i int) int {
	best, bestDist := -1, 0.0
	for j := range trees {
		if j == i {
			continue
		}
		d := geometry.Distance(trees[i].Position(), trees[j].Position())
		if best < 0 || d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}
