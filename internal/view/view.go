// Package view maps between screen (canvas pixel) and world (image pixel)
// coordinates and answers hit-test queries in world space.
package view

import (
	"math"

	"github.com/reforesta/planner/backend-go/internal/geometry"
)

const (
	MinZoom = 0.1
	MaxZoom = 5.0

	WheelInFactor  = 1.1
	WheelOutFactor = 0.9
	StepInFactor   = 1.2
	StepOutFactor  = 0.8

	// FitMargin leaves a border when fitting an image to the canvas.
	FitMargin = 0.9
)

// View is the pan/zoom state. A screen point s maps to world (s - pan) / zoom.
type View struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
}

func Default() View {
	return View{Zoom: 1}
}

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN and non-positive values
// become 1.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// Matrix is the world to screen transform.
func (v View) Matrix() Matrix2D {
	return Translate(v.PanX, v.PanY).Multiply(Scale(v.Zoom, v.Zoom))
}

func ScreenToWorld(p geometry.Point, v View) geometry.Point {
	return geometry.Point{X: (p.X - v.PanX) / v.Zoom, Y: (p.Y - v.PanY) / v.Zoom}
}

func WorldToScreen(p geometry.Point, v View) geometry.Point {
	return v.Matrix().Apply(p)
}

// ZoomAt returns v zoomed to newZoom (clamped) such that the world point
// under pivot stays under pivot.
func ZoomAt(newZoom float64, pivot geometry.Point, v View) View {
	newZoom = ClampZoom(newZoom)
	if newZoom == v.Zoom {
		return v
	}
	change := newZoom / v.Zoom
	return View{
		Zoom: newZoom,
		PanX: pivot.X - (pivot.X-v.PanX)*change,
		PanY: pivot.Y - (pivot.Y-v.PanY)*change,
	}
}

// Wheel applies one wheel notch at the cursor: positive deltaY zooms out.
func Wheel(deltaY float64, cursor geometry.Point, v View) View {
	factor := WheelInFactor
	if deltaY > 0 {
		factor = WheelOutFactor
	}
	return ZoomAt(v.Zoom*factor, cursor, v)
}

// ZoomIn zooms one step about the centre of a canvas of the given size.
func ZoomIn(v View, canvasW, canvasH float64) View {
	return ZoomAt(v.Zoom*StepInFactor, geometry.Pt(canvasW/2, canvasH/2), v)
}

func ZoomOut(v View, canvasW, canvasH float64) View {
	return ZoomAt(v.Zoom*StepOutFactor, geometry.Pt(canvasW/2, canvasH/2), v)
}

// Pan shifts the view by a screen-space delta.
func Pan(v View, dx, dy float64) View {
	v.PanX += dx
	v.PanY += dy
	return v
}

// Fit centres an image in the canvas at the largest zoom that leaves a
// FitMargin border. Without usable sizes it returns Default.
func Fit(imgW, imgH, canvasW, canvasH float64) View {
	if imgW <= 0 || imgH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Default()
	}
	zoom := ClampZoom(math.Min(canvasW/imgW, canvasH/imgH) * FitMargin)
	return View{
		Zoom: zoom,
		PanX: (canvasW - imgW*zoom) / 2,
		PanY: (canvasH - imgH*zoom) / 2,
	}
}

// Resize keeps the pan proportional to the canvas size when it changes.
func Resize(v View, oldW, oldH, newW, newH float64) View {
	if oldW > 0 && oldH > 0 {
		v.PanX = v.PanX / oldW * newW
		v.PanY = v.PanY / oldH * newH
	}
	return v
}

// VisibleWorld returns the world rectangle shown by a canvas of the given size.
func (v View) VisibleWorld(canvasW, canvasH float64) geometry.Rect {
	return v.Matrix().Invert().ApplyRect(geometry.Rect{Width: canvasW, Height: canvasH})
}

// PixelTolerance converts an on-screen distance to world units at zoom.
func PixelTolerance(screenPx, zoom float64) float64 {
	if zoom <= 0 {
		return screenPx
	}
	return screenPx / zoom
}
