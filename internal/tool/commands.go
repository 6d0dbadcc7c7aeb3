package tool

import (
	"errors"
	"fmt"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/view"
)

// Toolbar commands. Each one runs the matching state operation and tells
// the user how it went; the error is returned as well for hosts that care.

func (m *Machine) StartScaling() error {
	if err := m.state.StartScaling(); err != nil {
		m.report(err)
		return err
	}
	m.preview = nil
	m.notify.Notify(notify.Info, "Modo Escalado", "Dibuja una línea sobre una distancia conocida en la imagen")
	return nil
}

// ApplyScale sets the scale from the drawn reference line.
func (m *Machine) ApplyScale(realLength float64) (state.ScaleResult, error) {
	res, err := m.state.ApplyScaleLine(realLength)
	if err != nil {
		m.report(err)
		return res, err
	}
	m.notify.Notify(notify.Success, "Escala Definida", fmt.Sprintf("Escala establecida: 1 píxel = %.4f metros", res.Scale))
	m.advise(res.Advisories)
	return res, nil
}

func (m *Machine) ApplyPreset(name string) (float64, error) {
	scale, err := m.state.ApplyPreset(name)
	if err != nil {
		m.report(err)
		return 0, err
	}
	m.notify.Notify(notify.Success, "Escala Predefinida", fmt.Sprintf("Escala establecida: 1 píxel = %.4f metros", scale))
	return scale, nil
}

func (m *Machine) StartPolygon() error {
	if err := m.state.StartPolygon(); err != nil {
		m.report(err)
		return err
	}
	m.preview = nil
	m.notify.Notify(notify.Info, "Modo Delimitación", "Haz clic para agregar puntos del perímetro. Doble clic para finalizar.")
	return nil
}

func (m *Machine) FinishPolygon() (state.PolygonResult, error) {
	res, err := m.state.FinishPolygon()
	if errors.Is(err, state.ErrTooFewPoints) {
		m.notify.Notify(notify.Error, "Polígono Incompleto", "Se necesitan al menos 3 puntos para crear un área")
		return res, err
	}
	if err != nil {
		m.report(err)
		return res, err
	}
	if res.AreaM2 != nil {
		m.notify.Notify(notify.Success, "Área Delimitada", fmt.Sprintf("Área calculada: %.2f m²", *res.AreaM2))
	} else {
		m.notify.Notify(notify.Warning, "Escala No Definida", "Define la escala para calcular el área en metros")
	}
	m.advise(res.Advisories)
	return res, nil
}

func (m *Machine) ClearPolygon() error {
	if err := m.state.ClearPolygon(); err != nil {
		m.notify.Notify(notify.Warning, "Sin Área", "No hay ningún área para limpiar")
		return err
	}
	m.notify.Notify(notify.Success, "Área Eliminada", "El perímetro ha sido eliminado")
	return nil
}

func (m *Machine) StartPipeline(kind document.PipelineKind) error {
	if err := m.state.StartPipeline(kind); err != nil {
		m.report(err)
		return err
	}
	m.preview = nil
	style, _ := document.StyleFor(kind)
	m.notify.Notify(notify.Info, "Modo Infraestructura", fmt.Sprintf("Dibujando %s. Haz clic para agregar puntos.", style.Name))
	return nil
}

func (m *Machine) FinishPipeline() (document.Pipeline, error) {
	p, err := m.state.FinishPipeline()
	if errors.Is(err, state.ErrTooFewPoints) {
		m.notify.Notify(notify.Error, "Tubería Incompleta", "Se necesitan al menos 2 puntos para crear una tubería")
		return p, err
	}
	if err != nil {
		m.report(err)
		return p, err
	}
	m.preview = nil
	m.notify.Notify(notify.Success, "Infraestructura Agregada", "Tubería completada exitosamente")
	return p, nil
}

func (m *Machine) ClearPipelines() error {
	if err := m.state.ClearPipelines(); err != nil {
		m.notify.Notify(notify.Warning, "Sin Infraestructura", "No hay tuberías para limpiar")
		return err
	}
	m.preview = nil
	m.notify.Notify(notify.Success, "Infraestructura Eliminada", "Todas las tuberías han sido eliminadas")
	return nil
}

var shapeNames = map[document.GuidelineShape]string{
	document.ShapeLine:     "línea recta",
	document.ShapeTriangle: "triángulo",
	document.ShapeSquare:   "cuadrado",
}

func (m *Machine) StartGuideline(shape document.GuidelineShape) error {
	if err := m.state.StartGuideline(shape); err != nil {
		m.report(err)
		return err
	}
	m.preview = nil
	m.notify.Notify(notify.Info, "Líneas Guía", fmt.Sprintf("Dibujando %s. Haz clic para agregar puntos.", shapeNames[shape]))
	return nil
}

func (m *Machine) FinishGuideline() (document.Guideline, error) {
	g, err := m.state.FinishGuideline()
	m.preview = nil
	if errors.Is(err, state.ErrTooFewPoints) {
		m.notify.Notify(notify.Error, "Línea Incompleta", "Se necesitan al menos 2 puntos")
		return g, err
	}
	if err != nil {
		m.report(err)
		return g, err
	}
	m.notify.Notify(notify.Success, "Línea Guía Creada", "Línea guía agregada al proyecto")
	return g, nil
}

func (m *Machine) ClearGuidelines() error {
	if err := m.state.ClearGuidelines(); err != nil {
		m.notify.Notify(notify.Warning, "Sin Líneas Guía", "No hay líneas guía para limpiar")
		return err
	}
	m.preview = nil
	m.notify.Notify(notify.Success, "Líneas Guía Eliminadas", "Todas las líneas guía han sido eliminadas")
	return nil
}

func (m *Machine) ToggleSnapToGuides() bool {
	on := m.state.ToggleSnapToGuides()
	m.notify.Notify(notify.Info, "Snap a Guías", "Snap "+onOff(on))
	return on
}

func (m *Machine) ToggleGuidelineMeasurements() bool {
	on := m.state.ToggleGuidelineMeasurements()
	m.notify.Notify(notify.Info, "Medidas de Líneas Guía", "Medidas "+onOff(on))
	return on
}

func onOff(on bool) string {
	if on {
		return "activado"
	}
	return "desactivado"
}

func (m *Machine) Undo() error {
	if err := m.state.Undo(); err != nil {
		m.report(err)
		return err
	}
	return nil
}

func (m *Machine) Redo() error {
	if err := m.state.Redo(); err != nil {
		m.report(err)
		return err
	}
	return nil
}

// DeleteSelected removes the selected tree or pipeline. It reports false
// when nothing was selected.
func (m *Machine) DeleteSelected() (bool, error) {
	s := m.state
	sel := s.Selection()
	var name string
	switch sel.Kind {
	case state.SelectTree:
		if t, ok := s.Tree(sel.ID); ok {
			if cfg, ok := t.Config(); ok {
				name = cfg.Name
			}
		}
	case state.SelectPipeline:
		if p, ok := s.Pipeline(sel.ID); ok {
			name = p.Name
		}
	}
	deleted, err := s.DeleteSelected()
	if err != nil {
		m.report(err)
		return false, err
	}
	if !deleted {
		return false, nil
	}
	if sel.Kind == state.SelectTree {
		m.notify.Notify(notify.Success, "Árbol Eliminado", name+" removido del proyecto")
	} else {
		m.notify.Notify(notify.Success, "Infraestructura Eliminada", name+" removida del proyecto")
	}
	return true, nil
}

// Cancel is the Escape key: it abandons the operation in progress and
// returns to normal mode.
func (m *Machine) Cancel() {
	s := m.state
	var what string
	switch {
	case s.Mode() == state.ModePipeline:
		if _, ok := s.CurrentPipeline(); ok {
			what = "Dibujo de tubería cancelado"
		}
	case s.Mode() == state.ModePolygon:
		what = "Delimitación de área cancelada"
	case s.Mode() == state.ModeScaling:
		what = "Definición de escala cancelada"
	case s.GuidelineMode() != state.GuideNone:
		what = "Dibujo de línea guía cancelado"
	}
	s.Cancel()
	m.preview = nil
	m.endDrag()
	if what != "" {
		m.notify.Notify(notify.Info, "Operación Cancelada", what)
	}
}

func (m *Machine) ZoomIn() {
	m.state.SetView(view.ZoomIn(m.state.View(), m.canvasW, m.canvasH))
}

func (m *Machine) ZoomOut() {
	m.state.SetView(view.ZoomOut(m.state.View(), m.canvasW, m.canvasH))
}

// ResetZoom fits the image to the canvas, or restores the default view
// when there is no image.
func (m *Machine) ResetZoom() {
	img := m.state.Image()
	if img == nil {
		m.state.SetView(view.Default())
		return
	}
	m.state.SetView(view.Fit(float64(img.Width), float64(img.Height), m.canvasW, m.canvasH))
}

// PlantPattern fills the boundary with trees. spacing is in meters.
func (m *Machine) PlantPattern(pattern state.Pattern, key document.TreeTypeKey, spacing float64) ([]document.Tree, error) {
	planted, err := m.state.PlantPattern(pattern, key, spacing)
	if err != nil {
		m.report(err)
		return nil, err
	}
	if len(planted) == 0 {
		m.notify.Notify(notify.Warning, "Sin Espacio", "Ningún punto del patrón cae dentro del área")
		return planted, nil
	}
	m.notify.Notify(notify.Success, "Patrón Plantado", fmt.Sprintf("%d árboles plantados en patrón %s", len(planted), pattern))
	return planted, nil
}

func (m *Machine) OptimizeSpacing() (found, resolved int, err error) {
	found, resolved, err = m.state.OptimizeSpacing()
	switch {
	case err != nil:
		m.notify.Notify(notify.Warning, "Insuficientes Datos", "Se necesitan al menos 2 árboles y escala definida")
	case found == 0:
		m.notify.Notify(notify.Success, "Espaciado Óptimo", "No se encontraron conflictos de espaciado")
	case resolved == found:
		m.notify.Notify(notify.Success, "Espaciado Optimizado", fmt.Sprintf("%d conflictos resueltos", resolved))
	default:
		m.notify.Notify(notify.Warning, "Optimización Limitada", fmt.Sprintf("%d de %d conflictos resueltos", resolved, found))
	}
	return found, resolved, err
}
