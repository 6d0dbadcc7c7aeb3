package tool

import (
	"errors"

	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
)

type rejection struct {
	err   error
	sev   notify.Severity
	title string
	text  string
}

// rejections maps refusals to user-facing messages. The first match wins.
var rejections = []rejection{
	{state.ErrNoImage, notify.Warning, "Imagen Requerida", "Primero carga una imagen satelital"},
	{state.ErrOutOfBounds, notify.Warning, "Posición Inválida", "El árbol debe estar dentro de la imagen"},
	{state.ErrTooClose, notify.Warning, "Muy Cerca", "Mantén la distancia mínima entre árboles"},
	{state.ErrUnknownTreeType, notify.Error, "Tipo Inválido", "Tipo de árbol no reconocido"},
	{state.ErrUnknownPipelineKind, notify.Error, "Tipo Inválido", "Tipo de tubería no válido"},
	{state.ErrUnknownShape, notify.Error, "Tipo Inválido", "Tipo de línea guía no válido"},
	{state.ErrNothingToUndo, notify.Warning, "Sin Acciones", "No hay acciones para deshacer"},
	{state.ErrNothingToRedo, notify.Warning, "Sin Acciones", "No hay acciones para rehacer"},
	{state.ErrTooManyPoints, notify.Warning, "Límite de Puntos", "Se alcanzó el número máximo de puntos"},
	{state.ErrNoScaleLine, notify.Error, "Línea de Referencia Requerida", "Primero dibuja una línea de referencia en la imagen"},
	{state.ErrLineTooShort, notify.Error, "Línea Muy Corta", "Dibuja una línea más larga para mayor precisión"},
	{state.ErrLengthOutOfRange, notify.Error, "Longitud Inválida", "Ingresa una longitud real entre 0.001 y 1000 metros"},
	{state.ErrScaleOutOfRange, notify.Error, "Escala Fuera de Rango", "La escala resultante no es razonable"},
	{state.ErrScaleRequired, notify.Error, "Escala Requerida", "Define la escala primero"},
	{state.ErrPolygonRequired, notify.Error, "Área Requerida", "Define un área antes de plantar en patrón"},
	{state.ErrInvalidSpacing, notify.Error, "Distancia Inválida", "El espaciado indicado no es válido"},
	{state.ErrUnknownPattern, notify.Error, "Patrón Inválido", "Patrón de plantación no reconocido"},
	{state.ErrUnknownPreset, notify.Error, "Escala No Encontrada", "El tipo de escala predefinida no existe"},
	{state.ErrNothingToClear, notify.Warning, "Sin Datos", "No hay nada que limpiar"},
	{state.ErrLoadInProgress, notify.Warning, "Carga en Curso", "Espera a que termine la carga actual"},
	{state.ErrNotFound, notify.Warning, "No Encontrado", "El elemento ya no existe"},
}

// report surfaces a refused operation. Unknown errors are shown verbatim.
func (m *Machine) report(err error) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			m.notify.Notify(r.sev, r.title, r.text)
			m.log.Debug("operation rejected", "error", err)
			return
		}
	}
	m.notify.Notify(notify.Error, "Error", err.Error())
}

func (m *Machine) advise(advisories []state.Advisory) {
	for _, a := range advisories {
		m.notify.Notify(notify.Warning, "Advertencia", a.Message())
	}
}
