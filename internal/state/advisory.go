package state

// Advisory flags a successful operation whose input is of doubtful
// quality. Advisories never block the operation.
type Advisory string

const (
	AdvisoryShortScaleLine   Advisory = "short_scale_line"
	AdvisorySelfIntersecting Advisory = "self_intersecting_polygon"
	AdvisoryCloseVertices    Advisory = "close_vertices"
	AdvisoryTightSpacing     Advisory = "spacing_below_minimum"
	AdvisoryLargeImage       Advisory = "large_image"
)

func (a Advisory) Message() string {
	switch a {
	case AdvisoryShortScaleLine:
		return "La línea de referencia es corta, la precisión de la escala es baja"
	case AdvisorySelfIntersecting:
		return "El polígono se auto-intersecta, el área puede ser incorrecta"
	case AdvisoryCloseVertices:
		return "El polígono tiene vértices muy cercanos"
	case AdvisoryTightSpacing:
		return "El espaciado está por debajo del mínimo recomendado"
	case AdvisoryLargeImage:
		return "Imagen muy grande, el rendimiento puede verse afectado"
	}
	return string(a)
}
