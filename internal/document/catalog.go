package document

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownTreeType       = errors.New("unknown tree type")
	ErrUnknownPipelineKind   = errors.New("unknown pipeline kind")
	ErrUnknownGuidelineShape = errors.New("unknown guideline shape")
)

type TreeCategory string

const (
	CategoryNew      TreeCategory = "nuevo"
	CategoryExisting TreeCategory = "existente"
)

type TreeTypeKey string

// TreeType is a catalog entry. Diameter is the canopy diameter in meters.
type TreeType struct {
	Key      TreeTypeKey  `json:"key"`
	Name     string       `json:"name"`
	Category TreeCategory `json:"category"`
	Diameter float64      `json:"diameter"`
	Color    string       `json:"color"`
	Icon     string       `json:"icon"`
}

const (
	colorNew      = "#4caf50"
	colorExisting = "#2196f3"
)

var catalog = map[TreeTypeKey]TreeType{
	"NUEVO_3M": {Key: "NUEVO_3M", Name: "Nuevo 3m", Category: CategoryNew, Diameter: 3, Color: colorNew, Icon: "🌱"},
	"NUEVO_4M": {Key: "NUEVO_4M", Name: "Nuevo 4m", Category: CategoryNew, Diameter: 4, Color: colorNew, Icon: "🌿"},
	"NUEVO_5M": {Key: "NUEVO_5M", Name: "Nuevo 5m", Category: CategoryNew, Diameter: 5, Color: colorNew, Icon: "🌲"},
	"NUEVO_6M": {Key: "NUEVO_6M", Name: "Nuevo 6m", Category: CategoryNew, Diameter: 6, Color: colorNew, Icon: "🌳"},
	"NUEVO_7M": {Key: "NUEVO_7M", Name: "Nuevo 7m", Category: CategoryNew, Diameter: 7, Color: colorNew, Icon: "🌴"},
	"NUEVO_8M": {Key: "NUEVO_8M", Name: "Nuevo 8m", Category: CategoryNew, Diameter: 8, Color: colorNew, Icon: "🌲"},

	"EXISTENTE_1M":  {Key: "EXISTENTE_1M", Name: "Exist. 1m", Category: CategoryExisting, Diameter: 1, Color: colorExisting, Icon: "🌿"},
	"EXISTENTE_2M":  {Key: "EXISTENTE_2M", Name: "Exist. 2m", Category: CategoryExisting, Diameter: 2, Color: colorExisting, Icon: "🌱"},
	"EXISTENTE_3M":  {Key: "EXISTENTE_3M", Name: "Exist. 3m", Category: CategoryExisting, Diameter: 3, Color: colorExisting, Icon: "🌲"},
	"EXISTENTE_4M":  {Key: "EXISTENTE_4M", Name: "Exist. 4m", Category: CategoryExisting, Diameter: 4, Color: colorExisting, Icon: "🌳"},
	"EXISTENTE_5M":  {Key: "EXISTENTE_5M", Name: "Exist. 5m", Category: CategoryExisting, Diameter: 5, Color: colorExisting, Icon: "🌴"},
	"EXISTENTE_6M":  {Key: "EXISTENTE_6M", Name: "Exist. 6m", Category: CategoryExisting, Diameter: 6, Color: colorExisting, Icon: "🌲"},
	"EXISTENTE_7M":  {Key: "EXISTENTE_7M", Name: "Exist. 7m", Category: CategoryExisting, Diameter: 7, Color: colorExisting, Icon: "🌳"},
	"EXISTENTE_8M":  {Key: "EXISTENTE_8M", Name: "Exist. 8m", Category: CategoryExisting, Diameter: 8, Color: colorExisting, Icon: "🌴"},
	"EXISTENTE_9M":  {Key: "EXISTENTE_9M", Name: "Exist. 9m", Category: CategoryExisting, Diameter: 9, Color: colorExisting, Icon: "🌲"},
	"EXISTENTE_10M": {Key: "EXISTENTE_10M", Name: "Exist. 10m", Category: CategoryExisting, Diameter: 10, Color: colorExisting, Icon: "🌳"},
}

// LookupTreeType returns the catalog entry for key.
func LookupTreeType(key TreeTypeKey) (TreeType, bool) {
	t, ok := catalog[key]
	return t, ok
}

// ParseTreeType validates a catalog key.
func ParseTreeType(key string) (TreeType, error) {
	t, ok := catalog[TreeTypeKey(key)]
	if !ok {
		return TreeType{}, fmt.Errorf("%w: %q", ErrUnknownTreeType, key)
	}
	return t, nil
}

// TreeTypes returns the catalog ordered by category (new first) then diameter.
func TreeTypes() []TreeType {
	out := make([]TreeType, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category == CategoryNew
		}
		return out[i].Diameter < out[j].Diameter
	})
	return out
}

// PipelineKind is the infrastructure type of a pipeline. The values are the
// ones stored in project files.
type PipelineKind string

const (
	KindGas      PipelineKind = "gas"
	KindWater    PipelineKind = "agua"
	KindElectric PipelineKind = "electrica"
)

// PipelineKinds lists every kind in display order.
var PipelineKinds = []PipelineKind{KindGas, KindWater, KindElectric}

// ParsePipelineKind accepts the stored value or its English name.
func ParsePipelineKind(s string) (PipelineKind, error) {
	switch s {
	case "gas":
		return KindGas, nil
	case "agua", "water":
		return KindWater, nil
	case "electrica", "electric":
		return KindElectric, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPipelineKind, s)
}

type PipelineStyle struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
	Name  string  `json:"name"`
}

var pipelineStyles = map[PipelineKind]PipelineStyle{
	KindGas:      {Color: "#ffc107", Width: 4, Name: "Tubería de Gas"},
	KindWater:    {Color: "#2196f3", Width: 4, Name: "Tubería de Agua"},
	KindElectric: {Color: "#ff5722", Width: 3, Name: "Red Eléctrica"},
}

// StyleFor returns the drawing style of a pipeline kind.
func StyleFor(kind PipelineKind) (PipelineStyle, bool) {
	s, ok := pipelineStyles[kind]
	return s, ok
}

type GuidelineShape string

const (
	ShapeLine     GuidelineShape = "line"
	ShapeTriangle GuidelineShape = "triangle"
	ShapeSquare   GuidelineShape = "square"
)

// ParseGuidelineShape validates a guideline shape name.
func ParseGuidelineShape(s string) (GuidelineShape, error) {
	switch GuidelineShape(s) {
	case ShapeLine, ShapeTriangle, ShapeSquare:
		return GuidelineShape(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGuidelineShape, s)
}
