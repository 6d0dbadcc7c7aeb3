package document

import (
	"errors"
	"fmt"
	"time"

	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

var ErrUnknownTemplate = errors.New("unknown project template")

const (
	TemplateBasic = "basic"
	TemplateUrban = "urban"
	TemplateRural = "rural"
)

// Templates lists the template names accepted by NewFromTemplate.
var Templates = []string{TemplateBasic, TemplateUrban, TemplateRural}

// NewFromTemplate returns a starter project. Urban layouts use smaller
// trees on a tight grid, rural layouts larger trees with more room.
func NewFromTemplate(name string) (*ProjectData, error) {
	now := time.Now().UTC()

	switch name {
	case TemplateBasic, "":
		return NewEmptyProject("Proyecto Básico de Reforestación"), nil

	case TemplateUrban:
		p := NewEmptyProject("Reforestación Urbana")
		types := []TreeTypeKey{"NUEVO_3M", "NUEVO_4M", "EXISTENTE_2M", "EXISTENTE_3M"}
		for i := 0; i < 20; i++ {
			p.Trees = append(p.Trees, templateTree(types[i%len(types)],
				100+float64(i%5)*80, 100+float64(i/5)*60, now))
		}
		p.Polygon = []geometry.Point{
			geometry.Pt(50, 50), geometry.Pt(450, 50), geometry.Pt(450, 350), geometry.Pt(50, 350),
		}
		return p, nil

	case TemplateRural:
		p := NewEmptyProject("Reforestación Rural")
		types := []TreeTypeKey{"NUEVO_5M", "NUEVO_6M", "NUEVO_7M", "EXISTENTE_4M", "EXISTENTE_5M"}
		for i := 0; i < 15; i++ {
			p.Trees = append(p.Trees, templateTree(types[i%len(types)],
				150+float64(i%3)*120, 150+float64(i/3)*100, now))
		}
		p.Polygon = []geometry.Point{
			geometry.Pt(100, 100), geometry.Pt(500, 80), geometry.Pt(520, 400),
			geometry.Pt(300, 450), geometry.Pt(80, 300),
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

func templateTree(key TreeTypeKey, x, y float64, at time.Time) Tree {
	return Tree{
		ID:        ID(typeid.NewTreeID()),
		Type:      key,
		X:         x,
		Y:         y,
		PlantedAt: at,
		Health:    1,
	}
}
