package document

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/reforesta/planner/backend-go/internal/geometry"
)

// CurrentVersion is the ProjectData version written by this package.
const CurrentVersion = "1.0"

// DefaultProjectName is used for new projects and files without a name.
const DefaultProjectName = "Proyecto de Reforestación"

// ID is an entity identifier. Older project files stored numeric ids
// (a millisecond timestamp plus a random fraction), so decoding accepts
// both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*id = ID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

type Tree struct {
	ID        ID          `json:"id"`
	Type      TreeTypeKey `json:"type"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	PlantedAt time.Time   `json:"plantedDate"`
	Growth    float64     `json:"growth"`
	Health    float64     `json:"health"`
	Notes     string      `json:"notes,omitempty"`
}

// Position returns the tree's world position.
func (t Tree) Position() geometry.Point {
	return geometry.Point{X: t.X, Y: t.Y}
}

// Config returns the catalog entry for the tree's type.
func (t Tree) Config() (TreeType, bool) {
	return LookupTreeType(t.Type)
}

// CanopyRadius returns the canopy radius in pixels. With a scale (meters per
// pixel, > 0) the radius is diameter/2/scale; without one it falls back to
// diameter*10 so trees stay visible before the scale is set.
func (t Tree) CanopyRadius(scale float64) float64 {
	cfg, ok := t.Config()
	if !ok {
		return 0
	}
	if scale > 0 {
		return cfg.Diameter / 2 / scale
	}
	return cfg.Diameter * 10
}

type Pipeline struct {
	ID     ID               `json:"id"`
	Kind   PipelineKind     `json:"type"`
	Name   string           `json:"name"`
	Points []geometry.Point `json:"points"`
}

// Clone returns a deep copy.
func (p Pipeline) Clone() Pipeline {
	p.Points = geometry.ClonePoints(p.Points)
	return p
}

type Guideline struct {
	ID      ID               `json:"id"`
	Shape   GuidelineShape   `json:"type"`
	Points  []geometry.Point `json:"points"`
	Visible bool             `json:"visible"`
}

// Clone returns a deep copy.
func (g Guideline) Clone() Guideline {
	g.Points = geometry.ClonePoints(g.Points)
	return g
}

// Collections are the undoable entity lists of a project.
type Collections struct {
	Trees      []Tree      `json:"trees"`
	Pipelines  []Pipeline  `json:"pipelines"`
	Guidelines []Guideline `json:"guidelines"`
}

// Clone returns a deep copy sharing no slices with c.
func (c Collections) Clone() Collections {
	out := Collections{
		Trees:      make([]Tree, len(c.Trees)),
		Pipelines:  make([]Pipeline, len(c.Pipelines)),
		Guidelines: make([]Guideline, len(c.Guidelines)),
	}
	copy(out.Trees, c.Trees)
	for i, p := range c.Pipelines {
		out.Pipelines[i] = p.Clone()
	}
	for i, g := range c.Guidelines {
		out.Guidelines[i] = g.Clone()
	}
	return out
}

// CloneGuidelines deep-copies a guideline list.
func CloneGuidelines(gs []Guideline) []Guideline {
	out := make([]Guideline, len(gs))
	for i, g := range gs {
		out[i] = g.Clone()
	}
	return out
}

type LayerVisibility struct {
	GrowthCircles bool `json:"growthCircles"`
	TreeLabels    bool `json:"treeLabels"`
	Polygon       bool `json:"polygon"`
	Pipelines     bool `json:"pipelines"`
}

// DefaultLayerVisibility has every layer shown.
func DefaultLayerVisibility() LayerVisibility {
	return LayerVisibility{GrowthCircles: true, TreeLabels: true, Polygon: true, Pipelines: true}
}

// ProjectData is the persisted form of a project.
type ProjectData struct {
	Version             string           `json:"version"`
	Name                string           `json:"name"`
	Scale               *float64         `json:"scale"`
	Polygon             []geometry.Point `json:"polygon"`
	Trees               []Tree           `json:"trees"`
	Pipelines           []Pipeline       `json:"pipelines"`
	Guidelines          []Guideline      `json:"guidelines"`
	LayerVisibility     LayerVisibility  `json:"layerVisibility"`
	Zoom                float64          `json:"zoom"`
	PanX                float64          `json:"panX"`
	PanY                float64          `json:"panY"`
	BackgroundImageData string           `json:"backgroundImageData,omitempty"`
	Timestamp           time.Time        `json:"timestamp"`
}

// NewEmptyProject returns an empty project with default settings.
func NewEmptyProject(name string) *ProjectData {
	if name == "" {
		name = DefaultProjectName
	}
	return &ProjectData{
		Version:         CurrentVersion,
		Name:            name,
		Polygon:         []geometry.Point{},
		Trees:           []Tree{},
		Pipelines:       []Pipeline{},
		Guidelines:      []Guideline{},
		LayerVisibility: DefaultLayerVisibility(),
		Zoom:            1,
		Timestamp:       time.Now().UTC(),
	}
}

// Collections returns deep copies of the project's entity lists.
func (p *ProjectData) Collections() Collections {
	return Collections{Trees: p.Trees, Pipelines: p.Pipelines, Guidelines: p.Guidelines}.Clone()
}

// ScaleValue returns the scale in meters per pixel and whether it is set.
func (p *ProjectData) ScaleValue() (float64, bool) {
	if p.Scale == nil || *p.Scale <= 0 {
		return 0, false
	}
	return *p.Scale, true
}
