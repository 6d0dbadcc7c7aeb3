package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

// MaxProjectSize is the largest project file accepted by Decode.
const MaxProjectSize = 100 << 20

var (
	ErrCorrupt  = errors.New("corrupt project data")
	ErrTooLarge = errors.New("project data too large")
)

// SupportedVersions lists the versions that load without a warning.
var SupportedVersions = []string{CurrentVersion}

// Wire forms. Pointer fields distinguish "absent" from zero so defaults can
// be applied the same way older files expect.

type wireTree struct {
	ID          ID         `json:"id"`
	Type        string     `json:"type"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	PlantedDate *time.Time `json:"plantedDate"`
	Growth      *float64   `json:"growth"`
	Health      *float64   `json:"health"`
	Notes       string     `json:"notes"`
}

type wirePipeline struct {
	ID     ID               `json:"id"`
	Type   string           `json:"type"`
	Name   string           `json:"name"`
	Points []geometry.Point `json:"points"`
}

type wireGuideline struct {
	ID      ID               `json:"id"`
	Type    string           `json:"type"`
	Points  []geometry.Point `json:"points"`
	Visible *bool            `json:"visible"`
}

type wireLayers struct {
	GrowthCircles *bool `json:"growthCircles"`
	TreeLabels    *bool `json:"treeLabels"`
	Polygon       *bool `json:"polygon"`
	Pipelines     *bool `json:"pipelines"`
}

type wireProject struct {
	Version             string            `json:"version"`
	Name                string            `json:"name"`
	Scale               *float64          `json:"scale"`
	Polygon             *[]geometry.Point `json:"polygon"`
	Trees               *[]wireTree       `json:"trees"`
	Pipelines           *[]wirePipeline   `json:"pipelines"`
	Guidelines          []wireGuideline   `json:"guidelines"`
	LayerVisibility     *wireLayers       `json:"layerVisibility"`
	Zoom                float64           `json:"zoom"`
	PanX                float64           `json:"panX"`
	PanY                float64           `json:"panY"`
	BackgroundImageData *string           `json:"backgroundImageData"`
	Timestamp           *time.Time        `json:"timestamp"`
}

// Decode parses and validates a project file. It fails on malformed JSON,
// missing version or name, missing trees/pipelines/polygon arrays and
// invalid entities. Unknown fields are ignored. An unsupported version is
// reported as a warning and the data is still returned.
func Decode(raw []byte) (*ProjectData, []string, error) {
	if len(raw) > MaxProjectSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))
	}

	var w wireProject
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if w.Version == "" || w.Name == "" {
		return nil, nil, fmt.Errorf("%w: version and name are required", ErrCorrupt)
	}

	var warnings []string
	if !isSupportedVersion(w.Version) {
		warnings = append(warnings, fmt.Sprintf("version %s is not supported (supported: %v)", w.Version, SupportedVersions))
	}

	switch {
	case w.Trees == nil:
		return nil, nil, fmt.Errorf("%w: field 'trees' is not an array", ErrCorrupt)
	case w.Pipelines == nil:
		return nil, nil, fmt.Errorf("%w: field 'pipelines' is not an array", ErrCorrupt)
	case w.Polygon == nil:
		return nil, nil, fmt.Errorf("%w: field 'polygon' is not an array", ErrCorrupt)
	}

	p := &ProjectData{
		Version:         w.Version,
		Name:            w.Name,
		Polygon:         geometry.ClonePoints(*w.Polygon),
		Trees:           make([]Tree, 0, len(*w.Trees)),
		Pipelines:       make([]Pipeline, 0, len(*w.Pipelines)),
		Guidelines:      make([]Guideline, 0, len(w.Guidelines)),
		LayerVisibility: mergeLayers(w.LayerVisibility),
		Zoom:            w.Zoom,
		PanX:            w.PanX,
		PanY:            w.PanY,
	}
	if p.Polygon == nil {
		p.Polygon = []geometry.Point{}
	}
	if w.Scale != nil && *w.Scale > 0 && !math.IsInf(*w.Scale, 0) {
		s := *w.Scale
		p.Scale = &s
	}
	if p.Zoom <= 0 {
		p.Zoom = 1
	}
	p.Zoom = math.Max(0.1, math.Min(5, p.Zoom))
	if w.BackgroundImageData != nil {
		p.BackgroundImageData = *w.BackgroundImageData
	}
	if w.Timestamp != nil {
		p.Timestamp = *w.Timestamp
	}

	for i, wt := range *w.Trees {
		t, err := decodeTree(wt)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: trees[%d]: %v", ErrCorrupt, i, err)
		}
		p.Trees = append(p.Trees, t)
	}
	for i, wp := range *w.Pipelines {
		pl, err := decodePipeline(wp)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: pipelines[%d]: %v", ErrCorrupt, i, err)
		}
		p.Pipelines = append(p.Pipelines, pl)
	}
	for i, wg := range w.Guidelines {
		g, err := decodeGuideline(wg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: guidelines[%d]: %v", ErrCorrupt, i, err)
		}
		p.Guidelines = append(p.Guidelines, g)
	}

	return p, warnings, nil
}

// Encode writes a project file.
func Encode(p *ProjectData) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return data, nil
}

func isSupportedVersion(v string) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

func mergeLayers(w *wireLayers) LayerVisibility {
	lv := DefaultLayerVisibility()
	if w == nil {
		return lv
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&lv.GrowthCircles, w.GrowthCircles)
	set(&lv.TreeLabels, w.TreeLabels)
	set(&lv.Polygon, w.Polygon)
	set(&lv.Pipelines, w.Pipelines)
	return lv
}

func decodeTree(w wireTree) (Tree, error) {
	if _, err := ParseTreeType(w.Type); err != nil {
		return Tree{}, err
	}
	t := Tree{
		ID:     w.ID,
		Type:   TreeTypeKey(w.Type),
		X:      w.X,
		Y:      w.Y,
		Growth: 0,
		Health: 1,
		Notes:  w.Notes,
	}
	if t.ID == "" {
		t.ID = ID(typeid.NewTreeID())
	}
	if w.PlantedDate != nil {
		t.PlantedAt = *w.PlantedDate
	}
	if w.Growth != nil {
		t.Growth = clamp01(*w.Growth)
	}
	if w.Health != nil {
		t.Health = clamp01(*w.Health)
	}
	return t, nil
}

func decodePipeline(w wirePipeline) (Pipeline, error) {
	kind, err := ParsePipelineKind(w.Type)
	if err != nil {
		return Pipeline{}, err
	}
	if len(w.Points) < 2 {
		return Pipeline{}, fmt.Errorf("pipeline needs at least 2 points, got %d", len(w.Points))
	}
	p := Pipeline{ID: w.ID, Kind: kind, Name: w.Name, Points: geometry.ClonePoints(w.Points)}
	if p.ID == "" {
		p.ID = ID(typeid.NewPipelineID())
	}
	if p.Name == "" {
		if style, ok := StyleFor(kind); ok {
			p.Name = style.Name
		}
	}
	return p, nil
}

func decodeGuideline(w wireGuideline) (Guideline, error) {
	shape, err := ParseGuidelineShape(w.Type)
	if err != nil {
		return Guideline{}, err
	}
	if len(w.Points) < 2 {
		return Guideline{}, fmt.Errorf("guideline needs at least 2 points, got %d", len(w.Points))
	}
	g := Guideline{ID: w.ID, Shape: shape, Points: geometry.ClonePoints(w.Points), Visible: true}
	if g.ID == "" {
		g.ID = ID(typeid.NewGuidelineID())
	}
	if w.Visible != nil {
		g.Visible = *w.Visible
	}
	return g, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// DecodeTree parses one tree with the same defaults and checks as Decode.
func DecodeTree(raw []byte) (Tree, error) {
	var w wireTree
	if err := json.Unmarshal(raw, &w); err != nil {
		return Tree{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decodeTree(w)
}

// DecodePipeline parses one pipeline with the same defaults and checks as
// Decode.
func DecodePipeline(raw []byte) (Pipeline, error) {
	var w wirePipeline
	if err := json.Unmarshal(raw, &w); err != nil {
		return Pipeline{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decodePipeline(w)
}

func DecodeGuideline(raw []byte) (Guideline, error) {
	var w wireGuideline
	if err := json.Unmarshal(raw, &w); err != nil {
		return Guideline{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decodeGuideline(w)
}
