// Package engine is the host-facing facade of the planner. It owns the
// project state, the tool machine that interprets input, and the
// notifications raised along the way. Its methods take and return plain
// values and JSON strings so thin hosts (the browser bridge, the terminal
// UI) can drive it without knowing the inner packages.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/notify"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/tool"
	"github.com/reforesta/planner/backend-go/internal/view"
)

type Config struct {
	State state.Config
	// Decoder decodes background images. Without one, images cannot be
	// loaded and projects load without their background.
	Decoder  state.ImageDecoder
	Renderer Renderer
	Logger   *slog.Logger
}

// Engine is not safe for concurrent use, apart from the load methods,
// which refuse to overlap.
type Engine struct {
	state    *state.State
	machine  *tool.Machine
	loader   *state.Loader
	notes    *notify.Recorder
	notify   notify.Notifier
	renderer Renderer
	log      *slog.Logger

	showDistances bool
}

func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.State.Logger == nil {
		cfg.State.Logger = log
	}
	s := state.New(cfg.State)
	notes := &notify.Recorder{}
	n := notify.Tee{notes, notify.Log{Logger: log}}
	return &Engine{
		state:    s,
		machine:  tool.New(s, tool.Config{Notifier: n, Logger: log}),
		loader:   state.NewLoader(s, cfg.Decoder),
		notes:    notes,
		notify:   n,
		renderer: cfg.Renderer,
		log:      log,
	}
}

func (e *Engine) State() *state.State    { return e.state }
func (e *Engine) Machine() *tool.Machine { return e.machine }

// --- Commands (host → engine) ---

// LoadProject replaces the project with a saved one.
func (e *Engine) LoadProject(ctx context.Context, jsonData string) error {
	warnings, err := e.loader.LoadProject(ctx, []byte(jsonData))
	if err != nil {
		e.loadFailed(err)
		return err
	}
	e.machine.Reset()
	for _, w := range warnings {
		e.notify.Notify(notify.Warning, "Advertencia", w)
	}
	e.notify.Notify(notify.Success, "Proyecto Cargado", fmt.Sprintf("Proyecto %q cargado", e.state.Name()))
	return nil
}

// LoadTemplate replaces the project with a built-in template.
func (e *Engine) LoadTemplate(ctx context.Context, name string) error {
	if err := e.loader.LoadTemplate(ctx, name); err != nil {
		e.loadFailed(err)
		return err
	}
	e.machine.Reset()
	e.notify.Notify(notify.Success, "Plantilla Cargada", fmt.Sprintf("Plantilla %q aplicada", e.state.Name()))
	return nil
}

// SetBackgroundImage decodes a data URL and installs it as the background,
// then fits it to the canvas.
func (e *Engine) SetBackgroundImage(ctx context.Context, dataURL string) error {
	img, advisories, err := e.loader.LoadImage(ctx, dataURL)
	if err != nil {
		e.loadFailed(err)
		return err
	}
	e.machine.ResetZoom()
	e.notify.Notify(notify.Success, "Imagen Cargada", fmt.Sprintf("Imagen de %d×%d píxeles", img.Width, img.Height))
	for _, a := range advisories {
		e.notify.Notify(notify.Warning, "Advertencia", a.Message())
	}
	return nil
}

func (e *Engine) loadFailed(err error) {
	e.log.Warn("load failed", "error", err)
	if errors.Is(err, state.ErrLoadInProgress) {
		e.notify.Notify(notify.Warning, "Carga en Curso", "Espera a que termine la carga actual")
		return
	}
	e.notify.Notify(notify.Error, "Error al Cargar", err.Error())
}

// Reset starts a new, empty project. The background image is kept.
func (e *Engine) Reset() {
	img := e.state.Image()
	e.state.Reset()
	e.state.SetImage(img)
	e.machine.Reset()
	e.machine.ResetZoom()
	e.notify.Notify(notify.Info, "Nuevo Proyecto", "Proyecto reiniciado")
}

func (e *Engine) SetCanvasSize(w, h float64) { e.machine.SetCanvasSize(w, h) }

func (e *Engine) PointerDown(x, y float64) { e.machine.PointerDown(geometry.Pt(x, y)) }
func (e *Engine) PointerMove(x, y float64) { e.machine.PointerMove(geometry.Pt(x, y)) }
func (e *Engine) PointerUp(x, y float64)   { e.machine.PointerUp(geometry.Pt(x, y)) }

func (e *Engine) Click(x, y float64, detail int) { e.machine.Click(geometry.Pt(x, y), detail) }

func (e *Engine) Wheel(x, y, deltaY float64) { e.machine.Wheel(geometry.Pt(x, y), deltaY) }

// KeyDown takes a JSON key event ({"key", "ctrlKey", "shiftKey",
// "metaKey"}) and reports whether it was handled.
func (e *Engine) KeyDown(keyJSON string) bool {
	var k tool.Key
	if err := json.Unmarshal([]byte(keyJSON), &k); err != nil {
		return false
	}
	return e.machine.KeyDown(k)
}

// Drop plants a tree of the given catalog type at a screen point.
func (e *Engine) Drop(x, y float64, treeType string) error {
	_, err := e.machine.Drop(geometry.Pt(x, y), document.TreeTypeKey(treeType))
	return err
}

func (e *Engine) StartScaling() error { return e.machine.StartScaling() }

// SetScale applies the drawn reference line as realLength meters.
func (e *Engine) SetScale(realLength float64) error {
	_, err := e.machine.ApplyScale(realLength)
	return err
}

func (e *Engine) ApplyScalePreset(name string) error {
	_, err := e.machine.ApplyPreset(name)
	return err
}

func (e *Engine) StartPolygon() error { return e.machine.StartPolygon() }

func (e *Engine) FinishPolygon() error {
	_, err := e.machine.FinishPolygon()
	return err
}

func (e *Engine) ClearPolygon() error { return e.machine.ClearPolygon() }

// StartPipeline accepts the wire names (gas, agua, electrica) and the
// English ones (water, electric).
func (e *Engine) StartPipeline(kind string) error {
	k, err := document.ParsePipelineKind(kind)
	if err != nil {
		e.notify.Notify(notify.Error, "Tipo Inválido", fmt.Sprintf("Tipo de tubería desconocido: %q", kind))
		return fmt.Errorf("start pipeline: %w", err)
	}
	return e.machine.StartPipeline(k)
}

func (e *Engine) FinishPipeline() error {
	_, err := e.machine.FinishPipeline()
	return err
}

func (e *Engine) ClearPipelines() error { return e.machine.ClearPipelines() }

func (e *Engine) StartGuideline(shape string) error {
	sh, err := document.ParseGuidelineShape(shape)
	if err != nil {
		e.notify.Notify(notify.Error, "Forma Inválida", fmt.Sprintf("Forma de línea guía desconocida: %q", shape))
		return fmt.Errorf("start guideline: %w", err)
	}
	return e.machine.StartGuideline(sh)
}

func (e *Engine) FinishGuideline() error {
	_, err := e.machine.FinishGuideline()
	return err
}

func (e *Engine) ClearGuidelines() error { return e.machine.ClearGuidelines() }

func (e *Engine) ToggleSnapToGuides() bool { return e.machine.ToggleSnapToGuides() }

func (e *Engine) ToggleGuidelineMeasurements() bool {
	return e.machine.ToggleGuidelineMeasurements()
}

func (e *Engine) DeleteSelected() error {
	_, err := e.machine.DeleteSelected()
	return err
}

func (e *Engine) Undo() error { return e.machine.Undo() }
func (e *Engine) Redo() error { return e.machine.Redo() }

func (e *Engine) ZoomIn()    { e.machine.ZoomIn() }
func (e *Engine) ZoomOut()   { e.machine.ZoomOut() }
func (e *Engine) ResetZoom() { e.machine.ResetZoom() }

// SetLayerVisibility takes a JSON object of layer flags. Missing flags keep
// their current value.
func (e *Engine) SetLayerVisibility(layersJSON string) error {
	lv := e.state.LayerVisibility()
	if err := json.Unmarshal([]byte(layersJSON), &lv); err != nil {
		return fmt.Errorf("parse layer visibility: %w", err)
	}
	e.state.SetLayerVisibility(lv)
	return nil
}

func (e *Engine) SetShowDistances(on bool) { e.showDistances = on }

// PlantPattern fills the boundary with trees; spacing is in meters.
func (e *Engine) PlantPattern(pattern, treeType string, spacing float64) error {
	p, err := state.ParsePattern(pattern)
	if err != nil {
		e.notify.Notify(notify.Error, "Patrón Inválido", "Patrón de plantación no reconocido")
		return err
	}
	_, err = e.machine.PlantPattern(p, document.TreeTypeKey(treeType), spacing)
	return err
}

func (e *Engine) OptimizeSpacing() error {
	_, _, err := e.machine.OptimizeSpacing()
	return err
}

// --- Queries (host ← engine) ---

// Commands compiles the current frame.
func (e *Engine) Commands() []DrawCommand {
	opts := Options{ShowDistances: e.showDistances}
	if p, ok := e.machine.Preview(); ok {
		opts.Preview = &p
	}
	return Compile(e.state, e.state.View(), opts)
}

// Render returns the current frame as JSON draw commands.
func (e *Engine) Render() string {
	result, err := DrawCommandsToJSON(e.Commands())
	if err != nil {
		e.log.Error("encode draw commands", "error", err)
	}
	return result
}

// Frame draws the current frame with the configured Renderer.
func (e *Engine) Frame() error {
	if e.renderer == nil {
		return fmt.Errorf("draw frame: no renderer")
	}
	return e.renderer.Draw(e.Commands())
}

// HitResult names the entity under a point; Kind is empty for a miss.
type HitResult struct {
	Kind state.SelectionKind `json:"kind"`
	ID   document.ID         `json:"id,omitempty"`
}

// HitTest returns the tree or pipeline under a screen point as JSON.
// Trees win over pipelines.
func (e *Engine) HitTest(x, y float64) string {
	return toJSON(e.hit(x, y))
}

func (e *Engine) hit(x, y float64) HitResult {
	s := e.state
	w := view.ScreenToWorld(geometry.Pt(x, y), s.View())
	scale, _ := s.Scale()
	trees := s.Trees()
	if i, ok := view.TreeAt(w, trees, scale); ok {
		return HitResult{Kind: state.SelectTree, ID: trees[i].ID}
	}
	pipelines := s.Pipelines()
	if i, ok := view.PipelineAt(w, pipelines, s.View().Zoom); ok {
		return HitResult{Kind: state.SelectPipeline, ID: pipelines[i].ID}
	}
	return HitResult{}
}

// GetProject returns the project as saved-file JSON.
func (e *Engine) GetProject() string {
	data, err := document.Encode(e.state.ProjectData())
	if err != nil {
		e.log.Error("encode project", "error", err)
		return "{}"
	}
	return string(data)
}

func (e *Engine) GetStatistics() string { return toJSON(e.state.Statistics()) }

func (e *Engine) GetSelection() string { return toJSON(e.state.Selection()) }

// ModeInfo is what a toolbar needs to reflect the engine.
type ModeInfo struct {
	Mode          state.Mode          `json:"mode"`
	GuidelineMode state.GuidelineMode `json:"guidelineMode"`
	CanUndo       bool                `json:"canUndo"`
	CanRedo       bool                `json:"canRedo"`
	Zoom          float64             `json:"zoom"`
	SnapToGuides  bool                `json:"snapToGuides"`
	HasImage      bool                `json:"hasImage"`
	HasScale      bool                `json:"hasScale"`
}

func (e *Engine) Mode() ModeInfo {
	s := e.state
	_, hasScale := s.Scale()
	return ModeInfo{
		Mode:          s.Mode(),
		GuidelineMode: s.GuidelineMode(),
		CanUndo:       s.CanUndo(),
		CanRedo:       s.CanRedo(),
		Zoom:          s.View().Zoom,
		SnapToGuides:  s.SnapToGuides(),
		HasImage:      s.Image() != nil,
		HasScale:      hasScale,
	}
}

func (e *Engine) GetMode() string { return toJSON(e.Mode()) }

// Notifications returns and clears the pending notifications.
func (e *Engine) Notifications() []notify.Message { return e.notes.Drain() }

// DrainNotifications returns and clears the pending notifications as JSON.
func (e *Engine) DrainNotifications() string {
	msgs := e.notes.Drain()
	if msgs == nil {
		msgs = []notify.Message{}
	}
	return toJSON(msgs)
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
