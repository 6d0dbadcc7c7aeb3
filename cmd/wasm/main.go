//go:build js && wasm

package main

import (
	"context"
	"syscall/js"

	"github.com/reforesta/planner/backend-go/internal/asset"
	"github.com/reforesta/planner/backend-go/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.New(engine.Config{Decoder: asset.DataURLDecoder{}})

	api := js.Global().Get("Object").New()

	// --- Commands (page → engine) ---
	api.Set("loadProject", js.FuncOf(loadProject))
	api.Set("loadTemplate", js.FuncOf(loadTemplate))
	api.Set("reset", js.FuncOf(reset))
	api.Set("setCanvasSize", js.FuncOf(setCanvasSize))
	api.Set("setBackgroundImage", js.FuncOf(setBackgroundImage))
	api.Set("pointerDown", js.FuncOf(pointer(eng.PointerDown)))
	api.Set("pointerMove", js.FuncOf(pointer(eng.PointerMove)))
	api.Set("pointerUp", js.FuncOf(pointer(eng.PointerUp)))
	api.Set("click", js.FuncOf(click))
	api.Set("wheel", js.FuncOf(wheel))
	api.Set("keyDown", js.FuncOf(keyDown))
	api.Set("drop", js.FuncOf(drop))
	api.Set("startScaling", js.FuncOf(call(eng.StartScaling)))
	api.Set("setScale", js.FuncOf(setScale))
	api.Set("applyScalePreset", js.FuncOf(applyScalePreset))
	api.Set("startPolygon", js.FuncOf(call(eng.StartPolygon)))
	api.Set("finishPolygon", js.FuncOf(call(eng.FinishPolygon)))
	api.Set("clearPolygon", js.FuncOf(call(eng.ClearPolygon)))
	api.Set("startPipeline", js.FuncOf(withString(eng.StartPipeline)))
	api.Set("finishPipeline", js.FuncOf(call(eng.FinishPipeline)))
	api.Set("clearPipelines", js.FuncOf(call(eng.ClearPipelines)))
	api.Set("startGuideline", js.FuncOf(withString(eng.StartGuideline)))
	api.Set("finishGuideline", js.FuncOf(call(eng.FinishGuideline)))
	api.Set("clearGuidelines", js.FuncOf(call(eng.ClearGuidelines)))
	api.Set("toggleSnapToGuides", js.FuncOf(toggleSnapToGuides))
	api.Set("toggleGuidelineMeasurements", js.FuncOf(toggleGuidelineMeasurements))
	api.Set("deleteSelected", js.FuncOf(call(eng.DeleteSelected)))
	api.Set("undo", js.FuncOf(call(eng.Undo)))
	api.Set("redo", js.FuncOf(call(eng.Redo)))
	api.Set("zoomIn", js.FuncOf(zoomIn))
	api.Set("zoomOut", js.FuncOf(zoomOut))
	api.Set("resetZoom", js.FuncOf(resetZoom))
	api.Set("setLayerVisibility", js.FuncOf(withString(eng.SetLayerVisibility)))
	api.Set("setShowDistances", js.FuncOf(setShowDistances))
	api.Set("plantPattern", js.FuncOf(plantPattern))
	api.Set("optimizeSpacing", js.FuncOf(call(eng.OptimizeSpacing)))

	// --- Queries (page ← engine) ---
	api.Set("render", js.FuncOf(render))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("getProject", js.FuncOf(getProject))
	api.Set("getStatistics", js.FuncOf(getStatistics))
	api.Set("getSelection", js.FuncOf(getSelection))
	api.Set("getMode", js.FuncOf(getMode))
	api.Set("drainNotifications", js.FuncOf(drainNotifications))

	js.Global().Set("reforestaEngine", api)
	js.Global().Set("reforestaWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func status(err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func missing(what string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": "missing " + what})
}

// call adapts an argument-less engine command.
func call(fn func() error) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		return status(fn())
	}
}

// withString adapts a command taking one string argument.
func withString(fn func(string) error) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return missing("argument")
		}
		return status(fn(args[0].String()))
	}
}

func pointer(fn func(x, y float64)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 2 {
			return nil
		}
		fn(args[0].Float(), args[1].Float())
		return nil
	}
}

// --- Command Handlers ---

func loadProject(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("project JSON")
	}
	return status(eng.LoadProject(context.Background(), args[0].String()))
}

func loadTemplate(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("template name")
	}
	return status(eng.LoadTemplate(context.Background(), args[0].String()))
}

func reset(this js.Value, args []js.Value) interface{} {
	eng.Reset()
	return nil
}

func setCanvasSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.SetCanvasSize(args[0].Float(), args[1].Float())
	return nil
}

func setBackgroundImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("image data URL")
	}
	return status(eng.SetBackgroundImage(context.Background(), args[0].String()))
}

// click takes x, y and the browser's click count.
func click(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	detail := 1
	if len(args) > 2 && args[2].Type() == js.TypeNumber {
		detail = args[2].Int()
	}
	eng.Click(args[0].Float(), args[1].Float(), detail)
	return nil
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	eng.Wheel(args[0].Float(), args[1].Float(), args[2].Float())
	return nil
}

func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.KeyDown(args[0].String()))
}

func drop(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("drop position or tree type")
	}
	return status(eng.Drop(args[0].Float(), args[1].Float(), args[2].String()))
}

func setScale(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("real length")
	}
	return status(eng.SetScale(args[0].Float()))
}

func applyScalePreset(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("preset")
	}
	return status(eng.ApplyScalePreset(args[0].String()))
}

func toggleSnapToGuides(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.ToggleSnapToGuides())
}

func toggleGuidelineMeasurements(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.ToggleGuidelineMeasurements())
}

func zoomIn(this js.Value, args []js.Value) interface{} {
	eng.ZoomIn()
	return nil
}

func zoomOut(this js.Value, args []js.Value) interface{} {
	eng.ZoomOut()
	return nil
}

func resetZoom(this js.Value, args []js.Value) interface{} {
	eng.ResetZoom()
	return nil
}

func setShowDistances(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetShowDistances(args[0].Truthy())
	return nil
}

// plantPattern takes the pattern name, tree type and spacing in meters.
func plantPattern(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("pattern, tree type or spacing")
	}
	return status(eng.PlantPattern(args[0].String(), args[1].String(), args[2].Float()))
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func getProject(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetProject())
}

func getStatistics(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetStatistics())
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelection())
}

func getMode(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetMode())
}

func drainNotifications(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.DrainNotifications())
}
