package tool

import "github.com/reforesta/planner/backend-go/internal/state"

// Key is a key press. Name holds the DOM KeyboardEvent.key value.
type Key struct {
	Name  string `json:"key"`
	Ctrl  bool   `json:"ctrlKey"`
	Shift bool   `json:"shiftKey"`
	Meta  bool   `json:"metaKey"`
}

func (k Key) command() bool { return k.Ctrl || k.Meta }

// KeyDown applies a keyboard shortcut and reports whether the key was
// consumed, so hosts know when to suppress the default action.
//
//	Delete, Backspace     delete the selection (normal mode only)
//	Escape                cancel the current operation
//	Ctrl+Z                undo
//	Ctrl+Shift+Z, Ctrl+Y  redo
//	Ctrl+= or Ctrl++      zoom in
//	Ctrl+-                zoom out
//	Ctrl+0                reset zoom
//
// Meta works in place of Ctrl.
func (m *Machine) KeyDown(k Key) bool {
	switch k.Name {
	case "Delete", "Backspace":
		if m.state.Mode() == state.ModeNormal && m.state.GuidelineMode() == state.GuideNone {
			_, _ = m.DeleteSelected()
		}
		return true
	case "Escape":
		m.Cancel()
		return true
	}
	if !k.command() {
		return false
	}
	switch k.Name {
	case "z", "Z":
		if k.Shift {
			_ = m.Redo()
		} else {
			_ = m.Undo()
		}
	case "y", "Y":
		_ = m.Redo()
	case "+", "=":
		m.ZoomIn()
	case "-":
		m.ZoomOut()
	case "0":
		m.ResetZoom()
	default:
		return false
	}
	return true
}
