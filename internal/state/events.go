package state

// EventType identifies a kind of state change.
type EventType int

const (
	EventReset EventType = iota
	EventProjectLoaded
	EventImageChanged
	EventViewChanged
	EventScaleChanged
	EventModeChanged
	EventPolygonChanged
	// EventContentChanged fires when trees, pipelines or guidelines change.
	EventContentChanged
	EventSelectionChanged
	EventHistoryChanged
)

func (e EventType) String() string {
	switch e {
	case EventReset:
		return "reset"
	case EventProjectLoaded:
		return "project_loaded"
	case EventImageChanged:
		return "image_changed"
	case EventViewChanged:
		return "view_changed"
	case EventScaleChanged:
		return "scale_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventPolygonChanged:
		return "polygon_changed"
	case EventContentChanged:
		return "content_changed"
	case EventSelectionChanged:
		return "selection_changed"
	case EventHistoryChanged:
		return "history_changed"
	}
	return "unknown"
}

// Listener is called synchronously after the change it was registered for.
type Listener func(data interface{})

// On registers a listener for the specified event type.
func (s *State) On(event EventType, listener Listener) {
	s.listeners[event] = append(s.listeners[event], listener)
}

func (s *State) emit(event EventType, data interface{}) {
	for _, listener := range s.listeners[event] {
		listener(data)
	}
}

func (s *State) setMode(m Mode) {
	if s.mode == m {
		return
	}
	s.mode = m
	s.emit(EventModeChanged, m)
}
