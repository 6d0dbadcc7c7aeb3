package state

import "github.com/reforesta/planner/backend-go/internal/document"

// Undo reverts the newest recorded content change and clears the selection.
func (s *State) Undo() error {
	restored, err := s.history.Undo(s.collections())
	if err != nil {
		return err
	}
	s.restore(restored)
	s.log.Debug("undo", "trees", len(s.trees), "pipelines", len(s.pipelines))
	return nil
}

// Redo reapplies the change reverted by the last Undo.
func (s *State) Redo() error {
	restored, err := s.history.Redo(s.collections())
	if err != nil {
		return err
	}
	s.restore(restored)
	s.log.Debug("redo", "trees", len(s.trees), "pipelines", len(s.pipelines))
	return nil
}

func (s *State) restore(c document.Collections) {
	c = c.Clone()
	s.trees = c.Trees
	s.pipelines = c.Pipelines
	s.guidelines = c.Guidelines
	s.ClearSelection()
	s.emit(EventContentChanged, nil)
	s.emit(EventHistoryChanged, nil)
}
