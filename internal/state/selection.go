package state

import "github.com/reforesta/planner/backend-go/internal/document"

// SelectionKind says what, if anything, is selected.
type SelectionKind string

const (
	SelectNone     SelectionKind = ""
	SelectTree     SelectionKind = "tree"
	SelectPipeline SelectionKind = "pipeline"
)

// Selection is at most one tree or one pipeline.
type Selection struct {
	Kind SelectionKind `json:"kind"`
	ID   document.ID   `json:"id,omitempty"`
}

func (s *State) Selection() Selection {
	switch {
	case s.selectedTree != "":
		return Selection{Kind: SelectTree, ID: s.selectedTree}
	case s.selectedPipeline != "":
		return Selection{Kind: SelectPipeline, ID: s.selectedPipeline}
	}
	return Selection{}
}

// SelectTree selects a tree and deselects any pipeline.
func (s *State) SelectTree(id document.ID) error {
	if s.treeIndex(id) < 0 {
		return invalid("select tree", ErrNotFound, "%s", id)
	}
	s.selectedTree, s.selectedPipeline = id, ""
	s.emit(EventSelectionChanged, s.Selection())
	return nil
}

// SelectPipeline selects a pipeline and deselects any tree.
func (s *State) SelectPipeline(id document.ID) error {
	if s.pipelineIndex(id) < 0 {
		return invalid("select pipeline", ErrNotFound, "%s", id)
	}
	s.selectedTree, s.selectedPipeline = "", id
	s.emit(EventSelectionChanged, s.Selection())
	return nil
}

func (s *State) ClearSelection() {
	if s.selectedTree == "" && s.selectedPipeline == "" {
		return
	}
	s.selectedTree, s.selectedPipeline = "", ""
	s.emit(EventSelectionChanged, Selection{})
}

// DeleteSelected deletes the selected tree or pipeline. It reports false
// when nothing was selected.
func (s *State) DeleteSelected() (bool, error) {
	sel := s.Selection()
	switch sel.Kind {
	case SelectTree:
		return true, s.DeleteTree(sel.ID)
	case SelectPipeline:
		return true, s.DeletePipeline(sel.ID)
	}
	return false, nil
}
