package history

import (
	"errors"
	"time"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
)

// DefaultMaxEntries bounds the undo stack. The oldest entry is dropped when
// a checkpoint would exceed it.
const DefaultMaxEntries = 50

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Kind identifies the content change an entry guards.
type Kind string

const (
	KindAddTree         Kind = "ADD_TREE"
	KindDeleteTree      Kind = "DELETE_TREE"
	KindMoveTree        Kind = "MOVE_TREE"
	KindAddPipeline     Kind = "ADD_PIPELINE"
	KindDeletePipeline  Kind = "DELETE_PIPELINE"
	KindMovePipeline    Kind = "MOVE_PIPELINE"
	KindAddGuideline    Kind = "ADD_GUIDELINE"
	KindDeleteGuideline Kind = "DELETE_GUIDELINE"
	KindClearGuidelines Kind = "CLEAR_GUIDELINES"
	KindMoveTrees       Kind = "MOVE_TREES"
	KindRedo            Kind = "REDO_ACTION"
)

// Payload carries what an inverse needs. Only the fields relevant to the
// entry's Kind are set.
type Payload struct {
	// ADD_*: number of items appended by the action (0 means 1).
	Count int `json:"count,omitempty"`

	// DELETE_*: the removed entity and the index it had.
	Index     int                 `json:"index,omitempty"`
	Tree      *document.Tree      `json:"tree,omitempty"`
	Pipeline  *document.Pipeline  `json:"pipeline,omitempty"`
	Guideline *document.Guideline `json:"guideline,omitempty"`

	// MOVE_*: the entity and where it was before the drag.
	ID         document.ID      `json:"id,omitempty"`
	From       geometry.Point   `json:"from,omitempty"`
	FromPoints []geometry.Point `json:"fromPoints,omitempty"`

	// CLEAR_GUIDELINES: the list before clearing.
	Guidelines []document.Guideline `json:"guidelines,omitempty"`
}

type Entry struct {
	Kind      Kind                 `json:"kind"`
	Timestamp time.Time            `json:"timestamp"`
	Snapshot  document.Collections `json:"snapshot"`
	Payload   Payload              `json:"payload"`
}

// Store is the history used by the project state.
type Store interface {
	Checkpoint(kind Kind, snapshot document.Collections, payload Payload)
	Undo(current document.Collections) (document.Collections, error)
	Redo(current document.Collections) (document.Collections, error)
	Reset()
	CanUndo() bool
	CanRedo() bool
}

// Stack is a bounded snapshot history. It is not safe for concurrent use.
type Stack struct {
	undo []Entry
	redo []Entry
	max  int
	now  func() time.Time
}

var _ Store = (*Stack)(nil)

// NewStack returns a Stack holding at most max undo entries (DefaultMaxEntries
// when max <= 0).
func NewStack(max int) *Stack {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Stack{max: max, now: time.Now}
}

// Checkpoint records the pre-mutation collections and invalidates redo.
func (s *Stack) Checkpoint(kind Kind, snapshot document.Collections, payload Payload) {
	s.redo = nil
	s.push(kind, snapshot, payload)
}

func (s *Stack) push(kind Kind, snapshot document.Collections, payload Payload) {
	s.undo = append(s.undo, Entry{
		Kind:      kind,
		Timestamp: s.now(),
		Snapshot:  snapshot.Clone(),
		Payload:   payload,
	})
	if len(s.undo) > s.max {
		s.undo = append(s.undo[:0:0], s.undo[len(s.undo)-s.max:]...)
	}
}

// Undo pops the newest entry and returns current with that action reverted.
// current itself is saved for Redo.
func (s *Stack) Undo(current document.Collections) (document.Collections, error) {
	if len(s.undo) == 0 {
		return current, ErrNothingToUndo
	}
	s.redo = append(s.redo, Entry{Kind: "CURRENT_STATE", Timestamp: s.now(), Snapshot: current.Clone()})

	e := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return revert(current.Clone(), e), nil
}

// Redo restores the state saved by the last Undo. The state being replaced
// goes back on the undo stack; the rest of the redo stack is kept.
func (s *Stack) Redo(current document.Collections) (document.Collections, error) {
	if len(s.redo) == 0 {
		return current, ErrNothingToRedo
	}
	e := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	s.push(KindRedo, current, Payload{})
	return e.Snapshot.Clone(), nil
}

func (s *Stack) Reset() {
	s.undo = nil
	s.redo = nil
}

func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// Len returns the undo and redo depths.
func (s *Stack) Len() (undo, redo int) { return len(s.undo), len(s.redo) }

// Entries returns a copy of the undo stack, oldest first.
func (s *Stack) Entries() []Entry {
	out := make([]Entry, len(s.undo))
	copy(out, s.undo)
	return out
}
