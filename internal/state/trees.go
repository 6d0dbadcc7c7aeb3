package state

import (
	"math"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/history"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

// MaxMinSpacing bounds the auto-spacing distance in meters.
const MaxMinSpacing = 50.0

// moveThreshold is how far, in world pixels, a drag must move an entity
// before it is recorded as a move.
const moveThreshold = 1.0

func (s *State) newTree(cfg document.TreeType, p geometry.Point) document.Tree {
	return document.Tree{
		ID:        document.ID(typeid.NewTreeID()),
		Type:      cfg.Key,
		X:         p.X,
		Y:         p.Y,
		PlantedAt: s.now().UTC(),
		Growth:    0,
		Health:    1,
	}
}

// TreeResult is a planted tree with any advisories about where it went.
type TreeResult struct {
	document.Tree
	Advisories []Advisory `json:"advisories,omitempty"`
}

// AddTree plants a catalog tree at p. With auto-spacing on, a tree closer
// than the spacing rule allows is rejected; with it off the tree is
// planted and flagged with AdvisoryTightSpacing.
func (s *State) AddTree(key document.TreeTypeKey, p geometry.Point) (TreeResult, error) {
	const op = "add tree"
	cfg, ok := document.LookupTreeType(key)
	if !ok {
		return TreeResult{}, invalid(op, ErrUnknownTreeType, "%q", key)
	}
	if s.image != nil && !s.image.Contains(p) {
		return TreeResult{}, invalid(op, ErrOutOfBounds, "(%.0f, %.0f)", p.X, p.Y)
	}
	var advisories []Advisory
	if s.scale != nil {
		if i, ok := s.conflictingTree(cfg, p); ok {
			if s.autoSpacing {
				return TreeResult{}, invalid(op, ErrTooClose, "keep %gm from %s", s.minSpacing, s.trees[i].ID)
			}
			advisories = append(advisories, AdvisoryTightSpacing)
		}
	}

	s.checkpoint(history.KindAddTree, history.Payload{Count: 1})
	t := s.newTree(cfg, p)
	s.trees = append(s.trees, t)
	s.log.Debug("tree added", "id", t.ID, "type", t.Type, "x", p.X, "y", p.Y)
	s.emit(EventContentChanged, t)
	return TreeResult{Tree: t, Advisories: advisories}, nil
}

// conflictingTree returns the first tree closer to p than the auto-spacing
// rule allows. The scale must be set.
func (s *State) conflictingTree(cfg document.TreeType, p geometry.Point) (int, bool) {
	scale := *s.scale
	minPx := s.minSpacing / scale
	r := cfg.Diameter / 2 / scale
	for i, t := range s.trees {
		required := math.Max(minPx, r+t.CanopyRadius(scale))
		if geometry.Distance(p, t.Position()) < required {
			return i, true
		}
	}
	return -1, false
}

func (s *State) DeleteTree(id document.ID) error {
	i := s.treeIndex(id)
	if i < 0 {
		return invalid("delete tree", ErrNotFound, "%s", id)
	}
	removed := s.trees[i]
	s.checkpoint(history.KindDeleteTree, history.Payload{Index: i, Tree: &removed})
	s.trees = append(s.trees[:i:i], s.trees[i+1:]...)
	s.ClearSelection()
	s.emit(EventContentChanged, removed)
	return nil
}

func (s *State) Tree(id document.ID) (document.Tree, bool) {
	if i := s.treeIndex(id); i >= 0 {
		return s.trees[i], true
	}
	return document.Tree{}, false
}

// SetTreePosition moves a tree without recording history. Drags call it
// on every pointer move and CommitTreeMove once at the end.
func (s *State) SetTreePosition(id document.ID, p geometry.Point) error {
	i := s.treeIndex(id)
	if i < 0 {
		return invalid("move tree", ErrNotFound, "%s", id)
	}
	s.trees[i].X, s.trees[i].Y = p.X, p.Y
	s.emit(EventContentChanged, nil)
	return nil
}

func (s *State) MoveTree(id document.ID, dx, dy float64) error {
	t, ok := s.Tree(id)
	if !ok {
		return invalid("move tree", ErrNotFound, "%s", id)
	}
	return s.SetTreePosition(id, geometry.Pt(t.X+dx, t.Y+dy))
}

// CommitTreeMove records a MOVE_TREE checkpoint for a drag that started at
// from. Drags of one pixel or less are not recorded. It reports whether an
// entry was recorded.
func (s *State) CommitTreeMove(id document.ID, from geometry.Point) bool {
	i := s.treeIndex(id)
	if i < 0 {
		return false
	}
	cur := s.trees[i]
	if math.Abs(cur.X-from.X) <= moveThreshold && math.Abs(cur.Y-from.Y) <= moveThreshold {
		return false
	}
	// the snapshot must hold the pre-drag position
	snap := s.collections()
	snap.Trees[i].X, snap.Trees[i].Y = from.X, from.Y
	s.history.Checkpoint(history.KindMoveTree, snap, history.Payload{ID: id, From: from})
	s.emit(EventHistoryChanged, history.KindMoveTree)
	return true
}

func (s *State) updateTree(id document.ID, fn func(*document.Tree)) error {
	i := s.treeIndex(id)
	if i < 0 {
		return invalid("update tree", ErrNotFound, "%s", id)
	}
	fn(&s.trees[i])
	s.emit(EventContentChanged, s.trees[i])
	return nil
}

// SetTreeHealth sets health, clamped to [0, 1]. Not undoable.
func (s *State) SetTreeHealth(id document.ID, health float64) error {
	return s.updateTree(id, func(t *document.Tree) { t.Health = clamp(health, 0, 1) })
}

// SetTreeGrowth sets the growth factor, clamped to [0, 1]. Not undoable.
func (s *State) SetTreeGrowth(id document.ID, growth float64) error {
	return s.updateTree(id, func(t *document.Tree) { t.Growth = clamp(growth, 0, 1) })
}

func (s *State) SetTreeNotes(id document.ID, notes string) error {
	return s.updateTree(id, func(t *document.Tree) { t.Notes = notes })
}

func (s *State) AutoSpacing() bool { return s.autoSpacing }

// ToggleAutoSpacing flips the auto-spacing check and returns the new value.
func (s *State) ToggleAutoSpacing() bool {
	s.autoSpacing = !s.autoSpacing
	return s.autoSpacing
}

func (s *State) MinSpacing() float64 { return s.minSpacing }

// SetMinSpacing sets the auto-spacing distance, in meters, within (0, 50].
func (s *State) SetMinSpacing(meters float64) error {
	if !(meters > 0 && meters <= MaxMinSpacing) {
		return invalid("set minimum spacing", ErrInvalidSpacing, "%g m not in (0, %g]", meters, MaxMinSpacing)
	}
	s.minSpacing = meters
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
