package collab

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
	"github.com/reforesta/planner/backend-go/internal/state"
)

var (
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrEntityNotFound   = errors.New("entity not found")
	ErrDuplicateEntity  = errors.New("entity id already in use")
)

// DocumentState is the authoritative project document of a room. Every
// accepted operation bumps the server sequence and marks it dirty until
// the next save.
type DocumentState struct {
	mu        sync.RWMutex
	doc       *document.ProjectData
	serverSeq int64
	savedSeq  int64
}

func NewDocumentState(doc *document.ProjectData) *DocumentState {
	return &DocumentState{doc: doc}
}

// Document returns a deep copy of the current document and its sequence.
func (ds *DocumentState) Document() (*document.ProjectData, int64) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return cloneProject(ds.doc), ds.serverSeq
}

// Dirty reports whether operations were applied since the last MarkSaved.
func (ds *DocumentState) Dirty() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.serverSeq != ds.savedSeq
}

// MarkSaved records that the document as of seq has been persisted.
func (ds *DocumentState) MarkSaved(seq int64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if seq > ds.savedSeq {
		ds.savedSeq = seq
	}
}

// Apply validates and applies op. On error the document is unchanged.
func (ds *DocumentState) Apply(op Operation) (int64, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.apply(op); err != nil {
		return 0, err
	}
	ds.serverSeq++
	ds.doc.Timestamp = time.Now().UTC()
	return ds.serverSeq, nil
}

func (ds *DocumentState) apply(op Operation) error {
	switch op.Type {
	case OpTreeAdd:
		t, err := document.DecodeTree(op.Entity)
		if err != nil {
			return invalidOp(op, err)
		}
		if ds.treeIndex(string(t.ID)) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, t.ID)
		}
		ds.doc.Trees = append(ds.doc.Trees, t)

	case OpTreeDelete:
		i := ds.treeIndex(op.EntityID)
		if i < 0 {
			return notFound(op)
		}
		ds.doc.Trees = append(ds.doc.Trees[:i], ds.doc.Trees[i+1:]...)

	case OpTreeMove:
		i := ds.treeIndex(op.EntityID)
		if i < 0 {
			return notFound(op)
		}
		if op.Position == nil || !finite(*op.Position) {
			return invalidOp(op, errors.New("position required"))
		}
		ds.doc.Trees[i].X, ds.doc.Trees[i].Y = op.Position.X, op.Position.Y

	case OpPipelineAdd:
		p, err := document.DecodePipeline(op.Entity)
		if err != nil {
			return invalidOp(op, err)
		}
		if ds.pipelineIndex(string(p.ID)) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, p.ID)
		}
		ds.doc.Pipelines = append(ds.doc.Pipelines, p)

	case OpPipelineDelete:
		i := ds.pipelineIndex(op.EntityID)
		if i < 0 {
			return notFound(op)
		}
		ds.doc.Pipelines = append(ds.doc.Pipelines[:i], ds.doc.Pipelines[i+1:]...)

	case OpPipelineMove:
		i := ds.pipelineIndex(op.EntityID)
		if i < 0 {
			return notFound(op)
		}
		if op.Delta == nil || !finite(*op.Delta) {
			return invalidOp(op, errors.New("delta required"))
		}
		p := ds.doc.Pipelines[i].Clone()
		for j := range p.Points {
			p.Points[j] = p.Points[j].Add(*op.Delta)
		}
		ds.doc.Pipelines[i] = p

	case OpGuidelineAdd:
		g, err := document.DecodeGuideline(op.Entity)
		if err != nil {
			return invalidOp(op, err)
		}
		for _, existing := range ds.doc.Guidelines {
			if existing.ID == g.ID {
				return fmt.Errorf("%w: %s", ErrDuplicateEntity, g.ID)
			}
		}
		ds.doc.Guidelines = append(ds.doc.Guidelines, g)

	case OpGuidelinesClear:
		ds.doc.Guidelines = []document.Guideline{}

	case OpPolygonSet:
		if n := len(op.Points); n != 0 && (n < 3 || n > state.MaxPolygonPoints) {
			return invalidOp(op, fmt.Errorf("polygon needs 3 to %d points, got %d", state.MaxPolygonPoints, n))
		}
		for _, p := range op.Points {
			if !finite(p) {
				return invalidOp(op, errors.New("non-finite point"))
			}
		}
		ds.doc.Polygon = geometry.ClonePoints(op.Points)
		if ds.doc.Polygon == nil {
			ds.doc.Polygon = []geometry.Point{}
		}

	case OpScaleSet:
		if op.Scale != nil {
			v := *op.Scale
			if math.IsNaN(v) || v < state.MinScale || v > state.MaxScale {
				return invalidOp(op, fmt.Errorf("scale %g outside [%g, %g]", v, state.MinScale, state.MaxScale))
			}
			ds.doc.Scale = &v
		} else {
			ds.doc.Scale = nil
		}

	case OpProjectRename:
		name := strings.TrimSpace(op.Name)
		if name == "" {
			return invalidOp(op, errors.New("name required"))
		}
		ds.doc.Name = name

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op.Type)
	}
	return nil
}

func (ds *DocumentState) treeIndex(id string) int {
	for i, t := range ds.doc.Trees {
		if string(t.ID) == id {
			return i
		}
	}
	return -1
}

func (ds *DocumentState) pipelineIndex(id string) int {
	for i, p := range ds.doc.Pipelines {
		if string(p.ID) == id {
			return i
		}
	}
	return -1
}

func invalidOp(op Operation, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidOperation, op.Type, err)
}

func notFound(op Operation) error {
	return fmt.Errorf("%w: %s %q", ErrEntityNotFound, op.Type, op.EntityID)
}

func finite(p geometry.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func cloneProject(p *document.ProjectData) *document.ProjectData {
	out := *p
	c := p.Collections()
	out.Trees, out.Pipelines, out.Guidelines = c.Trees, c.Pipelines, c.Guidelines
	out.Polygon = geometry.ClonePoints(p.Polygon)
	if p.Scale != nil {
		v := *p.Scale
		out.Scale = &v
	}
	return &out
}

// ServerTimestamp is the server clock in unix milliseconds.
func ServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
