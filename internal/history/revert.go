package history

import (
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
)

// revert applies the inverse of e to c. Kinds without a dedicated inverse,
// and entries whose payload is incomplete, restore the entry snapshot.
func revert(c document.Collections, e Entry) document.Collections {
	p := e.Payload

	switch e.Kind {
	case KindAddTree:
		c.Trees = dropLast(c.Trees, p.Count)
	case KindAddPipeline:
		c.Pipelines = dropLast(c.Pipelines, p.Count)
	case KindAddGuideline:
		c.Guidelines = dropLast(c.Guidelines, p.Count)

	case KindDeleteTree:
		if p.Tree == nil {
			return e.Snapshot.Clone()
		}
		c.Trees = insertAt(c.Trees, p.Index, *p.Tree)
	case KindDeletePipeline:
		if p.Pipeline == nil {
			return e.Snapshot.Clone()
		}
		c.Pipelines = insertAt(c.Pipelines, p.Index, p.Pipeline.Clone())
	case KindDeleteGuideline:
		if p.Guideline == nil {
			return e.Snapshot.Clone()
		}
		c.Guidelines = insertAt(c.Guidelines, p.Index, p.Guideline.Clone())

	case KindMoveTree:
		for i := range c.Trees {
			if c.Trees[i].ID == p.ID {
				c.Trees[i].X, c.Trees[i].Y = p.From.X, p.From.Y
				break
			}
		}
	case KindMovePipeline:
		for i := range c.Pipelines {
			if c.Pipelines[i].ID == p.ID {
				c.Pipelines[i].Points = geometry.ClonePoints(p.FromPoints)
				break
			}
		}

	case KindClearGuidelines:
		if p.Guidelines == nil {
			c.Guidelines = document.CloneGuidelines(e.Snapshot.Guidelines)
		} else {
			c.Guidelines = document.CloneGuidelines(p.Guidelines)
		}

	default:
		return e.Snapshot.Clone()
	}
	return c
}

func dropLast[T any](s []T, n int) []T {
	if n <= 0 {
		n = 1
	}
	if n > len(s) {
		n = len(s)
	}
	return s[:len(s)-n]
}

func insertAt[T any](s []T, i int, v T) []T {
	if i < 0 {
		i = 0
	}
	if i > len(s) {
		i = len(s)
	}
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
