package state

import (
	"errors"
	"fmt"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/history"
)

var (
	ErrUnknownTreeType     = document.ErrUnknownTreeType
	ErrUnknownPipelineKind = document.ErrUnknownPipelineKind
	ErrUnknownShape        = document.ErrUnknownGuidelineShape

	ErrNothingToUndo = history.ErrNothingToUndo
	ErrNothingToRedo = history.ErrNothingToRedo

	ErrNoImage          = errors.New("background image required")
	ErrOutOfBounds      = errors.New("position outside the image")
	ErrTooClose         = errors.New("too close to another tree")
	ErrTooFewPoints     = errors.New("not enough points")
	ErrTooManyPoints    = errors.New("too many points")
	ErrNoScaleLine      = errors.New("reference line required")
	ErrLineTooShort     = errors.New("reference line too short")
	ErrLengthOutOfRange = errors.New("real length out of range")
	ErrScaleOutOfRange  = errors.New("scale out of range")
	ErrScaleRequired    = errors.New("scale not defined")
	ErrPolygonRequired  = errors.New("property boundary required")
	ErrNotFound         = errors.New("not found")
	ErrNotDrawing       = errors.New("no shape in progress")
	ErrInvalidSpacing   = errors.New("invalid spacing")
	ErrUnknownPattern   = errors.New("unknown planting pattern")
	ErrUnknownUnit      = errors.New("unknown unit")
	ErrUnknownPreset    = errors.New("unknown scale preset")
	ErrReferences       = errors.New("at least 2 references required")
	ErrHighVariation    = errors.New("references disagree")
	ErrNothingToClear   = errors.New("nothing to clear")
	ErrLoadInProgress   = errors.New("load already in progress")
	ErrCloseVertices    = errors.New("vertices too close together")
)

// ValidationError is returned when an operation refuses its input. The
// state is unchanged when one is returned.
type ValidationError struct {
	Op     string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(op string, err error, format string, args ...any) error {
	return &ValidationError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)}
}
