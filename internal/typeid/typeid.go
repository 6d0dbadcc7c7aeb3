package typeid

import (
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser      = "user"
	PrefixProject   = "proj"
	PrefixSnapshot  = "snap"
	PrefixOp        = "op"
	PrefixTree      = "tree"
	PrefixPipeline  = "pipe"
	PrefixGuideline = "guide"
	PrefixAsset     = "asset"
)

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid id")

// New returns a fresh id with the given prefix. The suffix is a UUIDv7, so ids
// generated within the same millisecond still differ.
func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string      { return New(PrefixUser) }
func NewProjectID() string   { return New(PrefixProject) }
func NewSnapshotID() string  { return New(PrefixSnapshot) }
func NewOpID() string        { return New(PrefixOp) }
func NewTreeID() string      { return New(PrefixTree) }
func NewPipelineID() string  { return New(PrefixPipeline) }
func NewGuidelineID() string { return New(PrefixGuideline) }
func NewAssetID() string     { return New(PrefixAsset) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalid, id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("%w %q: expected prefix %q", ErrInvalid, id, expectedPrefix)
	}
	return nil
}
