package state

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/reforesta/planner/backend-go/internal/document"
)

// ImageDecoder turns an encoded background image (a data URL) into an
// Image with its pixel size.
type ImageDecoder interface {
	DecodeImage(ctx context.Context, data string) (*Image, error)
}

// Loader serialises background image and project loads into a State. Only
// one load may be pending at a time; a second one fails with
// ErrLoadInProgress instead of racing the first.
type Loader struct {
	state   *State
	decoder ImageDecoder
	busy    atomic.Bool
}

func NewLoader(s *State, decoder ImageDecoder) *Loader {
	return &Loader{state: s, decoder: decoder}
}

func (l *Loader) acquire() error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrLoadInProgress
	}
	return nil
}

func (l *Loader) release() { l.busy.Store(false) }

// Busy reports whether a load is pending.
func (l *Loader) Busy() bool { return l.busy.Load() }

// LoadImage decodes data and installs it as the background image. The
// state is left alone when decoding fails or ctx is cancelled.
func (l *Loader) LoadImage(ctx context.Context, data string) (*Image, []Advisory, error) {
	if err := l.acquire(); err != nil {
		return nil, nil, err
	}
	defer l.release()

	if l.decoder == nil {
		return nil, nil, fmt.Errorf("decode background image: no decoder")
	}
	img, err := l.decoder.DecodeImage(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode background image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return img, l.state.SetImage(img), nil
}

// LoadProject decodes a saved project, and its background image when it
// carries one, then replaces the state with it. Nothing changes unless the
// whole load succeeds. The returned warnings come from document.Decode.
func (l *Loader) LoadProject(ctx context.Context, raw []byte) ([]string, error) {
	if err := l.acquire(); err != nil {
		return nil, err
	}
	defer l.release()

	p, warnings, err := document.Decode(raw)
	if err != nil {
		return nil, err
	}
	return warnings, l.apply(ctx, p)
}

// LoadTemplate replaces the state with a built-in project template.
func (l *Loader) LoadTemplate(ctx context.Context, name string) error {
	if err := l.acquire(); err != nil {
		return err
	}
	defer l.release()

	p, err := document.NewFromTemplate(name)
	if err != nil {
		return err
	}
	return l.apply(ctx, p)
}

func (l *Loader) apply(ctx context.Context, p *document.ProjectData) error {
	var img *Image
	if p.BackgroundImageData != "" && l.decoder != nil {
		var err error
		img, err = l.decoder.DecodeImage(ctx, p.BackgroundImageData)
		if err != nil {
			return fmt.Errorf("decode background image: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.state.LoadProjectData(p, img)
	return nil
}
