package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/reforesta/planner/backend-go/internal/state"
)

// MinImagePx is the smallest accepted width and height of a background.
const MinImagePx = 100

var (
	ErrNotDataURL     = errors.New("not a base64 data URL")
	ErrImageTooSmall  = errors.New("image too small")
	ErrUnsupportedFmt = errors.New("unsupported image format")
)

// Decode reads a background image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFmt
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if err := checkSize(b.Dx(), b.Dy()); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

func checkSize(w, h int) error {
	if w < MinImagePx || h < MinImagePx {
		return fmt.Errorf("%w: %dx%d, minimum %dx%d", ErrImageTooSmall, w, h, MinImagePx, MinImagePx)
	}
	return nil
}

// PNGDataURL encodes img as a base64 PNG data URL.
func PNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DataURLDecoder reads the pixel size of background images passed as data
// URLs. Only the image header is decoded.
type DataURLDecoder struct{}

func (DataURLDecoder) DecodeImage(ctx context.Context, data string) (*state.Image, error) {
	payload, err := dataURLPayload(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload))
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFmt
		}
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := checkSize(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return &state.Image{Width: cfg.Width, Height: cfg.Height, Data: data}, nil
}

func dataURLPayload(data string) (string, error) {
	rest, ok := strings.CutPrefix(data, "data:")
	if !ok {
		return "", ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") || !strings.HasPrefix(meta, "image/") {
		return "", ErrNotDataURL
	}
	return payload, nil
}
