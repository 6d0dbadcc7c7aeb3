package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/reforesta/planner/backend-go/internal/metrics"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

const maxUploadSize = 20 << 20 // 20MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Format        string   `json:"format"`
	Name          string   `json:"name"`
	Bytes         int64    `json:"bytes"`
	DataURLLength int      `json:"dataUrlLength"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Handler stores uploaded background images as PNG files under dir.
type Handler struct {
	dir string
}

func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// Upload handles POST /assets/upload, a multipart form with a "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.reject(w, http.StatusBadRequest, "file too large (max 20MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.reject(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	img, format, err := Decode(file)
	switch {
	case errors.Is(err, ErrUnsupportedFmt):
		h.reject(w, http.StatusUnsupportedMediaType, "supported formats: png, jpeg, gif, bmp, webp, tiff")
		return
	case errors.Is(err, ErrImageTooSmall):
		h.reject(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.reject(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + ".png"
	path := filepath.Join(h.dir, filename)
	size, err := writePNG(path, img)
	if err != nil {
		slog.Error("save asset", "error", err, "asset", assetID)
		metrics.AssetUploadsTotal.WithLabelValues("error").Inc()
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	bounds := img.Bounds()
	resp := UploadResponse{
		ID:     assetID,
		URL:    fmt.Sprintf("/assets/%s", filename),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
		Name:   header.Filename,
		Bytes:  size,
		// Base64 grows the payload by 4/3, plus the data URL prefix.
		DataURLLength: len("data:image/png;base64,") + int((size+2)/3*4),
	}
	if resp.Width > state.LargeImagePx || resp.Height > state.LargeImagePx {
		resp.Warnings = append(resp.Warnings, state.AdvisoryLargeImage.Message())
		slog.Warn("large background image", "asset", assetID, "width", resp.Width, "height", resp.Height)
	}
	metrics.AssetUploadsTotal.WithLabelValues("ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) reject(w http.ResponseWriter, status int, msg string) {
	metrics.AssetUploadsTotal.WithLabelValues("rejected").Inc()
	http.Error(w, msg, status)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	files := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset ids are never reused.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		files.ServeHTTP(w, r)
	}))
}

// Delete removes a stored asset.
func (h *Handler) Delete(assetID string) error {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(h.dir, assetID+".png")); err != nil {
		return fmt.Errorf("delete asset %s: %w", assetID, err)
	}
	return nil
}

// Remove handles DELETE /assets/{assetId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	err := h.Delete(mux.Vars(r)["assetId"])
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, typeid.ErrInvalid):
		http.Error(w, "invalid asset id", http.StatusBadRequest)
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "asset not found", http.StatusNotFound)
	default:
		slog.Error("delete asset", "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
	}
}

// writePNG encodes img to path and returns the file size. A partial file
// is removed on failure.
func writePNG(path string, img image.Image) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return 0, fmt.Errorf("encode png: %w", err)
	}
	info, err := out.Stat()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return info.Size(), nil
}
