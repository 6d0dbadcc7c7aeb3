package state

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/reforesta/planner/backend-go/internal/geometry"
)

const (
	// MinScaleLinePx is the shortest reference line accepted.
	MinScaleLinePx = 10.0
	MinRealLength  = 0.001
	MaxRealLength  = 1000.0
	// Bounds on the resulting meters per pixel.
	MinScale = MinRealLength / 1000
	MaxScale = MaxRealLength / 10

	maxScaleHistory = 10
	// CalibrationMaxCV is the largest coefficient of variation, in percent,
	// accepted between calibration references.
	CalibrationMaxCV = 10.0
)

// Precision grades a scale by the length of its reference line.
type Precision string

const (
	PrecisionUnknown Precision = "Desconocida"
	PrecisionLow     Precision = "Baja"
	PrecisionMedium  Precision = "Media"
	PrecisionHigh    Precision = "Alta"
)

func precisionFor(pixelLength float64) Precision {
	switch {
	case pixelLength < 50:
		return PrecisionLow
	case pixelLength < 150:
		return PrecisionMedium
	}
	return PrecisionHigh
}

// ScaleRecord is one entry of the scale history, newest first.
type ScaleRecord struct {
	Scale       float64   `json:"scale"`
	RealLength  float64   `json:"realLength"`
	PixelLength float64   `json:"pixelLength"`
	Precision   Precision `json:"precision"`
	Timestamp   time.Time `json:"timestamp"`
}

type ScaleResult struct {
	Scale      float64    `json:"scale"`
	Precision  Precision  `json:"precision"`
	Advisories []Advisory `json:"advisories,omitempty"`
}

// StartScaling enters scaling mode and drops any previous reference line.
func (s *State) StartScaling() error {
	if s.image == nil {
		return invalid("start scaling", ErrNoImage, "")
	}
	s.scaleLine = nil
	s.setMode(ModeScaling)
	return nil
}

// BeginScaleLine anchors a new reference line at p.
func (s *State) BeginScaleLine(p geometry.Point) {
	s.scaleLine = &ScaleLine{Start: p, End: p}
}

// UpdateScaleLine moves the free end of the reference line.
func (s *State) UpdateScaleLine(p geometry.Point) {
	if s.scaleLine == nil {
		return
	}
	s.scaleLine.End = p
}

func (s *State) ScaleLine() (ScaleLine, bool) {
	if s.scaleLine == nil {
		return ScaleLine{}, false
	}
	return *s.scaleLine, true
}

func (s *State) clearScaleLine() { s.scaleLine = nil }

// ApplyScaleLine sets the scale from the drawn reference line.
func (s *State) ApplyScaleLine(realLength float64) (ScaleResult, error) {
	if s.scaleLine == nil {
		return ScaleResult{}, invalid("set scale", ErrNoScaleLine, "")
	}
	return s.SetScale(realLength, s.scaleLine.Length())
}

// SetScale sets meters per pixel to realLength/pixelLength. The scale is
// configuration: it is never recorded in the undo history.
func (s *State) SetScale(realLength, pixelLength float64) (ScaleResult, error) {
	const op = "set scale"
	if math.IsNaN(realLength) || realLength <= 0 || realLength < MinRealLength || realLength > MaxRealLength {
		return ScaleResult{}, invalid(op, ErrLengthOutOfRange, "%g m not in [%g, %g]", realLength, MinRealLength, MaxRealLength)
	}
	if math.IsNaN(pixelLength) || pixelLength < MinScaleLinePx {
		return ScaleResult{}, invalid(op, ErrLineTooShort, "%.1f px, minimum %g", pixelLength, MinScaleLinePx)
	}
	scale := realLength / pixelLength
	if scale < MinScale || scale > MaxScale {
		return ScaleResult{}, invalid(op, ErrScaleOutOfRange, "%g m/px", scale)
	}

	res := ScaleResult{Scale: scale, Precision: precisionFor(pixelLength)}
	if res.Precision == PrecisionLow {
		res.Advisories = append(res.Advisories, AdvisoryShortScaleLine)
	}
	s.applyScale(scale, realLength, pixelLength)
	s.log.Debug("scale set", "scale", scale, "real_length", realLength, "pixel_length", pixelLength)
	return res, nil
}

func (s *State) applyScale(scale, realLength, pixelLength float64) {
	v := scale
	s.scale = &v
	s.recordScale(scale, realLength, pixelLength)
	s.scaleLine = nil
	s.setMode(ModeNormal)
	s.emit(EventScaleChanged, scale)
}

func (s *State) recordScale(scale, realLength, pixelLength float64) {
	rec := ScaleRecord{
		Scale:       scale,
		RealLength:  realLength,
		PixelLength: pixelLength,
		Precision:   precisionFor(pixelLength),
		Timestamp:   s.now(),
	}
	s.scaleHistory = append([]ScaleRecord{rec}, s.scaleHistory...)
	if len(s.scaleHistory) > maxScaleHistory {
		s.scaleHistory = s.scaleHistory[:maxScaleHistory]
	}
}

func (s *State) ScaleHistory() []ScaleRecord {
	out := make([]ScaleRecord, len(s.scaleHistory))
	copy(out, s.scaleHistory)
	return out
}

// ScalePrecision is the precision of the most recent scale.
func (s *State) ScalePrecision() Precision {
	if len(s.scaleHistory) == 0 {
		return PrecisionUnknown
	}
	return s.scaleHistory[0].Precision
}

func (s *State) PixelsToMeters(px float64) (float64, error) {
	if s.scale == nil {
		return 0, ErrScaleRequired
	}
	return px * *s.scale, nil
}

func (s *State) MetersToPixels(m float64) (float64, error) {
	if s.scale == nil {
		return 0, ErrScaleRequired
	}
	return m / *s.scale, nil
}

// Presets are common imagery resolutions in meters per pixel.
var Presets = map[string]float64{
	"satellite_high":   0.5,
	"satellite_medium": 1.0,
	"satellite_low":    5.0,
	"aerial_high":      0.1,
	"aerial_medium":    0.3,
	"map_1_1000":       0.264,
	"map_1_5000":       1.32,
	"map_1_10000":      2.64,
}

func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for k := range Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset sets the scale from a named preset. The history entry reads
// as a 100 px reference line.
func (s *State) ApplyPreset(name string) (float64, error) {
	scale, ok := Presets[name]
	if !ok {
		return 0, invalid("apply preset", ErrUnknownPreset, "%q", name)
	}
	v := scale
	s.scale = &v
	s.recordScale(scale, scale*100, 100)
	s.emit(EventScaleChanged, scale)
	return scale, nil
}

// ScaleReference is one measured line used for calibration.
type ScaleReference struct {
	Line       ScaleLine `json:"line"`
	RealLength float64   `json:"realLength"`
}

type Calibration struct {
	Scale   float64 `json:"scale"`
	StdDev  float64 `json:"stdDev"`
	CV      float64 `json:"cv"`
	Applied bool    `json:"applied"`
}

// CalibrateScale averages the scales implied by several references. The
// mean is applied only when the references agree within CalibrationMaxCV
// percent; otherwise the calibration is returned with ErrHighVariation and
// the scale is left alone.
func (s *State) CalibrateScale(refs []ScaleReference) (Calibration, error) {
	const op = "calibrate scale"
	if len(refs) < 2 {
		return Calibration{}, invalid(op, ErrReferences, "got %d", len(refs))
	}
	scales := make([]float64, 0, len(refs))
	for i, r := range refs {
		px := r.Line.Length()
		if px <= 0 || r.RealLength <= 0 {
			return Calibration{}, invalid(op, ErrLengthOutOfRange, "reference %d", i)
		}
		scales = append(scales, r.RealLength/px)
	}

	mean, std := stat.PopMeanStdDev(scales, nil)
	c := Calibration{Scale: mean, StdDev: std, CV: std / mean * 100}
	if c.CV >= CalibrationMaxCV {
		return c, invalid(op, ErrHighVariation, "%.1f%%", c.CV)
	}
	if mean < MinScale || mean > MaxScale {
		return c, invalid(op, ErrScaleOutOfRange, "%g m/px", mean)
	}
	v := mean
	s.scale = &v
	s.emit(EventScaleChanged, mean)
	c.Applied = true
	return c, nil
}

// Units maps supported length units to meters.
var Units = map[string]float64{
	"m":  1,
	"km": 1000,
	"cm": 0.01,
	"ft": 0.3048,
	"yd": 0.9144,
	"in": 0.0254,
}

func ConvertUnits(value float64, from, to string) (float64, error) {
	f, ok := Units[from]
	if !ok {
		return 0, invalid("convert units", ErrUnknownUnit, "%q", from)
	}
	t, ok := Units[to]
	if !ok {
		return 0, invalid("convert units", ErrUnknownUnit, "%q", to)
	}
	return value * f / t, nil
}
