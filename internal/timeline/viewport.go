package timeline

import "math"

// Mode is the pointer interaction mode of the timeline.
type Mode int

const (
	ModeSeek Mode = iota
	ModePan
)

func (m Mode) String() string {
	if m == ModePan {
		return "pan"
	}
	return "seek"
}

// ParseMode converts "seek" or "pan" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "seek":
		return ModeSeek, true
	case "pan":
		return ModePan, true
	}
	return ModeSeek, false
}

const (
	MinZoom     = 16
	MaxZoom     = 400
	DefaultZoom = 90
	// WheelNotch is the wheel delta treated as one detent.
	WheelNotch = 30
	// DefaultWheelStep is the zoom change per detent in px/s.
	DefaultWheelStep = 3
)

// ZoomLimits bounds the zoom density.
type ZoomLimits struct {
	Min, Max float64
}

// DefaultZoomLimits returns [MinZoom, MaxZoom].
func DefaultZoomLimits() ZoomLimits {
	return ZoomLimits{Min: MinZoom, Max: MaxZoom}
}

// Clamp bounds z to the limits.
func (l ZoomLimits) Clamp(z float64) float64 {
	return clamp(z, l.Min, l.Max)
}

// WheelZoom returns the zoom after a modifier-wheel event. Negative deltaY
// (wheel away from the user) zooms in.
func WheelZoom(zoom, deltaY, stepPerNotch float64, limits ZoomLimits) float64 {
	if deltaY == 0 {
		return limits.Clamp(zoom)
	}
	if stepPerNotch <= 0 {
		stepPerNotch = DefaultWheelStep
	}
	step := stepPerNotch * math.Max(1, math.Round(math.Abs(deltaY)/WheelNotch))
	if deltaY > 0 {
		step = -step
	}
	return limits.Clamp(zoom + step)
}

// Viewport is the scroll container state around the waveform.
type Viewport struct {
	Zoom        float64
	ScrollLeft  float64
	ClientWidth float64
	Mode        Mode
}

// ContentWidth returns the scrollable width for a track of duration.
func (v Viewport) ContentWidth(duration float64) float64 {
	return ContentWidthFor(duration, v.Zoom, v.ClientWidth)
}

// MaxScroll returns the largest valid ScrollLeft.
func (v Viewport) MaxScroll(duration float64) float64 {
	return math.Max(0, v.ContentWidth(duration)-v.ClientWidth)
}

// ClampScroll keeps ScrollLeft inside [0, contentWidth - clientWidth].
func (v *Viewport) ClampScroll(duration float64) {
	v.ScrollLeft = clamp(v.ScrollLeft, 0, v.MaxScroll(duration))
}

// VisibleRange returns the time span currently on screen.
func (v Viewport) VisibleRange(duration float64) (float64, float64) {
	m := NewMapper(duration, v.Zoom, v.ClientWidth)
	start, ok := m.OffsetToTime(v.ScrollLeft)
	if !ok {
		return 0, 0
	}
	end, _ := m.OffsetToTime(v.ScrollLeft + v.ClientWidth)
	return start, end
}
