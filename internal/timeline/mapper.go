// Package timeline implements the waveform timeline and region-editing engine:
// time/pixel mapping, snapping, the segment region model, ruler ticks, the
// preview window, overlay synchronisation and the pointer interaction
// controller. It performs no I/O and is driven from a single goroutine.
package timeline

import "math"

// Mapper converts between seconds and pixel offsets for one layout pass.
type Mapper struct {
	Duration     float64 // seconds
	Zoom         float64 // pixels per second
	ContentWidth float64 // pixels, already max(intrinsic, client)
}

// ContentWidthFor returns the content width that fills at least the viewport.
func ContentWidthFor(duration, zoom, clientWidth float64) float64 {
	intrinsic := 0.0
	if duration > 0 && zoom > 0 {
		intrinsic = duration * zoom
	}
	return math.Max(intrinsic, clientWidth)
}

// NewMapper builds a mapper for the given layout inputs.
func NewMapper(duration, zoom, clientWidth float64) Mapper {
	return Mapper{
		Duration:     duration,
		Zoom:         zoom,
		ContentWidth: ContentWidthFor(duration, zoom, clientWidth),
	}
}

// Ready reports whether mapping produces meaningful output.
func (m Mapper) Ready() bool {
	return m.Duration > 0 && !math.IsInf(m.Duration, 0) && !math.IsNaN(m.Duration) && m.ContentWidth > 0
}

// TimeToPercent returns the position of t as a percentage of content width.
// Unready mappers return t unchanged.
func (m Mapper) TimeToPercent(t float64) float64 {
	if !m.Ready() {
		return t
	}
	return t / m.Duration * 100
}

// OffsetToTime maps a content-space pixel offset to seconds, clamped to the
// track. Unready mappers return the offset unchanged and ok=false.
func (m Mapper) OffsetToTime(px float64) (float64, bool) {
	if !m.Ready() {
		return px, false
	}
	return clamp(px/m.ContentWidth*m.Duration, 0, m.Duration), true
}

// TimeToOffset maps seconds to a content-space pixel offset.
func (m Mapper) TimeToOffset(t float64) (float64, bool) {
	if !m.Ready() {
		return t, false
	}
	return t / m.Duration * m.ContentWidth, true
}

// DeltaToSeconds converts a pointer delta in pixels to a signed duration.
func (m Mapper) DeltaToSeconds(dx float64) (float64, bool) {
	if !m.Ready() {
		return 0, false
	}
	return dx / m.ContentWidth * m.Duration, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
