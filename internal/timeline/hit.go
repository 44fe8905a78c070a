package timeline

import "math"

// TargetKind identifies the surface under the pointer.
type TargetKind int

const (
	TargetCanvas TargetKind = iota
	TargetRegion
	TargetRegionStart
	TargetRegionEnd
	TargetPreviewRange
	TargetPreviewStart
	TargetPreviewEnd
)

func (k TargetKind) String() string {
	switch k {
	case TargetRegion:
		return "region"
	case TargetRegionStart:
		return "region-start"
	case TargetRegionEnd:
		return "region-end"
	case TargetPreviewRange:
		return "preview-range"
	case TargetPreviewStart:
		return "preview-start"
	case TargetPreviewEnd:
		return "preview-end"
	default:
		return "canvas"
	}
}

// ParseTargetKind is the inverse of TargetKind.String. Unknown names map to
// the canvas.
func ParseTargetKind(s string) (TargetKind, bool) {
	for k := TargetCanvas; k <= TargetPreviewEnd; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return TargetCanvas, false
}

// IsPreview reports whether the target is part of the preview window.
func (k TargetKind) IsPreview() bool {
	return k == TargetPreviewRange || k == TargetPreviewStart || k == TargetPreviewEnd
}

// IsRegion reports whether the target is part of a region.
func (k TargetKind) IsRegion() bool {
	return k == TargetRegion || k == TargetRegionStart || k == TargetRegionEnd
}

// Target is what a pointer event hit.
type Target struct {
	Kind     TargetKind
	RegionID string
}

// HitPreview classifies a content-space x against the preview window. Handles
// take precedence over the range body.
func HitPreview(w PreviewWindow, m Mapper, contentX, handlePx float64) (Target, bool) {
	startX, ok := m.TimeToOffset(w.Start)
	if !ok || w.Length() <= 0 {
		return Target{}, false
	}
	endX, _ := m.TimeToOffset(w.End)
	ds, de := math.Abs(contentX-startX), math.Abs(contentX-endX)
	switch {
	case ds <= handlePx && ds <= de:
		return Target{Kind: TargetPreviewStart}, true
	case de <= handlePx:
		return Target{Kind: TargetPreviewEnd}, true
	case contentX > startX && contentX < endX:
		return Target{Kind: TargetPreviewRange}, true
	}
	return Target{}, false
}

// HitRegion returns the topmost region under contentX. Pointers within edgePx
// of an edge of that region hit the edge instead of the body.
func HitRegion(segs []EffectiveSegment, m Mapper, contentX, edgePx float64) (Target, bool) {
	if !m.Ready() {
		return Target{}, false
	}
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		x0, _ := m.TimeToOffset(s.T0)
		x1, _ := m.TimeToOffset(s.T1)
		if contentX < x0-edgePx || contentX > x1+edgePx {
			continue
		}
		d0, d1 := math.Abs(contentX-x0), math.Abs(contentX-x1)
		switch {
		case d0 <= edgePx && d0 <= d1:
			return Target{Kind: TargetRegionStart, RegionID: s.RegionID}, true
		case d1 <= edgePx:
			return Target{Kind: TargetRegionEnd, RegionID: s.RegionID}, true
		case contentX >= x0 && contentX <= x1:
			return Target{Kind: TargetRegion, RegionID: s.RegionID}, true
		}
	}
	return Target{}, false
}
