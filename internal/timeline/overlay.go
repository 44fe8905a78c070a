package timeline

import "math"

// Offsets is the translation every overlay track shares with the waveform.
type Offsets struct {
	ContentWidth float64 `json:"content_width"`
	ScrollOffset float64 `json:"scroll_offset"`
}

// Thumb is the scrollbar indicator geometry.
type Thumb struct {
	Visible      bool    `json:"visible"`
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
}

// ScrollThumb computes the scrollbar indicator. It is hidden when the content
// fits without scrolling.
func ScrollThumb(scrollWidth, clientWidth, scrollLeft float64) Thumb {
	if scrollWidth <= clientWidth+1 || scrollWidth <= 0 {
		return Thumb{}
	}
	width := clientWidth / scrollWidth * 100
	left := clamp(scrollLeft/scrollWidth*100, 0, 100-width)
	return Thumb{Visible: true, LeftPercent: left, WidthPercent: width}
}

// Track is an auxiliary overlay lane kept aligned with the waveform.
type Track interface {
	Align(o Offsets)
}

// TrackFunc adapts a function to Track.
type TrackFunc func(o Offsets)

// Align implements Track.
func (f TrackFunc) Align(o Offsets) { f(o) }

// Synchronizer applies one shared translation to all overlay tracks.
type Synchronizer struct {
	tracks  []Track
	offsets Offsets
	thumb   Thumb
}

// Attach registers an overlay track and aligns it immediately.
func (s *Synchronizer) Attach(t Track) {
	s.tracks = append(s.tracks, t)
	t.Align(s.offsets)
}

// Refresh recomputes the shared offsets from the engine's intrinsic content
// width and the scroll container, then aligns every track.
func (s *Synchronizer) Refresh(intrinsicWidth, clientWidth, scrollLeft float64) Offsets {
	contentWidth := math.Max(intrinsicWidth, clientWidth)
	s.offsets = Offsets{ContentWidth: contentWidth, ScrollOffset: scrollLeft}
	s.thumb = ScrollThumb(contentWidth, clientWidth, scrollLeft)
	for _, t := range s.tracks {
		t.Align(s.offsets)
	}
	return s.offsets
}

// Offsets returns the last applied translation.
func (s *Synchronizer) Offsets() Offsets {
	return s.offsets
}

// Thumb returns the last computed scrollbar indicator.
func (s *Synchronizer) Thumb() Thumb {
	return s.thumb
}
