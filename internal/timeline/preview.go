package timeline

import "math"

const (
	// DefaultPreviewMinLength is the shortest preview window in seconds.
	DefaultPreviewMinLength = 0.5
	// DefaultPreviewTolerance is how close the committed value must come to a
	// draft before the draft is dropped.
	DefaultPreviewTolerance = 0.05
)

// PreviewWindow is the time range rendered as a fast preview mix.
type PreviewWindow struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Length returns End - Start.
func (w PreviewWindow) Length() float64 {
	return w.End - w.Start
}

// Mid returns the window midpoint.
func (w PreviewWindow) Mid() float64 {
	return (w.Start + w.End) / 2
}

// NormalizePreview clamps a requested window to [0, duration], widens it
// symmetrically around its midpoint to minLen and caps it at duration.
func NormalizePreview(start, end, duration, minLen float64) PreviewWindow {
	if end < start {
		start, end = end, start
	}
	if duration <= 0 {
		return PreviewWindow{Start: start, End: end}
	}
	start = clamp(start, 0, duration)
	end = clamp(end, 0, duration)
	s, e := EnforceMinLength(start, end, math.Min(minLen, duration), duration)
	return PreviewWindow{Start: s, End: e}
}

// PreviewGesture names the three preview drag gestures.
type PreviewGesture int

const (
	PreviewMove PreviewGesture = iota
	PreviewResizeStart
	PreviewResizeEnd
)

func (g PreviewGesture) String() string {
	switch g {
	case PreviewMove:
		return "move"
	case PreviewResizeStart:
		return "resize-start"
	case PreviewResizeEnd:
		return "resize-end"
	default:
		return "unknown"
	}
}

// PreviewModel holds the committed preview window and the draft of an
// in-progress drag.
type PreviewModel struct {
	MinLength float64
	Tolerance float64

	duration  float64
	committed PreviewWindow
	draft     *PreviewWindow
	dragging  bool
}

// NewPreviewModel creates a model with the given floor and tolerance; zero
// values select the defaults.
func NewPreviewModel(minLength, tolerance float64) *PreviewModel {
	if minLength <= 0 {
		minLength = DefaultPreviewMinLength
	}
	if tolerance <= 0 {
		tolerance = DefaultPreviewTolerance
	}
	return &PreviewModel{MinLength: minLength, Tolerance: tolerance}
}

// SetDuration updates the track length and renormalizes the committed window.
func (p *PreviewModel) SetDuration(duration float64) {
	p.duration = duration
	if duration > 0 {
		p.committed = NormalizePreview(p.committed.Start, p.committed.End, duration, p.MinLength)
	}
}

// SetCommitted applies the host's value. A draft the committed value has
// caught up with is discarded.
func (p *PreviewModel) SetCommitted(start, length float64) {
	p.committed = NormalizePreview(start, start+length, p.duration, p.MinLength)
	if p.draft != nil && !p.dragging &&
		math.Abs(p.draft.Start-p.committed.Start) <= p.Tolerance &&
		math.Abs(p.draft.End-p.committed.End) <= p.Tolerance {
		p.draft = nil
	}
}

// Committed returns the host's value.
func (p *PreviewModel) Committed() PreviewWindow {
	return p.committed
}

// Window returns the window to render: the draft when present.
func (p *PreviewModel) Window() PreviewWindow {
	if p.draft != nil {
		return *p.draft
	}
	return p.committed
}

// HasDraft reports whether a draft supersedes the committed value.
func (p *PreviewModel) HasDraft() bool {
	return p.draft != nil
}

// Dragging reports whether a preview gesture is in progress; guide lines are
// drawn while it is.
func (p *PreviewModel) Dragging() bool {
	return p.dragging
}

// Begin starts a gesture and returns the pre-drag window.
func (p *PreviewModel) Begin() PreviewWindow {
	p.dragging = true
	w := p.Window()
	p.draft = &w
	return w
}

// Drag derives the draft from the pre-drag window and a delta in seconds.
func (p *PreviewModel) Drag(g PreviewGesture, initial PreviewWindow, delta float64) PreviewWindow {
	var w PreviewWindow
	switch g {
	case PreviewMove:
		w = p.Move(initial, delta)
	case PreviewResizeStart:
		w = p.resizeStart(initial, delta)
	case PreviewResizeEnd:
		w = p.resizeEnd(initial, delta)
	}
	p.draft = &w
	return w
}

// resizeStart moves the start edge only. It stops MinLength short of the end
// edge and at the track start.
func (p *PreviewModel) resizeStart(initial PreviewWindow, delta float64) PreviewWindow {
	if p.duration <= 0 {
		return initial
	}
	hi := math.Max(0, initial.End-p.minLength())
	return PreviewWindow{Start: clamp(initial.Start+delta, 0, hi), End: initial.End}
}

// resizeEnd moves the end edge only, between Start+MinLength and the track end.
func (p *PreviewModel) resizeEnd(initial PreviewWindow, delta float64) PreviewWindow {
	if p.duration <= 0 {
		return initial
	}
	lo := math.Min(p.duration, initial.Start+p.minLength())
	return PreviewWindow{Start: initial.Start, End: clamp(initial.End+delta, lo, p.duration)}
}

func (p *PreviewModel) minLength() float64 {
	return math.Min(p.MinLength, p.duration)
}

// Move translates both edges by delta, keeping the window inside the track.
func (p *PreviewModel) Move(initial PreviewWindow, delta float64) PreviewWindow {
	w := NormalizePreview(initial.Start, initial.End, p.duration, p.MinLength)
	s, e := fitInside(w.Start+delta, w.End+delta, p.duration)
	return PreviewWindow{Start: s, End: e}
}

// End finishes a gesture. The draft stays until the committed value catches
// up; ok is false when the final window has no length.
func (p *PreviewModel) End() (PreviewWindow, bool) {
	p.dragging = false
	w := p.Window()
	return w, w.Length() > 0
}

// Cancel abandons a gesture and discards its draft.
func (p *PreviewModel) Cancel() {
	p.dragging = false
	p.draft = nil
}
