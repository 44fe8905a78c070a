package timeline

import "math"

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

type notification struct {
	kind  string
	label string
	times SegmentTimes
	start float64
	end   float64
}

type recordingNotifier struct {
	events []notification
}

func (r *recordingNotifier) SegmentSelected(label string, seg SegmentTimes) {
	r.events = append(r.events, notification{kind: "selected", label: label, times: seg})
}

func (r *recordingNotifier) SegmentChanged(label string, seg SegmentTimes) {
	r.events = append(r.events, notification{kind: "changed", label: label, times: seg})
}

func (r *recordingNotifier) PreviewRangeChanged(start, end float64) {
	r.events = append(r.events, notification{kind: "preview", start: start, end: end})
}

func (r *recordingNotifier) count(kind string) int {
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) last(kind string) (notification, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].kind == kind {
			return r.events[i], true
		}
	}
	return notification{}, false
}

type fakeEngine struct {
	seeks      []float64
	zooms      []float64
	playPauses int
}

func (f *fakeEngine) SeekTo(fraction float64) { f.seeks = append(f.seeks, fraction) }
func (f *fakeEngine) ZoomTo(z float64) { f.zooms = append(f.zooms, z) }
func (f *fakeEngine) PlayPause() { f.playPauses++ }
