package editor

import "github.com/Dicklesworthstone/wavedit/internal/timeline"

// transport is the terminal's rendering engine. There is no audio output,
// only a clock the editor advances on ticks.
type transport struct {
	duration float64
	position float64
	zoom     float64
	playing  bool
}

var _ timeline.Engine = (*transport)(nil)

func (t *transport) SeekTo(fraction float64) {
	if t.duration <= 0 {
		return
	}
	t.position = clampf(fraction, 0, 1) * t.duration
}

func (t *transport) ZoomTo(pxPerSec float64) {
	t.zoom = pxPerSec
}

func (t *transport) PlayPause() {
	if !t.playing && t.position >= t.duration {
		t.position = 0
	}
	t.playing = !t.playing
}

// advance moves the clock by dt seconds and reports whether playback reached
// the end.
func (t *transport) advance(dt float64) bool {
	if !t.playing || dt <= 0 {
		return false
	}
	t.position += dt
	if t.position >= t.duration {
		t.position = t.duration
		t.playing = false
		return true
	}
	return false
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
