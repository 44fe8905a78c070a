// Package events carries timeline notifications from the engine to its hosts.
package events

import (
	"math"
	"time"

	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// Event types.
const (
	SegmentSelected = "segment.selected"
	SegmentChanged  = "segment.changed"
	PreviewChanged  = "preview.changed"
	EngineFailed    = "engine.failed"
	ModeChanged     = "mode.changed"
	JobReloaded     = "job.reloaded"

	// Commands for a remote rendering engine.
	EngineSeek      = "engine.seek"
	EngineZoom      = "engine.zoom"
	EnginePlayPause = "engine.play_pause"
)

// Event is one notification published on a Bus.
type Event struct {
	Type      string    `json:"type" yaml:"type"`
	Seq       uint64    `json:"seq" yaml:"seq"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
	T0    *float64 `json:"t0,omitempty" yaml:"t0,omitempty"`
	T1    *float64 `json:"t1,omitempty" yaml:"t1,omitempty"`
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`

	Start *float64 `json:"start,omitempty" yaml:"start,omitempty"`
	End   *float64 `json:"end,omitempty" yaml:"end,omitempty"`

	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`

	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

func ptr(v float64) *float64 { return &v }

// NewSegmentEvent builds a selection or change event.
func NewSegmentEvent(typ, label string, seg timeline.SegmentTimes) Event {
	score := seg.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}
	return Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Label:     label,
		T0:        ptr(seg.T0),
		T1:        ptr(seg.T1),
		Score:     ptr(score),
	}
}

// NewPreviewEvent builds a preview range event.
func NewPreviewEvent(start, end float64) Event {
	return Event{Type: PreviewChanged, Timestamp: time.Now().UTC(), Start: ptr(start), End: ptr(end)}
}

// NewValueEvent builds an event carrying one number, such as a seek fraction.
func NewValueEvent(typ string, v float64) Event {
	return Event{Type: typ, Timestamp: time.Now().UTC(), Value: ptr(v)}
}

// NewMessageEvent builds an event that only carries a message, such as an
// engine failure or a mode switch.
func NewMessageEvent(typ, msg string) Event {
	return Event{Type: typ, Timestamp: time.Now().UTC(), Message: msg}
}
