package timeline

// Engine is the command surface of the waveform rendering engine. Lifecycle
// events travel the other way through the Controller.Handle* methods.
type Engine interface {
	// SeekTo moves playback to a fraction in [0, 1] of the track.
	SeekTo(fraction float64)
	// ZoomTo changes the rendering density in pixels per second.
	ZoomTo(pxPerSecond float64)
	PlayPause()
}

// Region is the geometry the region primitive draws for one segment.
type Region struct {
	ID        string  `json:"id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Draggable bool    `json:"draggable"`
	Resizable bool    `json:"resizable"`
	Hue       int     `json:"hue"`
}

// RegionPrimitive draws and moves regions. Implementations report the final
// geometry of a user gesture through an update-end callback and may report
// positions set through SetRegion the same way.
type RegionPrimitive interface {
	AddRegion(r Region)
	SetRegion(id string, start, end float64)
	ClearRegions()
}

// SegmentTimes is the payload of segment notifications.
type SegmentTimes struct {
	T0    float64 `json:"t0"`
	T1    float64 `json:"t1"`
	Score float64 `json:"score"`
}

// Notifier receives the callbacks the hosting workflow subscribes to.
// Calls are synchronous on the controller's goroutine.
type Notifier interface {
	SegmentSelected(label string, seg SegmentTimes)
	SegmentChanged(label string, seg SegmentTimes)
	PreviewRangeChanged(start, end float64)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) SegmentSelected(string, SegmentTimes) {}
func (NopNotifier) SegmentChanged(string, SegmentTimes) {}
func (NopNotifier) PreviewRangeChanged(float64, float64) {}

type nopEngine struct{}

func (nopEngine) SeekTo(float64) {}
func (nopEngine) ZoomTo(float64) {}
func (nopEngine) PlayPause() {}

type nopPrimitive struct{}

func (nopPrimitive) AddRegion(Region) {}
func (nopPrimitive) SetRegion(string, float64, float64) {}
func (nopPrimitive) ClearRegions() {}
