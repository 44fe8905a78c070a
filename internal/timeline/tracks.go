package timeline

// TrackKind selects which rendition of the audio the waveform shows.
type TrackKind int

const (
	TrackOriginal TrackKind = iota
	TrackProcessed
)

func (k TrackKind) String() string {
	if k == TrackProcessed {
		return "processed"
	}
	return "original"
}

// TrackChooser decides which track is active. When a processed output first
// becomes available the switch is deferred through Defer, so the frame that
// introduces the output still renders the original track.
type TrackChooser struct {
	// Defer schedules fn after the current event has been handled. Nil runs
	// fn immediately.
	Defer    func(fn func())
	OnChange func(active TrackKind)

	active       TrackKind
	hasProcessed bool
	pending      bool
}

// Active returns the active track.
func (c *TrackChooser) Active() TrackKind { return c.active }

// HasProcessed reports whether a processed output exists.
func (c *TrackChooser) HasProcessed() bool { return c.hasProcessed }

// OutputAvailable records a processed output and schedules the switch to it.
func (c *TrackChooser) OutputAvailable() {
	if c.hasProcessed {
		return
	}
	c.hasProcessed = true
	if c.pending {
		return
	}
	c.pending = true
	run := func() {
		if !c.pending {
			return
		}
		c.pending = false
		if c.hasProcessed {
			c.set(TrackProcessed)
		}
	}
	if c.Defer == nil {
		run()
		return
	}
	c.Defer(run)
}

// OutputRemoved falls back to the original track.
func (c *TrackChooser) OutputRemoved() {
	c.hasProcessed = false
	c.pending = false
	c.set(TrackOriginal)
}

// Select switches tracks explicitly. Selecting the processed track without an
// output is ignored.
func (c *TrackChooser) Select(k TrackKind) bool {
	if k == TrackProcessed && !c.hasProcessed {
		return false
	}
	c.pending = false
	c.set(k)
	return true
}

func (c *TrackChooser) set(k TrackKind) {
	if c.active == k {
		return
	}
	c.active = k
	if c.OnChange != nil {
		c.OnChange(k)
	}
}
