package timeline

// RegionGesture names the raw region gestures of the region lane.
type RegionGesture int

const (
	RegionMove RegionGesture = iota
	RegionResizeStart
	RegionResizeEnd
)

func (g RegionGesture) String() string {
	switch g {
	case RegionResizeStart:
		return "resize-start"
	case RegionResizeEnd:
		return "resize-end"
	default:
		return "move"
	}
}

// minRawLength keeps raw drag geometry from inverting. The model applies the
// real minimum on commit.
const minRawLength = 0.01

// RegionLane is an in-process region primitive: it stores region geometry,
// applies raw drag deltas and reports the final geometry of a gesture through
// OnUpdateEnd. With EchoOnSet, positions pushed through SetRegion are
// reported back the same way, as browser region widgets do.
type RegionLane struct {
	EchoOnSet   bool
	OnUpdateEnd func(id string, start, end float64)

	duration float64
	order    []string
	regions  map[string]Region
}

// NewRegionLane creates an empty lane.
func NewRegionLane(echoOnSet bool) *RegionLane {
	return &RegionLane{EchoOnSet: echoOnSet, regions: make(map[string]Region)}
}

// SetDuration bounds raw geometry to [0, duration].
func (l *RegionLane) SetDuration(d float64) {
	l.duration = d
}

// AddRegion implements RegionPrimitive.
func (l *RegionLane) AddRegion(r Region) {
	if _, ok := l.regions[r.ID]; !ok {
		l.order = append(l.order, r.ID)
	}
	l.regions[r.ID] = r
}

// SetRegion implements RegionPrimitive.
func (l *RegionLane) SetRegion(id string, start, end float64) {
	r, ok := l.regions[id]
	if !ok {
		return
	}
	r.Start, r.End = start, end
	l.regions[id] = r
	if l.EchoOnSet {
		l.reportEnd(id)
	}
}

// ClearRegions implements RegionPrimitive.
func (l *RegionLane) ClearRegions() {
	l.order = nil
	l.regions = make(map[string]Region)
}

// Get returns one region.
func (l *RegionLane) Get(id string) (Region, bool) {
	r, ok := l.regions[id]
	return r, ok
}

// Regions returns the regions in insertion order.
func (l *RegionLane) Regions() []Region {
	out := make([]Region, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.regions[id])
	}
	return out
}

// DragTo applies a raw gesture delta (seconds) to the pre-drag geometry.
func (l *RegionLane) DragTo(id string, g RegionGesture, initial Region, delta float64) (Region, bool) {
	r, ok := l.regions[id]
	if !ok {
		return Region{}, false
	}
	switch g {
	case RegionMove:
		r.Start, r.End = fitInside(initial.Start+delta, initial.End+delta, l.duration)
	case RegionResizeStart:
		r.Start = clamp(initial.Start+delta, 0, initial.End-minRawLength)
		r.End = initial.End
	case RegionResizeEnd:
		hi := initial.End + delta
		if l.duration > 0 {
			hi = clamp(hi, initial.Start+minRawLength, l.duration)
		} else if hi < initial.Start+minRawLength {
			hi = initial.Start + minRawLength
		}
		r.Start, r.End = initial.Start, hi
	}
	l.regions[id] = r
	return r, true
}

// Restore puts a region back to its pre-drag geometry without reporting.
func (l *RegionLane) Restore(initial Region) {
	if _, ok := l.regions[initial.ID]; ok {
		l.regions[initial.ID] = initial
	}
}

// EndDrag reports the current geometry of a region as the end of a gesture.
func (l *RegionLane) EndDrag(id string) {
	l.reportEnd(id)
}

// Report stores geometry produced outside the lane, such as a remote client
// finishing a drag, and reports it as the final update.
func (l *RegionLane) Report(id string, start, end float64) bool {
	r, ok := l.regions[id]
	if !ok {
		return false
	}
	r.Start, r.End = start, end
	l.regions[id] = r
	l.reportEnd(id)
	return true
}

func (l *RegionLane) reportEnd(id string) {
	r, ok := l.regions[id]
	if !ok || l.OnUpdateEnd == nil {
		return
	}
	l.OnUpdateEnd(id, r.Start, r.End)
}
