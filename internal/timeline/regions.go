package timeline

import (
	"log/slog"
	"math"
	"sort"
)

// RegionConfig tunes the edit pipeline of a RegionModel.
type RegionConfig struct {
	SnapThreshold float64 // seconds
	MinLength     float64 // seconds
	EchoEpsilon   float64 // seconds; update events this close to a lock are echoes
}

// DefaultRegionConfig returns the stock edit pipeline settings.
func DefaultRegionConfig() RegionConfig {
	return RegionConfig{
		SnapThreshold: DefaultSnapThreshold,
		MinLength:     0.5,
		EchoEpsilon:   0.002,
	}
}

// RegionStats counts what the edit pipeline did.
type RegionStats struct {
	Commits          int
	Snaps            int
	Expansions       int
	EchoesSuppressed int
}

// RegionModel merges detector segments with user overrides and runs the
// snap/clamp/lock pipeline for region edits.
type RegionModel struct {
	cfg      RegionConfig
	duration float64

	segments []Segment
	keys     []string
	index    map[string]int

	overrides map[string]Override
	locks     map[string]Override

	effective []EffectiveSegment

	primitive RegionPrimitive
	notify    Notifier
	Logger    *slog.Logger

	stats RegionStats
}

// NewRegionModel creates an empty model. Nil collaborators are replaced by
// no-op implementations.
func NewRegionModel(cfg RegionConfig, primitive RegionPrimitive, notify Notifier) *RegionModel {
	if primitive == nil {
		primitive = nopPrimitive{}
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	def := DefaultRegionConfig()
	if cfg.SnapThreshold < 0 {
		cfg.SnapThreshold = def.SnapThreshold
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.EchoEpsilon <= 0 {
		cfg.EchoEpsilon = def.EchoEpsilon
	}
	return &RegionModel{
		cfg:       cfg,
		index:     make(map[string]int),
		overrides: make(map[string]Override),
		locks:     make(map[string]Override),
		primitive: primitive,
		notify:    notify,
	}
}

func (m *RegionModel) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// SetPrimitive swaps the region primitive and redraws every region on it.
func (m *RegionModel) SetPrimitive(p RegionPrimitive) {
	if p == nil {
		p = nopPrimitive{}
	}
	m.primitive = p
	m.redraw()
}

// SetSegments replaces the detector output. Invalid segments are dropped,
// overrides and echo locks whose identity disappeared are discarded.
func (m *RegionModel) SetSegments(segments []Segment, duration float64) {
	m.duration = duration
	valid := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	m.segments = valid
	m.keys = AssignKeys(valid)
	m.index = make(map[string]int, len(valid))
	for i, k := range m.keys {
		m.index[k] = i
	}

	dropped := 0
	for k := range m.overrides {
		if _, ok := m.index[k]; !ok {
			delete(m.overrides, k)
			dropped++
		}
	}
	for k := range m.locks {
		if _, ok := m.index[k]; !ok {
			delete(m.locks, k)
		}
	}
	if dropped > 0 {
		m.logger().Debug("discarded stale overrides", "count", dropped)
	}

	m.recompute()
	m.redraw()
}

// SetDuration updates the track length used for clamping.
func (m *RegionModel) SetDuration(duration float64) {
	m.duration = duration
}

// Duration returns the track length the model clamps against.
func (m *RegionModel) Duration() float64 {
	return m.duration
}

// Effective returns the current effective segments in input order.
func (m *RegionModel) Effective() []EffectiveSegment {
	out := make([]EffectiveSegment, len(m.effective))
	copy(out, m.effective)
	return out
}

// Lookup returns the effective segment for a region id.
func (m *RegionModel) Lookup(id string) (EffectiveSegment, bool) {
	i, ok := m.index[id]
	if !ok {
		return EffectiveSegment{}, false
	}
	return m.effective[i], true
}

// Overrides returns a copy of the override map.
func (m *RegionModel) Overrides() map[string]Override {
	out := make(map[string]Override, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out
}

// Stats returns pipeline counters.
func (m *RegionModel) Stats() RegionStats {
	return m.stats
}

// HandleUpdateEnd processes the final geometry reported by the region
// primitive. An event matching the pending lock for its region is an echo of
// the model's own correction: the lock is cleared and nothing else happens.
func (m *RegionModel) HandleUpdateEnd(id string, start, end float64) {
	if lock, ok := m.locks[id]; ok {
		delete(m.locks, id)
		if math.Abs(lock.T0-start) <= m.cfg.EchoEpsilon && math.Abs(lock.T1-end) <= m.cfg.EchoEpsilon {
			m.stats.EchoesSuppressed++
			m.logger().Debug("suppressed region echo", "region", id, "start", start, "end", end)
			return
		}
	}
	m.CommitEdit(id, start, end)
}

// CommitEdit snaps, widens and clamps a raw edit, stores it as the region's
// override and notifies the host. It returns the committed segment.
func (m *RegionModel) CommitEdit(id string, start, end float64) (Segment, bool) {
	i, ok := m.index[id]
	if !ok || m.duration <= 0 {
		return Segment{}, false
	}
	if end < start {
		start, end = end, start
	}

	candidates := SnapCandidates(m.duration, m.effective, id)
	s, e := SnapRange(start, end, candidates, m.cfg.SnapThreshold)
	if s != start || e != end {
		m.stats.Snaps++
	}
	if e-s < m.cfg.MinLength {
		m.stats.Expansions++
	}
	s, e = EnforceMinLength(s, e, m.cfg.MinLength, m.duration)
	s, e = clamp(s, 0, m.duration), clamp(e, 0, m.duration)

	committed := Override{T0: s, T1: e}
	m.overrides[id] = committed
	m.locks[id] = committed
	m.stats.Commits++
	m.recompute()

	if math.Abs(s-start) > m.cfg.EchoEpsilon || math.Abs(e-end) > m.cfg.EchoEpsilon {
		m.primitive.SetRegion(id, s, e)
	}

	orig := m.segments[i]
	seg := Segment{Label: orig.Label, T0: s, T1: e, Score: orig.Score}
	m.logger().Debug("committed region edit",
		"region", id, "raw_start", start, "raw_end", end, "t0", s, "t1", e)
	m.notify.SegmentChanged(seg.Label, SegmentTimes{T0: s, T1: e, Score: seg.Score})
	return seg, true
}

// ResetOverride drops the user correction of one region.
func (m *RegionModel) ResetOverride(id string) bool {
	i, ok := m.index[id]
	if !ok {
		return false
	}
	if _, had := m.overrides[id]; !had {
		return false
	}
	delete(m.overrides, id)
	orig := m.segments[i]
	m.locks[id] = Override{T0: orig.T0, T1: orig.T1}
	m.recompute()
	m.primitive.SetRegion(id, orig.T0, orig.T1)
	m.notify.SegmentChanged(orig.Label, SegmentTimes{T0: orig.T0, T1: orig.T1, Score: orig.Score})
	return true
}

// ResetAll drops every user correction.
func (m *RegionModel) ResetAll() int {
	n := 0
	for _, k := range m.keys {
		if m.ResetOverride(k) {
			n++
		}
	}
	return n
}

func (m *RegionModel) recompute() {
	eff := make([]EffectiveSegment, len(m.segments))
	for i, s := range m.segments {
		id := m.keys[i]
		e := EffectiveSegment{Segment: s, RegionID: id, Hue: LabelHue(s.Label)}
		if o, ok := m.overrides[id]; ok {
			e.T0, e.T1 = o.T0, o.T1
			e.Edited = true
		}
		eff[i] = e
	}
	for _, i := range LabelVisible(eff) {
		eff[i].ShowLabel = true
	}
	m.effective = eff
}

func (m *RegionModel) redraw() {
	m.primitive.ClearRegions()
	for _, e := range m.effective {
		m.primitive.AddRegion(Region{
			ID:        e.RegionID,
			Start:     e.T0,
			End:       e.T1,
			Draggable: true,
			Resizable: true,
			Hue:       e.Hue,
		})
	}
}

// LabelVisible returns the indices (into segs) of the one segment per overlap
// cluster whose label should be drawn: the highest score, first on ties.
func LabelVisible(segs []EffectiveSegment) []int {
	clusters := Clusters(segs)
	visible := make([]int, 0, len(clusters))
	for _, c := range clusters {
		best := c[0]
		for _, idx := range c[1:] {
			if SortScore(segs[idx].Score) > SortScore(segs[best].Score) {
				best = idx
			}
		}
		visible = append(visible, best)
	}
	return visible
}

// Clusters groups segment indices into maximal overlap clusters, in time order.
func Clusters(segs []EffectiveSegment) [][]int {
	if len(segs) == 0 {
		return nil
	}
	order := make([]int, len(segs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := segs[order[a]], segs[order[b]]
		if sa.T0 != sb.T0 {
			return sa.T0 < sb.T0
		}
		return sa.T1 < sb.T1
	})
	var out [][]int
	cur := []int{order[0]}
	clusterEnd := segs[order[0]].T1
	for _, idx := range order[1:] {
		s := segs[idx]
		if s.T0 <= clusterEnd {
			cur = append(cur, idx)
			clusterEnd = math.Max(clusterEnd, s.T1)
			continue
		}
		out = append(out, cur)
		cur = []int{idx}
		clusterEnd = s.T1
	}
	return append(out, cur)
}
