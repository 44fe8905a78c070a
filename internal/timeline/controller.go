package timeline

import (
	"log/slog"
	"math"
)

// ControllerConfig tunes the interaction controller.
type ControllerConfig struct {
	Region           RegionConfig
	PreviewMinLength float64
	PreviewTolerance float64
	Zoom             ZoomLimits
	InitialZoom      float64
	WheelStep        float64 // px/s per wheel detent
	DragThresholdPx  float64 // movement before a region press becomes a drag
	EchoOnSet        bool    // the region lane reports corrections as updates
}

// DefaultControllerConfig returns the stock interaction settings.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Region:           DefaultRegionConfig(),
		PreviewMinLength: DefaultPreviewMinLength,
		PreviewTolerance: DefaultPreviewTolerance,
		Zoom:             DefaultZoomLimits(),
		InitialZoom:      DefaultZoom,
		WheelStep:        DefaultWheelStep,
		DragThresholdPx:  3,
		EchoOnSet:        true,
	}
}

// State is a render snapshot of the whole timeline.
type State struct {
	Ready           bool               `json:"ready"`
	Error           string             `json:"error,omitempty"`
	Duration        float64            `json:"duration"`
	Mode            string             `json:"mode"`
	Zoom            float64            `json:"zoom"`
	ScrollLeft      float64            `json:"scroll_left"`
	ClientWidth     float64            `json:"client_width"`
	ContentWidth    float64            `json:"content_width"`
	CurrentTime     float64            `json:"current_time"`
	Playing         bool               `json:"playing"`
	Selected        string             `json:"selected,omitempty"`
	Preview         PreviewWindow      `json:"preview"`
	PreviewDragging bool               `json:"preview_dragging"`
	Segments        []EffectiveSegment `json:"segments"`
	Offsets         Offsets            `json:"offsets"`
	Thumb           Thumb              `json:"thumb"`
	Gesture         string             `json:"gesture,omitempty"`
}

// Controller is the pointer state machine of the timeline. It owns the
// viewport, preview and region models and talks to the rendering engine and
// the host through interfaces. All methods must be called from one goroutine.
type Controller struct {
	cfg ControllerConfig

	engine Engine
	notify Notifier

	Regions *RegionModel
	Preview *PreviewModel
	Lane    *RegionLane
	Sync    Synchronizer

	view        Viewport
	duration    float64
	ready       bool
	err         string
	closed      bool
	playing     bool
	currentTime float64
	selected    string

	session *InteractionSession

	// Capture acquires pointer capture for a gesture and returns its release.
	Capture func() (release func())
	Logger  *slog.Logger
}

// NewController wires the models together. Nil collaborators become no-ops.
func NewController(cfg ControllerConfig, engine Engine, notify Notifier) *Controller {
	if engine == nil {
		engine = nopEngine{}
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	if cfg.Zoom.Min <= 0 || cfg.Zoom.Max < cfg.Zoom.Min {
		cfg.Zoom = DefaultZoomLimits()
	}
	if cfg.InitialZoom <= 0 {
		cfg.InitialZoom = DefaultZoom
	}
	if cfg.DragThresholdPx < 0 {
		cfg.DragThresholdPx = 0
	}

	lane := NewRegionLane(cfg.EchoOnSet)
	regions := NewRegionModel(cfg.Region, lane, notify)
	lane.OnUpdateEnd = regions.HandleUpdateEnd

	return &Controller{
		cfg:     cfg,
		engine:  engine,
		notify:  notify,
		Regions: regions,
		Preview: NewPreviewModel(cfg.PreviewMinLength, cfg.PreviewTolerance),
		Lane:    lane,
		view:    Viewport{Zoom: cfg.Zoom.Clamp(cfg.InitialZoom), Mode: ModeSeek},
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// SetEngine swaps the rendering engine command surface.
func (c *Controller) SetEngine(e Engine) {
	if e == nil {
		e = nopEngine{}
	}
	c.engine = e
}

// Interactive reports whether pointer interactions currently do anything.
func (c *Controller) Interactive() bool {
	return c.ready && c.err == "" && !c.closed && c.duration > 0
}

// Ready reports whether the engine signalled ready.
func (c *Controller) Ready() bool { return c.ready }

// Err returns the engine failure message, if any.
func (c *Controller) Err() string { return c.err }

// Mode returns the current interaction mode.
func (c *Controller) Mode() Mode { return c.view.Mode }

// Viewport returns the scroll container state.
func (c *Controller) Viewport() Viewport { return c.view }

// Duration returns the track length in seconds.
func (c *Controller) Duration() float64 { return c.duration }

// CurrentTime returns the playback position.
func (c *Controller) CurrentTime() float64 { return c.currentTime }

// Playing reports whether the engine is playing.
func (c *Controller) Playing() bool { return c.playing }

// Selected returns the selected region id.
func (c *Controller) Selected() string { return c.selected }

// Session returns the active gesture, or nil.
func (c *Controller) Session() *InteractionSession { return c.session }

// Mapper returns the time/pixel mapper for the current layout.
func (c *Controller) Mapper() Mapper {
	return NewMapper(c.duration, c.view.Zoom, c.view.ClientWidth)
}

// ---- host inputs -----------------------------------------------------------

// SetSegments replaces the detector output.
func (c *Controller) SetSegments(segs []Segment) {
	c.Regions.SetSegments(segs, c.duration)
	if c.selected != "" {
		if _, ok := c.Regions.Lookup(c.selected); !ok {
			c.selected = ""
		}
	}
}

// SetDuration sets the track length supplied by the host.
func (c *Controller) SetDuration(d float64) {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		d = 0
	}
	c.duration = d
	c.Regions.SetDuration(d)
	c.Lane.SetDuration(d)
	c.Preview.SetDuration(d)
	c.view.ClampScroll(d)
	c.refresh()
}

// SetPreview applies the host's committed preview window.
func (c *Controller) SetPreview(start, length float64) {
	c.Preview.SetCommitted(start, length)
}

// SetClientWidth resizes the viewport.
func (c *Controller) SetClientWidth(w float64) {
	if w < 0 {
		w = 0
	}
	c.view.ClientWidth = w
	c.view.ClampScroll(c.duration)
	c.refresh()
}

// ---- engine events ---------------------------------------------------------

// HandleReady records the decoded duration and enables interactions.
func (c *Controller) HandleReady(duration float64) {
	c.ready = true
	c.err = ""
	c.SetDuration(duration)
	c.engine.ZoomTo(c.view.Zoom)
	c.logger().Debug("timeline ready", "duration", duration, "zoom", c.view.Zoom)
}

// HandleScroll applies a scroll performed by the engine, e.g. autoscroll.
func (c *Controller) HandleScroll(offset float64) {
	c.view.ScrollLeft = offset
	c.view.ClampScroll(c.duration)
	c.refresh()
}

// HandleZoom applies a zoom level reported by the engine.
func (c *Controller) HandleZoom(level float64) {
	c.view.Zoom = c.cfg.Zoom.Clamp(level)
	c.view.ClampScroll(c.duration)
	c.refresh()
}

// HandleTimeUpdate records the playback position.
func (c *Controller) HandleTimeUpdate(t float64) {
	if c.duration > 0 {
		t = clamp(t, 0, c.duration)
	}
	c.currentTime = t
}

// HandlePlay records that playback started.
func (c *Controller) HandlePlay() { c.playing = true }

// HandlePause records that playback paused.
func (c *Controller) HandlePause() { c.playing = false }

// HandleFinish records that playback reached the end.
func (c *Controller) HandleFinish() {
	c.playing = false
	c.currentTime = c.duration
}

// HandleError puts the timeline into the display-only failure state.
func (c *Controller) HandleError(msg string) {
	if msg == "" {
		msg = "rendering engine failed"
	}
	c.cancelSession()
	c.err = msg
	c.playing = false
	c.logger().Warn("rendering engine error", "error", msg)
}

// ---- pointer input ---------------------------------------------------------

// PointerDown starts a gesture according to mode and target.
func (c *Controller) PointerDown(ev PointerEvent) {
	if !c.Interactive() {
		return
	}
	c.cancelSession()

	if c.view.Mode == ModePan {
		c.begin(&InteractionSession{Kind: SessionPan, StartX: ev.X, InitialScrollLeft: c.view.ScrollLeft})
		return
	}

	contentX := ev.X + c.view.ScrollLeft
	switch k := ev.Target.Kind; {
	case k.IsPreview():
		g := PreviewMove
		if k == TargetPreviewStart {
			g = PreviewResizeStart
		} else if k == TargetPreviewEnd {
			g = PreviewResizeEnd
		}
		initial := c.Preview.Begin()
		c.begin(&InteractionSession{Kind: SessionPreview, StartX: ev.X, PreviewGesture: g, InitialWindow: initial})
		return

	case k.IsRegion():
		r, ok := c.Lane.Get(ev.Target.RegionID)
		if !ok {
			break
		}
		g := RegionMove
		switch k {
		case TargetRegionStart:
			g = RegionResizeStart
		case TargetRegionEnd:
			g = RegionResizeEnd
		default:
			c.seekTo(contentX)
			c.Select(r.ID)
		}
		c.begin(&InteractionSession{Kind: SessionRegion, StartX: ev.X, RegionID: r.ID, RegionGesture: g, InitialRegion: r})
		return
	}

	c.seekTo(contentX)
	c.begin(&InteractionSession{Kind: SessionSeek, StartX: ev.X})
}

// PointerMove advances the active gesture.
func (c *Controller) PointerMove(ev PointerEvent) {
	s := c.session
	if s == nil || !c.Interactive() {
		return
	}
	dx := ev.X - s.StartX
	switch s.Kind {
	case SessionPan:
		c.view.ScrollLeft = s.InitialScrollLeft - dx
		c.view.ClampScroll(c.duration)
		c.refresh()
	case SessionSeek:
		c.seekTo(ev.X + c.view.ScrollLeft)
	case SessionPreview:
		if delta, ok := c.Mapper().DeltaToSeconds(dx); ok {
			c.Preview.Drag(s.PreviewGesture, s.InitialWindow, delta)
		}
	case SessionRegion:
		if !s.Moved && math.Abs(dx) < c.cfg.DragThresholdPx {
			return
		}
		s.Moved = true
		if delta, ok := c.Mapper().DeltaToSeconds(dx); ok {
			c.Lane.DragTo(s.RegionID, s.RegionGesture, s.InitialRegion, delta)
		}
	}
}

// PointerUp finishes the active gesture and commits its result.
func (c *Controller) PointerUp(ev PointerEvent) {
	s := c.session
	if s == nil {
		return
	}
	c.PointerMove(ev)
	c.session = nil
	defer s.end()

	switch s.Kind {
	case SessionPreview:
		if w, ok := c.Preview.End(); ok {
			c.logger().Debug("preview window changed", "start", w.Start, "end", w.End)
			c.notify.PreviewRangeChanged(w.Start, w.End)
		}
	case SessionRegion:
		if s.Moved {
			c.Lane.EndDrag(s.RegionID)
		}
	}
}

// PointerCancel abandons the active gesture without committing anything.
func (c *Controller) PointerCancel() {
	c.cancelSession()
}

// Wheel scrolls, or zooms when the zoom modifier is held. It reports whether
// the event was consumed.
func (c *Controller) Wheel(ev WheelEvent) bool {
	if !c.Interactive() {
		return false
	}
	if !ev.Modifier {
		if ev.DeltaX == 0 {
			return false
		}
		c.ScrollBy(ev.DeltaX)
		return true
	}
	next := WheelZoom(c.view.Zoom, ev.DeltaY, c.cfg.WheelStep, c.cfg.Zoom)
	c.ZoomAround(next, ev.X)
	return true
}

// SetMode switches between seek and pan, cancelling any gesture in flight.
func (c *Controller) SetMode(m Mode) {
	if m == c.view.Mode {
		return
	}
	c.cancelSession()
	c.view.Mode = m
}

// ToggleMode flips between seek and pan.
func (c *Controller) ToggleMode() Mode {
	if c.view.Mode == ModeSeek {
		c.SetMode(ModePan)
	} else {
		c.SetMode(ModeSeek)
	}
	return c.view.Mode
}

// Close tears the controller down; further input is ignored.
func (c *Controller) Close() {
	c.cancelSession()
	c.closed = true
}

// ---- programmatic navigation -----------------------------------------------

// ScrollBy scrolls the viewport by dx pixels.
func (c *Controller) ScrollBy(dx float64) {
	c.view.ScrollLeft += dx
	c.view.ClampScroll(c.duration)
	c.refresh()
}

// ZoomAround sets the zoom keeping the time under viewport x in place.
func (c *Controller) ZoomAround(zoom, x float64) {
	zoom = c.cfg.Zoom.Clamp(zoom)
	if zoom == c.view.Zoom || !c.Interactive() {
		return
	}
	t, _ := c.Mapper().OffsetToTime(c.view.ScrollLeft + x)
	c.view.Zoom = zoom
	if px, ok := c.Mapper().TimeToOffset(t); ok {
		c.view.ScrollLeft = px - x
	}
	c.view.ClampScroll(c.duration)
	c.engine.ZoomTo(zoom)
	c.refresh()
}

// ZoomBy changes the zoom by step px/s around the viewport centre.
func (c *Controller) ZoomBy(step float64) {
	c.ZoomAround(c.view.Zoom+step, c.view.ClientWidth/2)
}

// SeekTime seeks playback to t seconds.
func (c *Controller) SeekTime(t float64) {
	if !c.Interactive() {
		return
	}
	t = clamp(t, 0, c.duration)
	c.currentTime = t
	c.engine.SeekTo(t / c.duration)
}

// PlayPause toggles playback on the engine.
func (c *Controller) PlayPause() {
	if !c.Interactive() {
		return
	}
	c.engine.PlayPause()
}

// Select marks a region as selected and notifies the host.
func (c *Controller) Select(id string) bool {
	seg, ok := c.Regions.Lookup(id)
	if !ok {
		return false
	}
	c.selected = id
	c.notify.SegmentSelected(seg.Label, SegmentTimes{T0: seg.T0, T1: seg.T1, Score: seg.Score})
	return true
}

// NudgePreview moves the committed preview window by delta seconds as one
// complete gesture.
func (c *Controller) NudgePreview(delta float64) {
	if !c.Interactive() || c.session != nil {
		return
	}
	initial := c.Preview.Begin()
	c.Preview.Drag(PreviewMove, initial, delta)
	if w, ok := c.Preview.End(); ok {
		c.notify.PreviewRangeChanged(w.Start, w.End)
	}
}

// EnsureVisible scrolls so that t is on screen, as engine autoscroll does.
func (c *Controller) EnsureVisible(t float64) bool {
	m := c.Mapper()
	px, ok := m.TimeToOffset(t)
	if !ok || c.view.ClientWidth <= 0 {
		return false
	}
	if px >= c.view.ScrollLeft && px <= c.view.ScrollLeft+c.view.ClientWidth {
		return false
	}
	c.HandleScroll(px - c.view.ClientWidth/2)
	return true
}

// State returns a render snapshot.
func (c *Controller) State() State {
	st := State{
		Ready:           c.ready,
		Error:           c.err,
		Duration:        c.duration,
		Mode:            c.view.Mode.String(),
		Zoom:            c.view.Zoom,
		ScrollLeft:      c.view.ScrollLeft,
		ClientWidth:     c.view.ClientWidth,
		ContentWidth:    c.view.ContentWidth(c.duration),
		CurrentTime:     c.currentTime,
		Playing:         c.playing,
		Selected:        c.selected,
		Preview:         c.Preview.Window(),
		PreviewDragging: c.Preview.Dragging(),
		Segments:        FiniteScores(c.Regions.Effective()),
		Offsets:         c.Sync.Offsets(),
		Thumb:           c.Sync.Thumb(),
	}
	if c.session != nil {
		st.Gesture = c.session.Kind.String()
	}
	return st
}

// ---- internals -------------------------------------------------------------

func (c *Controller) begin(s *InteractionSession) {
	if c.Capture != nil {
		s.release = c.Capture()
	}
	c.session = s
}

func (c *Controller) cancelSession() {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	switch s.Kind {
	case SessionPreview:
		c.Preview.Cancel()
	case SessionRegion:
		if s.Moved {
			c.Lane.Restore(s.InitialRegion)
		}
	}
	s.end()
}

func (c *Controller) seekTo(contentX float64) {
	t, ok := c.Mapper().OffsetToTime(contentX)
	if !ok {
		return
	}
	c.currentTime = t
	c.engine.SeekTo(t / c.duration)
}

func (c *Controller) refresh() {
	intrinsic := 0.0
	if c.duration > 0 {
		intrinsic = c.duration * c.view.Zoom
	}
	c.Sync.Refresh(intrinsic, c.view.ClientWidth, c.view.ScrollLeft)
}
