// Package editor is a Bubble Tea host for the timeline engine. It draws the
// waveform, ruler and region lanes into terminal cells, runs a silent
// transport clock and turns mouse and keyboard input into engine gestures.
package editor

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/wavedit/internal/config"
	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
	"github.com/Dicklesworthstone/wavedit/internal/tui/theme"
	"github.com/Dicklesworthstone/wavedit/internal/watcher"
)

// previewNudge is how far [ and ] move the preview window, in seconds.
const previewNudge = 0.5

// TickMsg advances the transport clock.
type TickMsg time.Time

// JobChangedMsg carries a reload from the job watcher.
type JobChangedMsg watcher.Change

type deferredMsg []func()

// Options configures a Model.
type Options struct {
	Config  *config.Config
	Job     *source.Job
	Watcher *watcher.JobWatcher
	Bus     *events.Bus
	Logger  *slog.Logger
	Theme   *theme.Theme
	Glyphs  *theme.Glyphs
	KeyMap  *KeyMap
}

// Model is the editor model.
type Model struct {
	cfg     *config.Config
	ctrl    *timeline.Controller
	bus     *events.Bus
	notify  events.Notifier
	logger  *slog.Logger
	watcher *watcher.JobWatcher

	job       *source.Job
	tr        *transport
	tracks    *timeline.TrackChooser
	deferred  []func()
	unsub     func()
	ticking   bool
	lastTick  time.Time
	loadError string

	ruler   *overlayBand
	lanes   *overlayBand
	preview *overlayBand

	theme  theme.Theme
	glyphs theme.Glyphs
	keys   KeyMap
	help   help.Model

	width    int
	height   int
	cellPx   float64
	quitting bool
}

// New creates an editor for job.
func New(opts Options) (*Model, error) {
	if opts.Job == nil {
		return nil, errors.New("editor: no job")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(0)
	}
	th := theme.Current(cfg.TUI.Theme)
	if opts.Theme != nil {
		th = *opts.Theme
	}
	gl := theme.CurrentGlyphs()
	if opts.Glyphs != nil {
		gl = *opts.Glyphs
	}
	keys := DefaultKeyMap()
	if opts.KeyMap != nil {
		keys = *opts.KeyMap
	}
	cellPx := cfg.TUI.CellPx
	if cellPx <= 0 {
		cellPx = config.Default().TUI.CellPx
	}

	m := &Model{
		cfg:     cfg,
		bus:     bus,
		notify:  events.NewNotifier(bus),
		logger:  logger,
		watcher: opts.Watcher,
		tr:      &transport{},
		theme:   th,
		glyphs:  gl,
		keys:    keys,
		help:    help.New(),
		width:   80,
		height:  24,
		cellPx:  cellPx,
	}
	m.ctrl = timeline.NewController(cfg.Controller(), m.tr, m.notify)
	m.ctrl.Logger = logger
	m.ctrl.Regions.Logger = logger
	m.tracks = &timeline.TrackChooser{
		Defer: func(fn func()) { m.deferred = append(m.deferred, fn) },
		OnChange: func(k timeline.TrackKind) {
			m.logger.Debug("active track changed", "track", k.String())
		},
	}
	m.ruler, m.lanes, m.preview = &overlayBand{}, &overlayBand{}, &overlayBand{}
	m.ctrl.Sync.Attach(m.ruler)
	m.ctrl.Sync.Attach(m.lanes)
	m.ctrl.Sync.Attach(m.preview)
	m.ctrl.SetClientWidth(float64(m.width) * m.cellPx)
	m.help.Width = m.width

	// The editor is its own host workflow: a released preview range becomes
	// the committed value, which reconciles the draft.
	m.unsub = bus.Subscribe(events.PreviewChanged, func(ev events.Event) {
		if ev.Start == nil || ev.End == nil {
			return
		}
		m.ctrl.SetPreview(*ev.Start, *ev.End-*ev.Start)
	})

	if err := m.load(opts.Job); err != nil {
		return nil, err
	}
	return m, nil
}

// Controller exposes the engine for callers that drive the model directly.
func (m *Model) Controller() *timeline.Controller { return m.ctrl }

// Track returns the active waveform track.
func (m *Model) Track() timeline.TrackKind { return m.tracks.Active() }

// Position returns the transport clock in seconds.
func (m *Model) Position() float64 { return m.tr.position }

func (m *Model) load(job *source.Job) error {
	d, err := job.Duration()
	if err != nil {
		return err
	}
	m.tr.duration = d
	if m.tr.position > d {
		m.tr.position = d
	}
	if err := source.Apply(m.ctrl, job, m.cfg.Preview.DefaultStart, m.cfg.Preview.DefaultLength); err != nil {
		return err
	}
	m.job = job
	m.loadError = ""
	if job.HasProcessed() {
		m.tracks.OutputAvailable()
	} else {
		m.tracks.OutputRemoved()
	}
	m.logger.Info("job loaded", "job", job.ID, "duration", d, "segments", len(m.ctrl.Regions.Effective()))
	return nil
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.flushDeferred())
}

func (m *Model) waitForChange() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	ch := m.watcher.Changes()
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return JobChangedMsg(c)
	}
}

func (m *Model) flushDeferred() tea.Cmd {
	if len(m.deferred) == 0 {
		return nil
	}
	fns := m.deferred
	m.deferred = nil
	return func() tea.Msg { return deferredMsg(fns) }
}

func (m *Model) tick() tea.Cmd {
	interval := time.Duration(m.cfg.TUI.TickMs) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ctrl.SetClientWidth(float64(msg.Width) * m.cellPx)

	case TickMsg:
		cmds = append(cmds, m.handleTick(time.Time(msg)))

	case deferredMsg:
		for _, fn := range msg {
			fn()
		}

	case JobChangedMsg:
		m.handleJobChange(watcher.Change(msg))
		cmds = append(cmds, m.waitForChange())

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		if m.cfg.TUI.Mouse {
			m.handleMouse(msg)
		}
	}

	cmds = append(cmds, m.syncTransport(), m.flushDeferred())
	return m, tea.Batch(cmds...)
}

// syncTransport reports play state changes from the clock to the engine and
// starts the tick loop when playback begins.
func (m *Model) syncTransport() tea.Cmd {
	if m.tr.playing != m.ctrl.Playing() {
		if m.tr.playing {
			m.ctrl.HandlePlay()
		} else {
			m.ctrl.HandlePause()
		}
	}
	if m.tr.playing && !m.ticking {
		m.ticking = true
		m.lastTick = time.Now()
		return m.tick()
	}
	return nil
}

func (m *Model) handleTick(now time.Time) tea.Cmd {
	if !m.tr.playing {
		m.ticking = false
		return nil
	}
	dt := now.Sub(m.lastTick).Seconds()
	m.lastTick = now
	if m.tr.advance(dt) {
		m.ctrl.HandleFinish()
		m.ticking = false
		return nil
	}
	m.ctrl.HandleTimeUpdate(m.tr.position)
	if m.ctrl.Session() == nil {
		m.ctrl.EnsureVisible(m.tr.position)
	}
	return m.tick()
}

func (m *Model) handleJobChange(c watcher.Change) {
	if c.Err != nil {
		m.loadError = c.Err.Error()
		m.logger.Warn("job reload failed", "error", c.Err)
		return
	}
	if err := m.load(c.Job); err != nil {
		m.loadError = err.Error()
		m.logger.Warn("job reload rejected", "job", c.Job.ID, "error", err)
		if errors.Is(err, source.ErrNoDuration) {
			m.tr.playing = false
			m.ctrl.HandleError(err.Error())
			m.notify.EngineFailed(err.Error())
		}
		return
	}
	m.bus.Publish(events.NewMessageEvent(events.JobReloaded, c.Job.ID))
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	c := m.ctrl
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		c.Close()
		if m.unsub != nil {
			m.unsub()
		}
		m.tr.playing = false
		return tea.Quit

	case key.Matches(msg, m.keys.PlayPause):
		c.PlayPause()

	case key.Matches(msg, m.keys.Mode):
		m.notify.ModeChanged(c.ToggleMode())

	case key.Matches(msg, m.keys.ZoomIn):
		c.ZoomBy(m.cfg.Timeline.WheelStep)

	case key.Matches(msg, m.keys.ZoomOut):
		c.ZoomBy(-m.cfg.Timeline.WheelStep)

	case key.Matches(msg, m.keys.Left):
		c.ScrollBy(-c.Viewport().ClientWidth / 4)

	case key.Matches(msg, m.keys.Right):
		c.ScrollBy(c.Viewport().ClientWidth / 4)

	case key.Matches(msg, m.keys.Reset):
		if id := c.Selected(); id != "" {
			c.Regions.ResetOverride(id)
		}

	case key.Matches(msg, m.keys.ResetAll):
		c.Regions.ResetAll()

	case key.Matches(msg, m.keys.NudgeBack):
		c.NudgePreview(-previewNudge)

	case key.Matches(msg, m.keys.NudgeForward):
		c.NudgePreview(previewNudge)

	case key.Matches(msg, m.keys.Next):
		m.cycleSelection(1)

	case key.Matches(msg, m.keys.Prev):
		m.cycleSelection(-1)

	case key.Matches(msg, m.keys.Track):
		next := timeline.TrackProcessed
		if m.tracks.Active() == timeline.TrackProcessed {
			next = timeline.TrackOriginal
		}
		m.tracks.Select(next)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

// cycleSelection selects the next or previous region in time order.
func (m *Model) cycleSelection(dir int) {
	segs := m.ctrl.Regions.Effective()
	if len(segs) == 0 {
		return
	}
	sort.SliceStable(segs, func(a, b int) bool { return segs[a].T0 < segs[b].T0 })
	cur := -1
	for i, s := range segs {
		if s.RegionID == m.ctrl.Selected() {
			cur = i
			break
		}
	}
	next := 0
	switch {
	case cur >= 0:
		next = (cur + dir + len(segs)) % len(segs)
	case dir < 0:
		next = len(segs) - 1
	}
	if m.ctrl.Select(segs[next].RegionID) {
		m.ctrl.EnsureVisible(segs[next].T0)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	c := m.ctrl
	x := float64(msg.X) * m.cellPx

	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		dir := 1.0
		if msg.Button == tea.MouseButtonWheelUp {
			dir = -1
		}
		if msg.Shift {
			c.Wheel(timeline.WheelEvent{X: x, DeltaX: dir * 4 * m.cellPx})
			return
		}
		c.Wheel(timeline.WheelEvent{X: x, DeltaY: dir * timeline.WheelNotch, Modifier: msg.Ctrl || msg.Alt})
		return
	case tea.MouseButtonWheelLeft, tea.MouseButtonWheelRight:
		dir := 1.0
		if msg.Button == tea.MouseButtonWheelLeft {
			dir = -1
		}
		c.Wheel(timeline.WheelEvent{X: x, DeltaX: dir * 4 * m.cellPx})
		return
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		c.PointerDown(timeline.PointerEvent{X: x, Target: m.hitTest(msg.X, msg.Y)})
	case tea.MouseActionMotion:
		if c.Session() != nil {
			c.PointerMove(timeline.PointerEvent{X: x})
		}
	case tea.MouseActionRelease:
		if c.Session() != nil {
			c.PointerUp(timeline.PointerEvent{X: x})
		}
	}
}

// overlayBand is a row group drawn over the waveform. The engine keeps every
// band on the same content offsets.
type overlayBand struct {
	offsets timeline.Offsets
}

func (b *overlayBand) Align(o timeline.Offsets) { b.offsets = o }

// hitTest classifies a screen cell for pointer-down.
func (m *Model) hitTest(col, row int) timeline.Target {
	l := m.layout()
	mapper := m.ctrl.Mapper()
	contentX := m.ctrl.Viewport().ScrollLeft + (float64(col)+0.5)*m.cellPx

	if row == l.preview {
		if t, ok := timeline.HitPreview(m.ctrl.Preview.Window(), mapper, contentX, m.cellPx); ok {
			return t
		}
		return timeline.Target{Kind: timeline.TargetCanvas}
	}
	if lane := l.regionLane(row); lane >= 0 {
		segs := m.ctrl.Regions.Effective()
		lanes := assignLanes(segs, m.regionLanes())
		var inLane []timeline.EffectiveSegment
		for i, s := range segs {
			if lanes[i] == lane {
				inLane = append(inLane, s)
			}
		}
		if t, ok := timeline.HitRegion(inLane, mapper, contentX, m.cellPx/2); ok {
			return t
		}
	}
	return timeline.Target{Kind: timeline.TargetCanvas}
}

func (m *Model) regionLanes() int {
	if n := m.cfg.TUI.MaxRegionLanes; n > 0 {
		return n
	}
	return 1
}

func (m *Model) layout() layout {
	return computeLayout(m.height, m.cfg.TUI.WaveformRows, m.regionLanes())
}

// peaks returns the amplitude peaks of the active track.
func (m *Model) peaks() []float64 {
	if m.job == nil {
		return nil
	}
	if m.tracks.Active() == timeline.TrackProcessed && len(m.job.ProcessedPeaks) > 0 {
		return m.job.ProcessedPeaks
	}
	return m.job.Peaks
}
