package editor

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/wavedit/internal/config"
	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
	"github.com/Dicklesworthstone/wavedit/internal/tui/theme"
)

// At the default zoom of 90px/s with 8px cells the 10s job is 900px wide and
// an 80 column terminal shows 640px of it, so column c sits at c*8px.
const editorJob = `{
  "id": "job-1",
  "duration_seconds": 10,
  "candidates": [
    {"label": "dog", "score": 0.8, "segments": [{"t0": 0.5, "t1": 1.5, "score": 0.8}]},
    {"label": "bark", "score": 0.6, "segments": [{"t0": 3, "t1": 5, "score": 0.6}]}
  ],
  "last_mix": {"kind": "preview", "preview_start": 2, "preview_seconds": 2},
  "peaks": [0.1, 0.4, 0.9, 0.3, 0.2, 0.6, 0.8, 0.1, 0.0, 0.5],
  "processed_peaks": [0.05, 0.2, 0.45, 0.15, 0.1, 0.3, 0.4, 0.05, 0.0, 0.25]
}`

const (
	dogID  = "dog@0.500-1.500"
	barkID = "bark@3.000-5.000"

	regionRow  = 9
	previewRow = 12
	waveRow    = 5
)

func parseJob(t *testing.T, data string) *source.Job {
	t.Helper()
	job, err := source.Parse([]byte(data), source.FormatJSON)
	if err != nil {
		t.Fatalf("parse job: %v", err)
	}
	return job
}

func newTestModel(t *testing.T) (*Model, *events.Bus) {
	t.Helper()
	th := theme.Mocha()
	gl := theme.ASCII()
	bus := events.NewBus(0)
	m, err := New(Options{
		Config: config.Default(),
		Job:    parseJob(t, editorJob),
		Bus:    bus,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Theme:  &th,
		Glyphs: &gl,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, bus
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(col, row int) tea.MouseMsg {
	return tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
}

func motion(col, row int) tea.MouseMsg {
	return tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}
}

func release(col, row int) tea.MouseMsg {
	return tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone}
}

func countEvents(bus *events.Bus, typ string) int {
	n := 0
	for _, ev := range bus.History(0) {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestNew_RequiresJob(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without a job")
	}
	if _, err := New(Options{Job: &source.Job{ID: "empty"}}); !errors.Is(err, source.ErrNoDuration) {
		t.Errorf("err = %v, want ErrNoDuration", err)
	}
}

func TestModel_InitialState(t *testing.T) {
	m, _ := newTestModel(t)
	st := m.Controller().State()
	t.Logf("EDITOR_TEST: zoom=%v client=%v content=%v", st.Zoom, st.ClientWidth, st.ContentWidth)

	if !st.Ready || st.Duration != 10 {
		t.Fatalf("state = %+v", st)
	}
	if st.ClientWidth != 640 || st.ContentWidth != 900 {
		t.Errorf("client/content = %v/%v, want 640/900", st.ClientWidth, st.ContentWidth)
	}
	if st.Preview.Start != 2 || st.Preview.End != 4 {
		t.Errorf("preview = %+v, want 2-4", st.Preview)
	}
	if len(st.Segments) != 2 {
		t.Errorf("segments = %d, want 2", len(st.Segments))
	}
}

func TestModel_ProcessedTrackSwitchIsDeferred(t *testing.T) {
	m, _ := newTestModel(t)
	if m.Track() != timeline.TrackOriginal {
		t.Fatalf("track = %v before the deferred switch", m.Track())
	}
	if len(m.deferred) != 1 {
		t.Fatalf("deferred = %d, want 1", len(m.deferred))
	}
	cmd := m.flushDeferred()
	if cmd == nil {
		t.Fatal("flushDeferred returned nil")
	}
	m.Update(cmd())
	if m.Track() != timeline.TrackProcessed {
		t.Errorf("track = %v, want processed", m.Track())
	}
	if got := m.peaks(); got[2] != 0.45 {
		t.Errorf("peaks not switched: %v", got)
	}

	m.Update(runes("t"))
	if m.Track() != timeline.TrackOriginal {
		t.Errorf("t should toggle back to original, got %v", m.Track())
	}
}

func TestModel_PlaybackTicks(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if !m.Controller().Playing() || !m.ticking {
		t.Fatalf("playing=%v ticking=%v after space", m.Controller().Playing(), m.ticking)
	}

	m.Update(TickMsg(m.lastTick.Add(500 * time.Millisecond)))
	if !near(m.Position(), 0.5) || !near(m.Controller().CurrentTime(), 0.5) {
		t.Errorf("position = %v, current = %v, want 0.5", m.Position(), m.Controller().CurrentTime())
	}

	m.Update(TickMsg(m.lastTick.Add(20 * time.Second)))
	if m.Controller().Playing() || m.ticking {
		t.Error("playback should stop at the end")
	}
	if m.Controller().CurrentTime() != 10 {
		t.Errorf("current = %v, want 10", m.Controller().CurrentTime())
	}

	m.Update(TickMsg(time.Now()))
	if m.ticking {
		t.Error("stray tick restarted the loop")
	}
}

func TestModel_CanvasClickSeeks(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(press(40, waveRow))
	m.Update(release(40, waveRow))

	want := 320.0 / 900 * 10
	t.Logf("EDITOR_TEST: seek position=%v want=%v", m.Position(), want)
	if !near(m.Position(), want) || !near(m.Controller().CurrentTime(), want) {
		t.Errorf("position = %v, want %v", m.Position(), want)
	}
	if m.Controller().Session() != nil {
		t.Error("session left open after release")
	}
}

func TestModel_RegionDragSnapsAndSuppressesEcho(t *testing.T) {
	m, bus := newTestModel(t)
	m.Update(press(45, regionRow))
	if m.Controller().Selected() != barkID {
		t.Fatalf("selected = %q, want %q", m.Controller().Selected(), barkID)
	}
	m.Update(motion(26, regionRow))
	if r, _ := m.Controller().Lane.Get(barkID); !near(r.Start, 3-152.0/90) {
		t.Errorf("raw drag start = %v", r.Start)
	}
	m.Update(release(26, regionRow))

	o, ok := m.Controller().Regions.Overrides()[barkID]
	if !ok {
		t.Fatal("no override after drag")
	}
	t.Logf("EDITOR_TEST: override=%+v stats=%+v", o, m.Controller().Regions.Stats())
	if o.T0 != 1.5 || !near(o.T1, 5-152.0/90) {
		t.Errorf("override = %+v, want start snapped to 1.5", o)
	}
	stats := m.Controller().Regions.Stats()
	if stats.Commits != 1 || stats.Snaps != 1 || stats.EchoesSuppressed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if n := countEvents(bus, events.SegmentChanged); n != 1 {
		t.Errorf("segment.changed = %d, want 1", n)
	}
	if r, _ := m.Controller().Lane.Get(barkID); r.Start != 1.5 {
		t.Errorf("lane start = %v, want the corrected 1.5", r.Start)
	}

	m.Update(runes("r"))
	if _, ok := m.Controller().Regions.Overrides()[barkID]; ok {
		t.Error("r should reset the selected region")
	}
	if got := m.Controller().Regions.Stats().EchoesSuppressed; got != 2 {
		t.Errorf("echoes suppressed after reset = %d, want 2", got)
	}
}

func TestModel_PreviewDrag(t *testing.T) {
	m, bus := newTestModel(t)
	m.Update(press(33, previewRow))
	if !m.Controller().Preview.Dragging() {
		t.Fatal("preview press did not start a drag")
	}
	m.Update(motion(43, previewRow))
	m.Update(release(43, previewRow))

	w := m.Controller().Preview.Window()
	if !near(w.Start, 2+80.0/90) || !near(w.End, 4+80.0/90) {
		t.Errorf("window = %+v", w)
	}
	ev, ok := bus.Last()
	if !ok || ev.Type != events.PreviewChanged || !near(*ev.Start, w.Start) {
		t.Errorf("last event = %+v", ev)
	}

	p := m.Controller().Preview
	if p.HasDraft() {
		t.Error("released preview drag left a draft behind")
	}
	if got := p.Committed(); !near(got.Start, w.Start) || !near(got.End, w.End) {
		t.Errorf("committed = %+v, want released window %+v", got, w)
	}
	t.Logf("EDITOR_TEST: preview committed at %+v", p.Committed())
}

func TestModel_PreviewNudgeCommits(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(runes("]"))

	p := m.Controller().Preview
	if p.HasDraft() {
		t.Error("nudge left a draft behind")
	}
	if got := p.Committed(); !near(got.Start, 2.5) || !near(got.End, 4.5) {
		t.Errorf("committed = %+v, want (2.5, 4.5)", got)
	}
}

func TestModel_ReloadShowsNewPreviewAfterDrag(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(press(33, previewRow))
	m.Update(motion(43, previewRow))
	m.Update(release(43, previewRow))

	job := parseJob(t, editorJob)
	start, length := 6.0, 3.0
	job.LastMix.PreviewStart = &start
	job.LastMix.PreviewSeconds = &length
	m.Update(JobChangedMsg{Job: job})

	if w := m.Controller().Preview.Window(); !near(w.Start, 6) || !near(w.End, 9) {
		t.Errorf("window = %+v, want the reloaded preview (6, 9)", w)
	}
}

func TestModel_Wheel(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.MouseMsg{X: 40, Y: waveRow, Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress, Ctrl: true})
	if z := m.Controller().Viewport().Zoom; z != 93 {
		t.Errorf("ctrl+wheel up zoom = %v, want 93", z)
	}
	m.Update(tea.MouseMsg{X: 40, Y: waveRow, Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress, Ctrl: true})
	if z := m.Controller().Viewport().Zoom; z != 90 {
		t.Errorf("ctrl+wheel down zoom = %v, want 90", z)
	}

	before := m.Controller().Viewport().ScrollLeft
	m.Update(tea.MouseMsg{X: 40, Y: waveRow, Button: tea.MouseButtonWheelRight, Action: tea.MouseActionPress})
	if got := m.Controller().Viewport().ScrollLeft; !near(got, before+32) {
		t.Errorf("scroll = %v, want %v", got, before+32)
	}
}

func TestModel_MouseDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.TUI.Mouse = false
	m, err := New(Options{Config: cfg, Job: parseJob(t, editorJob), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatal(err)
	}
	m.Update(press(40, waveRow))
	if m.Position() != 0 {
		t.Errorf("mouse input handled while disabled: position %v", m.Position())
	}
}

func TestModel_PanMode(t *testing.T) {
	m, bus := newTestModel(t)
	m.Update(runes("p"))
	if m.Controller().Mode() != timeline.ModePan {
		t.Fatalf("mode = %v, want pan", m.Controller().Mode())
	}
	if ev, ok := bus.Last(); !ok || ev.Type != events.ModeChanged || ev.Message != "pan" {
		t.Errorf("last event = %+v", ev)
	}

	m.Update(press(40, waveRow))
	m.Update(motion(30, waveRow))
	m.Update(release(30, waveRow))
	if got := m.Controller().Viewport().ScrollLeft; got != 80 {
		t.Errorf("scroll after pan = %v, want 80", got)
	}
	if m.Position() != 0 {
		t.Error("pan should not seek")
	}
}

func TestModel_Keys(t *testing.T) {
	m, _ := newTestModel(t)
	c := m.Controller()

	tests := []struct {
		name  string
		msg   tea.KeyMsg
		check func() bool
	}{
		{"zoom in", runes("+"), func() bool { return c.Viewport().Zoom == 93 }},
		{"zoom out", runes("-"), func() bool { return c.Viewport().Zoom == 90 }},
		{"scroll right", runes("l"), func() bool { return near(c.Viewport().ScrollLeft, 160) }},
		{"scroll left", tea.KeyMsg{Type: tea.KeyLeft}, func() bool { return near(c.Viewport().ScrollLeft, 0) }},
		{"next region", tea.KeyMsg{Type: tea.KeyTab}, func() bool { return c.Selected() == dogID }},
		{"next region again", tea.KeyMsg{Type: tea.KeyTab}, func() bool { return c.Selected() == barkID }},
		{"wraps", tea.KeyMsg{Type: tea.KeyTab}, func() bool { return c.Selected() == dogID }},
		{"previous wraps", tea.KeyMsg{Type: tea.KeyShiftTab}, func() bool { return c.Selected() == barkID }},
		{"nudge forward", runes("]"), func() bool { w := c.Preview.Window(); return w.Start == 2.5 && w.End == 4.5 }},
		{"nudge back", runes("["), func() bool { w := c.Preview.Window(); return w.Start == 2 && w.End == 4 }},
		{"help", runes("?"), func() bool { return m.help.ShowAll }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.Update(tt.msg)
			if !tt.check() {
				t.Errorf("%s: state = %+v", tt.name, c.State())
			}
		})
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if !m.quitting || m.View() != "" {
		t.Error("model should be quitting with an empty view")
	}
	if m.Controller().Interactive() {
		t.Error("controller still interactive after quit")
	}
}

func TestModel_JobReload(t *testing.T) {
	m, bus := newTestModel(t)
	m.Update(press(45, regionRow))
	m.Update(motion(26, regionRow))
	m.Update(release(26, regionRow))

	m.Update(JobChangedMsg{Job: parseJob(t, editorJob)})
	if _, ok := m.Controller().Regions.Overrides()[barkID]; !ok {
		t.Error("reload dropped an override whose region still exists")
	}
	if n := countEvents(bus, events.JobReloaded); n != 1 {
		t.Errorf("job.reloaded = %d, want 1", n)
	}

	m.Update(tea.WindowSizeMsg{Width: 200, Height: 24})
	m.Update(JobChangedMsg{Err: errors.New("boom")})
	if m.loadError != "boom" {
		t.Errorf("loadError = %q", m.loadError)
	}
	if view := m.View(); !strings.Contains(view, "reload failed: boom") {
		t.Errorf("status does not show the reload error:\n%s", view)
	}

	m.Update(JobChangedMsg{Job: parseJob(t, editorJob)})
	if m.loadError != "" {
		t.Errorf("successful reload kept error %q", m.loadError)
	}
}

func TestModel_ReloadWithoutDurationFails(t *testing.T) {
	m, bus := newTestModel(t)
	m.Update(JobChangedMsg{Job: &source.Job{ID: "broken"}})

	if m.Controller().Err() == "" || m.Controller().Interactive() {
		t.Fatal("controller should be in the failure state")
	}
	if n := countEvents(bus, events.EngineFailed); n != 1 {
		t.Errorf("engine.failed = %d, want 1", n)
	}
	if view := m.View(); !strings.Contains(view, "engine error") {
		t.Errorf("status does not show the engine error:\n%s", view)
	}

	m.Update(press(40, waveRow))
	if m.Position() != 0 {
		t.Error("pointer input accepted in the failure state")
	}
}

func TestModel_View(t *testing.T) {
	m, _ := newTestModel(t)
	view := m.View()
	lines := strings.Split(view, "\n")
	t.Logf("EDITOR_TEST: view\n%s", view)

	if len(lines) != 15 {
		t.Errorf("view has %d lines, want 15", len(lines))
	}
	for _, want := range []string{"job-1", "0:00.00 / 0:10.00", "90px/s", "seek", "bark", "dog", "0:01.0"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(tea.WindowSizeMsg{Width: 200, Height: 24})
	if view := m.View(); !strings.Contains(view, "view 0:00.00–0:10.00") {
		t.Errorf("wide status line does not show the visible range:\n%s", view)
	}

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 12})
	if got := len(strings.Split(m.View(), "\n")); got != 12 {
		t.Errorf("short terminal view has %d lines, want 12", got)
	}
}

func TestComputeLayout(t *testing.T) {
	l := computeLayout(24, 6, 3)
	if l.wave != 3 || l.waveRows != 6 || l.regions != 9 || l.preview != 12 || l.thumb != 13 || l.help != 14 {
		t.Errorf("layout = %+v", l)
	}
	if l.regionLane(9) != 0 || l.regionLane(11) != 2 || l.regionLane(12) != -1 || l.regionLane(8) != -1 {
		t.Error("regionLane mapping wrong")
	}

	small := computeLayout(10, 6, 3)
	if small.waveRows != 1 || small.regions != 4 {
		t.Errorf("small layout = %+v", small)
	}
	if tiny := computeLayout(2, 6, 0); tiny.waveRows != 1 || tiny.regionRows != 1 {
		t.Errorf("tiny layout = %+v", tiny)
	}
}

func TestAssignLanes(t *testing.T) {
	seg := func(t0, t1 float64) timeline.EffectiveSegment {
		return timeline.EffectiveSegment{Segment: timeline.Segment{T0: t0, T1: t1}}
	}
	tests := []struct {
		name string
		segs []timeline.EffectiveSegment
		max  int
		want []int
	}{
		{"disjoint share a lane", []timeline.EffectiveSegment{seg(0, 1), seg(1, 2), seg(3, 4)}, 3, []int{0, 0, 0}},
		{"overlaps split", []timeline.EffectiveSegment{seg(0, 2), seg(1, 3), seg(2.5, 4)}, 3, []int{0, 1, 0}},
		{"overflow to earliest end", []timeline.EffectiveSegment{seg(0, 2), seg(1, 3), seg(1.5, 4), seg(2.5, 5)}, 2, []int{0, 1, 0, 1}},
		{"input order kept", []timeline.EffectiveSegment{seg(5, 6), seg(0, 10)}, 2, []int{1, 0}},
		{"zero lanes", []timeline.EffectiveSegment{seg(0, 2), seg(1, 3)}, 0, []int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assignLanes(tt.segs, tt.max)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("lanes = %v, want %v", got, tt.want)
				}
			}
		})
	}
	if n := laneCount([]int{0, 1, 0, 1}); n != 2 {
		t.Errorf("laneCount = %d", n)
	}
}

func TestPeakIn(t *testing.T) {
	peaks := []float64{0, 0.5, 1, -0.25}
	tests := []struct {
		t0, t1 float64
		want   float64
	}{
		{0, 1, 0},
		{1, 3, 1},
		{3.5, 4, 0.25},
		{4, 5, 0.25},
		{0.2, 0.3, 0},
	}
	for _, tt := range tests {
		if got := peakIn(peaks, tt.t0, tt.t1, 4); got != tt.want {
			t.Errorf("peakIn(%v, %v) = %v, want %v", tt.t0, tt.t1, got, tt.want)
		}
	}
	if got := peakIn(nil, 0, 1, 4); got != 0 {
		t.Errorf("no peaks = %v", got)
	}
}

func TestTransport(t *testing.T) {
	tr := &transport{}
	tr.SeekTo(0.5)
	if tr.position != 0 {
		t.Error("seek before a duration is known should be ignored")
	}

	tr.duration = 10
	tr.SeekTo(0.5)
	if tr.position != 5 {
		t.Errorf("position = %v, want 5", tr.position)
	}
	tr.SeekTo(2)
	if tr.position != 10 {
		t.Errorf("position = %v, want clamped 10", tr.position)
	}

	tr.PlayPause()
	if !tr.playing || tr.position != 0 {
		t.Errorf("play at the end should restart: %+v", tr)
	}
	if tr.advance(3) || tr.position != 3 {
		t.Errorf("advance(3) = %+v", tr)
	}
	if !tr.advance(8) || tr.playing || tr.position != 10 {
		t.Errorf("advance past end = %+v", tr)
	}
	if tr.advance(1) {
		t.Error("advance while paused reported finish")
	}
}
