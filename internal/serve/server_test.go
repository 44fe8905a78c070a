package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/metrics"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
	"github.com/Dicklesworthstone/wavedit/internal/watcher"
)

type stateResponse struct {
	Success  bool           `json:"success"`
	Timeline timeline.State `json:"timeline"`
}

func newTestServer(t *testing.T) (*Server, *Session, *events.Bus) {
	t.Helper()
	session, bus := newTestSession(t)
	srv := New(Config{
		Session: session,
		Bus:     bus,
		Metrics: metrics.New(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, session, bus
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			rd = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) timeline.State {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp stateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}
	return resp.Timeline
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Timeline(t *testing.T) {
	srv, _, _ := newTestServer(t)
	st := decodeState(t, do(t, srv.Handler(), http.MethodGet, "/api/timeline", nil))
	t.Logf("SERVE_TEST: timeline duration=%v zoom=%v segments=%d", st.Duration, st.Zoom, len(st.Segments))
	if st.Duration != 42 || len(st.Segments) != 3 {
		t.Errorf("state = %+v", st)
	}
	if st.Segments[0].RegionID == "" {
		t.Error("segments should carry region ids")
	}
}

func TestServer_NoSession(t *testing.T) {
	srv := New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/timeline", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Success || apiErr.ErrorCode != ErrCodeConflict {
		t.Errorf("error envelope = %+v", apiErr)
	}
}

func TestServer_UpdateEndSnapsAndSuppressesEcho(t *testing.T) {
	srv, session, bus := newTestServer(t)
	id := session.State().Segments[1].RegionID

	rec := do(t, srv.Handler(), http.MethodPost, "/api/regions/update-end",
		map[string]interface{}{"id": id, "start": 0.04, "end": 1.2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Segment   timeline.EffectiveSegment `json:"segment"`
		Corrected bool                      `json:"corrected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	t.Logf("SERVE_TEST: committed %+v corrected=%v", resp.Segment, resp.Corrected)
	if resp.Segment.T0 != 0 || resp.Segment.T1 != 1.2 || !resp.Corrected || !resp.Segment.Edited {
		t.Errorf("response = %+v", resp)
	}
	if n := countEvents(bus, events.SegmentChanged); n != 1 {
		t.Fatalf("segment.changed = %d, want 1", n)
	}

	// The browser widget echoes the corrected geometry back.
	rec = do(t, srv.Handler(), http.MethodPost, "/api/regions/update-end",
		map[string]interface{}{"id": id, "start": 0, "end": 1.2})
	if rec.Code != http.StatusOK {
		t.Fatalf("echo status = %d", rec.Code)
	}
	if n := countEvents(bus, events.SegmentChanged); n != 1 {
		t.Errorf("echo produced a notification: segment.changed = %d", n)
	}
	stats, _, _, _ := session.Gauges()
	if stats.EchoesSuppressed != 1 || stats.Commits != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestServer_UpdateEndUnknownRegion(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/regions/update-end",
		map[string]interface{}{"id": "nope@1-2", "start": 1, "end": 2})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_BadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"malformed json", http.MethodPut, "/api/preview", "{"},
		{"unknown field", http.MethodPut, "/api/preview", `{"begin": 1}`},
		{"bad phase", http.MethodPost, "/api/pointer", map[string]interface{}{"phase": "hover"}},
		{"bad target", http.MethodPost, "/api/pointer", map[string]interface{}{"phase": "down", "target": "lid"}},
		{"bad mode", http.MethodPut, "/api/mode", map[string]interface{}{"mode": "scrub"}},
		{"bad engine event", http.MethodPost, "/api/engine", map[string]interface{}{"type": "explode"}},
		{"negative width", http.MethodPut, "/api/viewport", map[string]interface{}{"client_width": -1}},
		{"bad zoom query", http.MethodGet, "/api/ruler?zoom=fast", nil},
		{"bad limit", http.MethodGet, "/api/events?limit=-2", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv.Handler(), tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_PointerClickSeeks(t *testing.T) {
	srv, _, bus := newTestServer(t)
	h := srv.Handler()
	decodeState(t, do(t, h, http.MethodPost, "/api/engine", map[string]interface{}{"type": "zoom", "value": 100}))

	do(t, h, http.MethodPost, "/api/pointer", map[string]interface{}{"phase": "down", "x": 2100})
	st := decodeState(t, do(t, h, http.MethodPost, "/api/pointer", map[string]interface{}{"phase": "up", "x": 2100}))

	var (
		ev events.Event
		ok bool
	)
	for _, e := range bus.History(0) {
		if e.Type == events.EngineSeek {
			ev, ok = e, true
		}
	}
	if !ok || ev.Value == nil || *ev.Value != 0.5 {
		t.Fatalf("seek event = %+v", ev)
	}
	if st.CurrentTime != 21 {
		t.Errorf("current time = %v, want 21", st.CurrentTime)
	}
}

func TestServer_PreviewEndpoints(t *testing.T) {
	srv, _, bus := newTestServer(t)
	h := srv.Handler()

	st := decodeState(t, do(t, h, http.MethodPut, "/api/preview", map[string]interface{}{"start": 30, "length": 5}))
	if st.Preview.Start != 30 || st.Preview.End != 35 {
		t.Errorf("preview = %+v", st.Preview)
	}
	st = decodeState(t, do(t, h, http.MethodPost, "/api/preview/nudge", map[string]interface{}{"delta": 20}))
	if st.Preview.End != 42 || st.Preview.Start != 37 {
		t.Errorf("nudged preview = %+v, want clamped to (37, 42)", st.Preview)
	}
	if countEvents(bus, events.PreviewChanged) == 0 {
		t.Error("nudge should notify the host")
	}
}

func TestServer_ModeAndEngineError(t *testing.T) {
	srv, _, bus := newTestServer(t)
	h := srv.Handler()

	st := decodeState(t, do(t, h, http.MethodPut, "/api/mode", map[string]interface{}{"mode": "pan"}))
	if st.Mode != "pan" {
		t.Errorf("mode = %q", st.Mode)
	}
	decodeState(t, do(t, h, http.MethodPut, "/api/mode", map[string]interface{}{"mode": "pan"}))
	if n := countEvents(bus, events.ModeChanged); n != 1 {
		t.Errorf("mode.changed = %d, want 1", n)
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/engine", map[string]interface{}{"type": "error", "message": "decode failed"}))
	if st.Error != "decode failed" {
		t.Errorf("error = %q", st.Error)
	}
	last, _ := bus.Last()
	if last.Type != events.EngineFailed || last.Message != "decode failed" {
		t.Errorf("last event = %+v", last)
	}
}

func TestServer_SelectAndReset(t *testing.T) {
	srv, session, bus := newTestServer(t)
	h := srv.Handler()
	id := session.State().Segments[2].RegionID

	st := decodeState(t, do(t, h, http.MethodPost, "/api/regions/select", map[string]interface{}{"id": id}))
	if st.Selected != id || countEvents(bus, events.SegmentSelected) != 1 {
		t.Errorf("selected = %q, events = %d", st.Selected, countEvents(bus, events.SegmentSelected))
	}
	if rec := do(t, h, http.MethodPost, "/api/regions/select", map[string]interface{}{"id": "missing"}); rec.Code != http.StatusNotFound {
		t.Errorf("select missing = %d", rec.Code)
	}

	session.Do(func(c *timeline.Controller) { c.Regions.CommitEdit(id, 21, 29) })
	rec := do(t, h, http.MethodPost, "/api/regions/reset", map[string]interface{}{})
	st = decodeState(t, rec)
	if strings.Count(rec.Body.String(), `"reset":1`) != 1 {
		t.Errorf("reset count missing: %s", rec.Body.String())
	}
	if st.Segments[2].Edited {
		t.Error("override survived reset")
	}
}

func TestServer_SegmentsViewportWheel(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	st := decodeState(t, do(t, h, http.MethodPut, "/api/segments", map[string]interface{}{
		"segments": []timeline.Segment{{Label: "horn", T0: 3, T1: 4, Score: 1}},
	}))
	if len(st.Segments) != 1 || st.Segments[0].Label != "horn" {
		t.Errorf("segments = %+v", st.Segments)
	}

	st = decodeState(t, do(t, h, http.MethodPut, "/api/viewport", map[string]interface{}{"client_width": 400}))
	if st.ClientWidth != 400 {
		t.Errorf("client width = %v", st.ClientWidth)
	}

	rec := do(t, h, http.MethodPost, "/api/wheel", map[string]interface{}{"x": 0, "delta_x": 120})
	st = decodeState(t, rec)
	if !strings.Contains(rec.Body.String(), `"consumed":true`) || st.ScrollLeft != 120 {
		t.Errorf("wheel scroll = %v, body = %s", st.ScrollLeft, rec.Body.String())
	}

	st = decodeState(t, do(t, h, http.MethodPost, "/api/zoom", map[string]interface{}{"zoom": 200, "x": 0}))
	if st.Zoom != 200 {
		t.Errorf("zoom = %v", st.Zoom)
	}
}

func TestServer_RulerAndHistory(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/ruler?zoom=90", nil)
	var ruler struct {
		MajorStep float64         `json:"major_step"`
		MinorStep float64         `json:"minor_step"`
		Ticks     []timeline.Tick `json:"ticks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ruler); err != nil {
		t.Fatal(err)
	}
	if ruler.MajorStep != 1 || ruler.MinorStep != 0.5 || len(ruler.Ticks) != 85 {
		t.Errorf("ruler = major %v minor %v ticks %d", ruler.MajorStep, ruler.MinorStep, len(ruler.Ticks))
	}

	rec = do(t, h, http.MethodGet, "/api/events?limit=1", nil)
	var hist struct {
		Events []events.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Events) != 1 {
		t.Errorf("history = %d events, want 1", len(hist.Events))
	}
}

func TestServer_Export(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/export", nil)
	var snap source.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode json export: %v", err)
	}
	if snap.JobID != "job-42" || len(snap.Segments) != 3 {
		t.Errorf("json export = %+v", snap)
	}

	rec = do(t, h, http.MethodGet, "/api/export?format=yaml", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("content type = %q", ct)
	}
	var ysnap source.Snapshot
	if err := yaml.Unmarshal(rec.Body.Bytes(), &ysnap); err != nil {
		t.Fatalf("decode yaml export: %v", err)
	}
	if ysnap.JobID != "job-42" || ysnap.Segments[0].Label != "dog bark" {
		t.Errorf("yaml export = %+v", ysnap)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, session, _ := newTestServer(t)
	h := srv.Handler()
	session.Do(func(c *timeline.Controller) {
		c.Regions.CommitEdit(c.Regions.Effective()[0].RegionID, 1, 3)
	})
	do(t, h, http.MethodGet, "/health", nil)

	body := do(t, h, http.MethodGet, "/metrics", nil).Body.String()
	for _, want := range []string{"wavedit_region_commits 1", "wavedit_segments 3", "wavedit_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_EventStream(t *testing.T) {
	srv, _, bus := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) string {
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, prefix) {
				return line
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, sc.Err())
		return ""
	}
	waitFor("event: connected")

	bus.Publish(events.NewMessageEvent(events.JobReloaded, "job-42"))
	if line := waitFor("event: "); line != "event: "+events.JobReloaded {
		t.Errorf("event line = %q", line)
	}
	if data := waitFor("data: "); !strings.Contains(data, "job-42") {
		t.Errorf("data line = %q", data)
	}
}

func TestServer_FollowAppliesReloads(t *testing.T) {
	srv, session, bus := newTestServer(t)
	h := srv.Handler()

	longer := parseJob(t, testJob)
	longer.DurationSeconds = 60
	changes := make(chan watcher.Change, 3)
	changes <- watcher.Change{Job: longer}
	changes <- watcher.Change{Err: errors.New("truncated file")}
	changes <- watcher.Change{Job: &source.Job{ID: "no-duration"}}
	close(changes)

	srv.Follow(context.Background(), changes)

	st := session.State()
	t.Logf("SERVE_TEST: after follow duration=%v error=%q", st.Duration, st.Error)
	if st.Duration != 60 {
		t.Errorf("duration = %v, want 60 from the first reload", st.Duration)
	}
	if st.Error == "" {
		t.Error("job without duration should fail the timeline")
	}
	if n := countEvents(bus, events.JobReloaded); n != 1 {
		t.Errorf("job.reloaded = %d, want 1", n)
	}
	if n := countEvents(bus, events.EngineFailed); n != 1 {
		t.Errorf("engine.failed = %d, want 1", n)
	}

	body := do(t, h, http.MethodGet, "/metrics", nil).Body.String()
	for _, want := range []string{
		`wavedit_job_reloads_total{result="ok"} 1`,
		`wavedit_job_reloads_total{result="error"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_FollowStopsOnContext(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Follow(ctx, make(chan watcher.Change))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
