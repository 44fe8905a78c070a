// Package serve exposes a timeline session over HTTP with JSON endpoints and
// an SSE event stream, for browser front ends that render the waveform.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/logging"
	"github.com/Dicklesworthstone/wavedit/internal/metrics"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
	"github.com/Dicklesworthstone/wavedit/internal/watcher"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Common error codes.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// APIResponse is the base envelope for all API responses.
type APIResponse struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// APIError represents a structured error response.
type APIError struct {
	APIResponse
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Config configures a Server.
type Config struct {
	Addr    string
	Session *Session
	Bus     *events.Bus
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server provides the HTTP API for one timeline session.
type Server struct {
	addr    string
	session *Session
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger
	router  chi.Router
	server  *http.Server
}

// New builds a server and its router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus(0)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7420"
	}
	s := &Server{
		addr:    cfg.Addr,
		session: cfg.Session,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(metrics.RequestMiddleware(s.metrics))

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.handleEventStream)
	r.Handle("/metrics", s.metrics.Handler(s.updateGauges))

	r.Route("/api", func(r chi.Router) {
		r.Get("/timeline", s.handleTimeline)
		r.Get("/ruler", s.handleRuler)
		r.Get("/events", s.handleEventHistory)
		r.Get("/export", s.handleExport)

		r.Put("/segments", s.handleSetSegments)
		r.Post("/regions/update-end", s.handleUpdateEnd)
		r.Post("/regions/select", s.handleSelect)
		r.Post("/regions/reset", s.handleReset)

		r.Put("/preview", s.handleSetPreview)
		r.Post("/preview/nudge", s.handleNudgePreview)

		r.Post("/pointer", s.handlePointer)
		r.Post("/wheel", s.handleWheel)
		r.Put("/viewport", s.handleViewport)
		r.Post("/zoom", s.handleZoom)
		r.Put("/mode", s.handleMode)
		r.Post("/engine", s.handleEngine)
	})
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	unobserve := s.metrics.Observe(s.bus)
	defer unobserve()

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("starting wavedit server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Follow applies job reloads from changes until it closes or ctx ends. A
// reload the session cannot apply leaves the previous job in place, except
// for a job without a duration, which puts the timeline into its failure
// state.
func (s *Server) Follow(ctx context.Context, changes <-chan watcher.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			s.applyChange(c)
		}
	}
}

func (s *Server) applyChange(c watcher.Change) {
	if s.session == nil {
		return
	}
	err := c.Err
	if err == nil {
		err = s.session.Load(c.Job)
	}
	s.metrics.IncReload(err == nil)
	if err == nil {
		return
	}
	s.logger.Warn("job reload failed", "error", err)
	if errors.Is(err, source.ErrNoDuration) {
		s.session.Do(func(ctl *timeline.Controller) { ctl.HandleError(err.Error()) })
		s.session.Notify().EngineFailed(err.Error())
	}
}

func (s *Server) updateGauges() {
	if s.session != nil {
		st, segs, ovr, zoom := s.session.Gauges()
		s.metrics.SetSession(st, segs, ovr, zoom)
	}
	s.metrics.SetDroppedEvents(s.bus.Dropped())
}

// ---- helpers ---------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("encoding JSON response", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, APIError{
		APIResponse: APIResponse{
			Success:   false,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: chimw.GetReqID(r.Context()),
		},
		Error:     message,
		ErrorCode: code,
	})
}

func writeSuccessResponse(w http.ResponseWriter, r *http.Request, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["success"] = true
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if id := chimw.GetReqID(r.Context()); id != "" {
		data["request_id"] = id
	}
	writeJSON(w, http.StatusOK, data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if s.session == nil {
		writeErrorResponse(w, r, http.StatusConflict, ErrCodeConflict, "no session loaded")
		return false
	}
	return true
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, extra map[string]interface{}) {
	if extra == nil {
		extra = make(map[string]interface{})
	}
	extra["timeline"] = s.session.State()
	writeSuccessResponse(w, r, extra)
}

// ---- read endpoints --------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  "healthy",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	s.writeState(w, r, nil)
}

func (s *Server) handleRuler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	st := s.session.State()
	zoom := st.Zoom
	if raw := r.URL.Query().Get("zoom"); raw != "" {
		z, err := strconv.ParseFloat(raw, 64)
		if err != nil || z <= 0 {
			writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "zoom must be a positive number")
			return
		}
		zoom = z
	}
	ticks := []timeline.Tick{}
	for t := range timeline.Ticks(st.Duration, zoom) {
		ticks = append(ticks, t)
	}
	spec := timeline.Ruler(st.Duration, zoom)
	writeSuccessResponse(w, r, map[string]interface{}{
		"major_step": spec.MajorStep,
		"minor_step": spec.MinorStep,
		"ticks":      ticks,
	})
}

func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	evs := s.bus.History(limit)
	if evs == nil {
		evs = []events.Event{}
	}
	writeSuccessResponse(w, r, map[string]interface{}{"events": evs})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	format := source.FormatJSON
	contentType := "application/json"
	if r.URL.Query().Get("format") == "yaml" {
		format, contentType = source.FormatYAML, "application/yaml"
	}
	snap, err := s.session.Snapshot()
	if err != nil {
		writeErrorResponse(w, r, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	if err := source.WriteSnapshot(w, format, snap); err != nil {
		s.logger.Error("writing export", "error", err)
	}
}

// handleEventStream handles SSE event streaming at /events.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, r, http.StatusInternalServerError, ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, stop := s.bus.Stream(100)
	defer stop()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"time\":\"%s\"}\n\n",
		time.Now().UTC().Format(time.RFC3339))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
			flusher.Flush()
		}
	}
}

// ---- host inputs -----------------------------------------------------------

type segmentsRequest struct {
	Segments []timeline.Segment `json:"segments"`
}

func (s *Server) handleSetSegments(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req segmentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.Do(func(c *timeline.Controller) { c.SetSegments(req.Segments) })
	s.writeState(w, r, nil)
}

type regionRequest struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s *Server) handleUpdateEnd(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req regionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		known bool
		seg   timeline.EffectiveSegment
	)
	s.session.Do(func(c *timeline.Controller) {
		if known = c.Lane.Report(req.ID, req.Start, req.End); known {
			seg, _ = c.Regions.Lookup(req.ID)
		}
	})
	if !known {
		writeErrorResponse(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("unknown region %q", req.ID))
		return
	}
	corrected := seg.T0 != req.Start || seg.T1 != req.End
	seg.Score = timeline.SortScore(seg.Score)
	writeSuccessResponse(w, r, map[string]interface{}{
		"segment":   seg,
		"corrected": corrected,
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req regionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var ok bool
	s.session.Do(func(c *timeline.Controller) { ok = c.Select(req.ID) })
	if !ok {
		writeErrorResponse(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("unknown region %q", req.ID))
		return
	}
	s.writeState(w, r, nil)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req regionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var n int
	s.session.Do(func(c *timeline.Controller) {
		if req.ID == "" {
			n = c.Regions.ResetAll()
		} else if c.Regions.ResetOverride(req.ID) {
			n = 1
		}
	})
	s.writeState(w, r, map[string]interface{}{"reset": n})
}

type previewRequest struct {
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
}

func (s *Server) handleSetPreview(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.Do(func(c *timeline.Controller) { c.SetPreview(req.Start, req.Length) })
	s.writeState(w, r, nil)
}

type nudgeRequest struct {
	Delta float64 `json:"delta"`
}

func (s *Server) handleNudgePreview(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req nudgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.Do(func(c *timeline.Controller) { c.NudgePreview(req.Delta) })
	s.writeState(w, r, nil)
}

// ---- pointer and viewport --------------------------------------------------

type pointerRequest struct {
	Phase    string  `json:"phase"`
	X        float64 `json:"x"`
	Target   string  `json:"target,omitempty"`
	RegionID string  `json:"region_id,omitempty"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req pointerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind := timeline.TargetCanvas
	if req.Target != "" {
		k, ok := timeline.ParseTargetKind(req.Target)
		if !ok {
			writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown target %q", req.Target))
			return
		}
		kind = k
	}
	ev := timeline.PointerEvent{X: req.X, Target: timeline.Target{Kind: kind, RegionID: req.RegionID}}

	var apply func(c *timeline.Controller)
	switch req.Phase {
	case "down":
		apply = func(c *timeline.Controller) { c.PointerDown(ev) }
	case "move":
		apply = func(c *timeline.Controller) { c.PointerMove(ev) }
	case "up":
		apply = func(c *timeline.Controller) { c.PointerUp(ev) }
	case "cancel":
		apply = func(c *timeline.Controller) { c.PointerCancel() }
	default:
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "phase must be down, move, up or cancel")
		return
	}
	s.session.Do(apply)
	s.writeState(w, r, nil)
}

type wheelRequest struct {
	X        float64 `json:"x"`
	DeltaX   float64 `json:"delta_x"`
	DeltaY   float64 `json:"delta_y"`
	Modifier bool    `json:"modifier"`
}

func (s *Server) handleWheel(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req wheelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var consumed bool
	s.session.Do(func(c *timeline.Controller) {
		consumed = c.Wheel(timeline.WheelEvent{X: req.X, DeltaX: req.DeltaX, DeltaY: req.DeltaY, Modifier: req.Modifier})
	})
	s.writeState(w, r, map[string]interface{}{"consumed": consumed})
}

type viewportRequest struct {
	ClientWidth float64 `json:"client_width"`
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req viewportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClientWidth < 0 {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "client_width must be non-negative")
		return
	}
	s.session.Do(func(c *timeline.Controller) { c.SetClientWidth(req.ClientWidth) })
	s.writeState(w, r, nil)
}

type zoomRequest struct {
	Zoom float64 `json:"zoom"`
	X    float64 `json:"x"`
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req zoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.Do(func(c *timeline.Controller) { c.ZoomAround(req.Zoom, req.X) })
	s.writeState(w, r, nil)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req modeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, ok := timeline.ParseMode(req.Mode)
	if !ok {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "mode must be seek or pan")
		return
	}
	var changed bool
	s.session.Do(func(c *timeline.Controller) {
		changed = c.Mode() != m
		c.SetMode(m)
	})
	if changed {
		s.session.Notify().ModeChanged(m)
	}
	s.writeState(w, r, nil)
}

type engineRequest struct {
	Type    string  `json:"type"`
	Value   float64 `json:"value"`
	Message string  `json:"message,omitempty"`
}

// handleEngine receives events from the remote rendering engine.
func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	var req engineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var apply func(c *timeline.Controller)
	switch req.Type {
	case "ready":
		apply = func(c *timeline.Controller) { c.HandleReady(req.Value) }
	case "scroll":
		apply = func(c *timeline.Controller) { c.HandleScroll(req.Value) }
	case "zoom":
		apply = func(c *timeline.Controller) { c.HandleZoom(req.Value) }
	case "timeupdate":
		apply = func(c *timeline.Controller) { c.HandleTimeUpdate(req.Value) }
	case "play":
		apply = func(c *timeline.Controller) { c.HandlePlay() }
	case "pause":
		apply = func(c *timeline.Controller) { c.HandlePause() }
	case "finish":
		apply = func(c *timeline.Controller) { c.HandleFinish() }
	case "error":
		apply = func(c *timeline.Controller) { c.HandleError(req.Message) }
	default:
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown engine event %q", req.Type))
		return
	}
	s.session.Do(apply)
	if req.Type == "error" {
		s.session.Notify().EngineFailed(req.Message)
	}
	s.writeState(w, r, nil)
}
