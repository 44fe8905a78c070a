package serve

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dicklesworthstone/wavedit/internal/config"
	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// Session is one timeline controller shared by HTTP handlers. The controller
// is single-threaded, so every access goes through the session lock.
type Session struct {
	mu      sync.Mutex
	ctrl    *timeline.Controller
	bus     *events.Bus
	notify  events.Notifier
	preview config.PreviewConfig
	job     *source.Job
	logger  *slog.Logger
}

// NewSession creates a session whose engine commands and host notifications
// are published on bus. The remote region widget echoes corrections itself,
// so the in-process lane does not.
func NewSession(cc timeline.ControllerConfig, preview config.PreviewConfig, bus *events.Bus, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cc.EchoOnSet = false
	notify := events.NewNotifier(bus)
	ctrl := timeline.NewController(cc, events.EngineCommands{Bus: bus}, notify)
	ctrl.Logger = logger
	ctrl.Regions.Logger = logger
	return &Session{
		ctrl:    ctrl,
		bus:     bus,
		notify:  notify,
		preview: preview,
		logger:  logger,
	}
}

// Load applies a job: its duration readies the engine, its candidates become
// the segments and its preview mix seeds the preview window.
func (s *Session) Load(job *source.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := source.Apply(s.ctrl, job, s.preview.DefaultStart, s.preview.DefaultLength); err != nil {
		return err
	}
	first := s.job == nil
	s.job = job
	if !first {
		s.bus.Publish(events.NewMessageEvent(events.JobReloaded, job.ID))
	}
	s.logger.Info("job loaded", "job", job.ID, "duration", s.ctrl.Duration(), "segments", len(s.ctrl.Regions.Effective()))
	return nil
}

// Do runs fn with exclusive access to the controller.
func (s *Session) Do(fn func(c *timeline.Controller)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctrl)
}

// State returns a render snapshot.
func (s *Session) State() timeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// Snapshot returns the exportable state of the session.
func (s *Session) Snapshot() (source.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return source.Snapshot{}, fmt.Errorf("no job loaded")
	}
	return source.TakeSnapshot(s.ctrl, s.job.ID), nil
}

// Gauges reports the values the metrics endpoint samples.
func (s *Session) Gauges() (timeline.RegionStats, int, int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Regions.Stats(), len(s.ctrl.Regions.Effective()), len(s.ctrl.Regions.Overrides()), s.ctrl.Viewport().Zoom
}

// Notify exposes the session's notifier for supplemental notifications.
func (s *Session) Notify() events.Notifier { return s.notify }
