// Package watcher provides file watching with debouncing using fsnotify.
// job.go reloads a detector job whenever its file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dicklesworthstone/wavedit/internal/source"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 150 * time.Millisecond

// Change is one reload attempt. Err is set when the file could not be read
// or decoded; the previous job stays in effect for the consumer.
type Change struct {
	Job *source.Job
	Err error
}

// JobWatcher reloads a job file when it is written or recreated.
type JobWatcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	load     func(string) (*source.Job, error)

	fsw     *fsnotify.Watcher
	changes chan Change

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// JobWatcherOption configures a JobWatcher.
type JobWatcherOption func(*JobWatcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) JobWatcherOption {
	return func(w *JobWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) JobWatcherOption {
	return func(w *JobWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithLoader replaces source.Load.
func WithLoader(load func(string) (*source.Job, error)) JobWatcherOption {
	return func(w *JobWatcher) {
		if load != nil {
			w.load = load
		}
	}
}

// NewJobWatcher watches the directory holding path, so atomic saves that
// replace the file are seen too.
func NewJobWatcher(path string, opts ...JobWatcherOption) (*JobWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	w := &JobWatcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		load:     source.Load,
		changes:  make(chan Change, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw
	return w, nil
}

// Changes delivers reload results. Only the latest pending result is kept.
func (w *JobWatcher) Changes() <-chan Change { return w.changes }

// Path returns the watched file.
func (w *JobWatcher) Path() string { return w.path }

// Start begins watching in a background goroutine.
func (w *JobWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Debug("watching job file", "path", w.path, "debounce", w.debounce)
}

// Stop halts the watcher and closes Changes.
func (w *JobWatcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancelFunc != nil {
			w.cancelFunc()
		}
		w.fsw.Close()
		w.wg.Wait()
		close(w.changes)
	})
}

func (w *JobWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("job watcher error", "path", w.path, "error", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *JobWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func (w *JobWatcher) reload() {
	job, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("job reload failed", "path", w.path, "error", err)
	} else {
		w.logger.Info("job reloaded", "path", w.path, "segments", len(job.Segments()))
	}
	w.publish(Change{Job: job, Err: err})
}

// publish replaces any unread result with c.
func (w *JobWatcher) publish(c Change) {
	for {
		select {
		case w.changes <- c:
			return
		default:
		}
		select {
		case <-w.changes:
		default:
		}
	}
}
