// Package metrics exposes Prometheus counters for an editing session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// Metrics holds Prometheus counters and gauges for one wavedit process.
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	eventsTotal   *prometheus.CounterVec
	reloadsTotal  *prometheus.CounterVec
	commits       prometheus.Gauge
	snaps         prometheus.Gauge
	expansions    prometheus.Gauge
	echoes        prometheus.Gauge
	segments      prometheus.Gauge
	overrides     prometheus.Gauge
	zoom          prometheus.Gauge
	droppedEvents prometheus.Gauge
}

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavedit_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavedit_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavedit_events_total",
			Help: "Notifications published to the host, by type",
		}, []string{"type"}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavedit_job_reloads_total",
			Help: "Job file reloads, by result",
		}, []string{"result"}),
		commits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_region_commits",
			Help: "Region edits committed in this session",
		}),
		snaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_region_snaps",
			Help: "Committed edits that snapped to a boundary",
		}),
		expansions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_region_expansions",
			Help: "Committed edits widened to the minimum region length",
		}),
		echoes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_region_echoes_suppressed",
			Help: "Region updates recognised as echoes of a correction",
		}),
		segments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_segments",
			Help: "Valid segments in the current job",
		}),
		overrides: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_overrides",
			Help: "Segments carrying a user correction",
		}),
		zoom: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_zoom_px_per_second",
			Help: "Current timeline zoom",
		}),
		droppedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavedit_stream_dropped_events",
			Help: "Events dropped by slow event stream consumers",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.eventsTotal,
		m.reloadsTotal,
		m.commits,
		m.snaps,
		m.expansions,
		m.echoes,
		m.segments,
		m.overrides,
		m.zoom,
		m.droppedEvents,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncReload counts a job reload attempt.
func (m *Metrics) IncReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.reloadsTotal.WithLabelValues(result).Inc()
}

// Observe counts every event published on bus until the returned func is
// called.
func (m *Metrics) Observe(bus *events.Bus) func() {
	return bus.SubscribeAll(func(ev events.Event) {
		m.eventsTotal.WithLabelValues(ev.Type).Inc()
	})
}

// SetSession copies the engine's state into the gauges.
func (m *Metrics) SetSession(st timeline.RegionStats, segments, overrides int, zoom float64) {
	m.commits.Set(float64(st.Commits))
	m.snaps.Set(float64(st.Snaps))
	m.expansions.Set(float64(st.Expansions))
	m.echoes.Set(float64(st.EchoesSuppressed))
	m.segments.Set(float64(segments))
	m.overrides.Set(float64(overrides))
	m.zoom.Set(zoom)
}

// SetDroppedEvents records the event stream drop count.
func (m *Metrics) SetDroppedEvents(n int64) {
	m.droppedEvents.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
