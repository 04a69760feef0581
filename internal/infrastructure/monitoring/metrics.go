package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Extension metrics
	Transitions      *prometheus.CounterVec
	HookDuration     *prometheus.HistogramVec
	ExtensionsActive prometheus.Gauge
	ExtensionsFailed prometheus.Gauge
	SlotViews        *prometheus.GaugeVec
	RenderErrors     *prometheus.CounterVec
	Toasts           *prometheus.CounterVec
	Installs         *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveExtensions  int64   `json:"active_extensions"`
	ActiveConnections int64   `json:"active_connections"`
	TotalDuration     float64 `json:"total_duration_seconds"`
	RequestCount      int64   `json:"request_count"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a collector registered with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a collector registered with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Extension metrics
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_extension_transitions_total",
				Help: "Total number of extension lifecycle transitions",
			},
			[]string{"transition", "result"},
		),
		HookDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_extension_hook_duration_seconds",
				Help:    "Duration of extension evaluate/activate/deactivate calls",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"hook"},
		),
		ExtensionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_extensions_active",
				Help: "Number of active extensions",
			},
		),
		ExtensionsFailed: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_extensions_failed",
				Help: "Number of extensions in the failed state",
			},
		),
		SlotViews: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exthost_slot_views",
				Help: "Number of view registrations per slot",
			},
			[]string{"slot"},
		),
		RenderErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_render_errors_total",
				Help: "Views replaced by a placeholder at render time",
			},
			[]string{"slot"},
		),
		Toasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_toasts_total",
				Help: "Toast notifications by outcome",
			},
			[]string{"type", "result"},
		),
		Installs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_installs_total",
				Help: "Extension package installs by source and result",
			},
			[]string{"source", "result"},
		),

		// WebSocket metrics
		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordTransition records one lifecycle transition (load, unload, toggle)
func (m *Metrics) RecordTransition(transition, result string) {
	m.Transitions.WithLabelValues(transition, result).Inc()
}

// ObserveHook records how long an extension hook ran
func (m *Metrics) ObserveHook(hook string, d time.Duration) {
	m.HookDuration.WithLabelValues(hook).Observe(d.Seconds())
}

// SetExtensionCounts sets the active and failed gauges
func (m *Metrics) SetExtensionCounts(active, failed int) {
	m.ExtensionsActive.Set(float64(active))
	m.ExtensionsFailed.Set(float64(failed))
	m.mu.Lock()
	m.snapshot.ActiveExtensions = int64(active)
	m.mu.Unlock()
}

// SetSlotViews sets the registration count for one slot
func (m *Metrics) SetSlotViews(slot string, count int) {
	m.SlotViews.WithLabelValues(slot).Set(float64(count))
}

// RecordRenderError records a view replaced by its placeholder
func (m *Metrics) RecordRenderError(slot string) {
	m.RenderErrors.WithLabelValues(slot).Inc()
}

// RecordToast records a toast and whether it was delivered or dropped
func (m *Metrics) RecordToast(toastType, result string) {
	m.Toasts.WithLabelValues(toastType, result).Inc()
}

// RecordInstall records a package install attempt
func (m *Metrics) RecordInstall(source, result string) {
	m.Installs.WithLabelValues(source, result).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime).Seconds()
	m.Uptime.Set(uptime)

	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = uptime
	return s
}
