// Package metrics provides Prometheus metrics for the blueprints service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Store
	blueprintsTotal   prometheus.Gauge
	authorsTotal      prometheus.Gauge
	storeOperations   *prometheus.CounterVec
	pointsAppended    prometheus.Counter
	storeOpLatency    *prometheus.HistogramVec
	drawEventsDropped *prometheus.CounterVec

	// Broadcast
	broadcasts          prometheus.Counter
	broadcastDelivered  prometheus.Counter
	broadcastDropped    prometheus.Counter
	broadcastFrameBytes prometheus.Histogram

	// Sessions and rooms
	sessionsActive prometheus.Gauge
	sessionsOpened prometheus.Counter
	roomsActive    prometheus.Gauge

	// Dispatcher
	dispatchQueueSize     prometheus.Gauge
	dispatchEnqueueErrors prometheus.Counter
	dispatchBackpressure  prometheus.Counter
	dispatchLatency       prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry, no default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "blueprints",
		subsystem:        "sync",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	auto := promauto.With(m.registry)

	m.blueprintsTotal = auto.NewGauge(m.gaugeOpts("blueprints_total", "Number of blueprints currently stored"))
	m.authorsTotal = auto.NewGauge(m.gaugeOpts("authors_total", "Number of authors with at least one blueprint"))
	m.storeOperations = auto.NewCounterVec(
		m.counterOpts("store_operations_total", "Blueprint store mutations by operation and outcome"),
		[]string{"op", "outcome"},
	)
	m.pointsAppended = auto.NewCounter(m.counterOpts("points_appended_total", "Points appended through live drawing"))
	m.storeOpLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_latency_milliseconds", "Blueprint store operation latency", m.histogramBuckets),
		[]string{"op"},
	)
	m.drawEventsDropped = auto.NewCounterVec(
		m.counterOpts("draw_events_dropped_total", "Draw events dropped without a broadcast"),
		[]string{"reason"},
	)

	m.broadcasts = auto.NewCounter(m.counterOpts("broadcasts_total", "Room publishes issued"))
	m.broadcastDelivered = auto.NewCounter(m.counterOpts("broadcast_deliveries_total", "Frames handed to subscriber buffers"))
	m.broadcastDropped = auto.NewCounter(m.counterOpts("broadcast_dropped_total", "Frames a subscriber missed because its buffer was full or closed"))
	// full-state frames grow linearly with the blueprint; this histogram makes that cost visible
	m.broadcastFrameBytes = auto.NewHistogram(m.histogramOpts(
		"broadcast_frame_bytes", "Encoded size of published frames",
		prometheus.ExponentialBuckets(64, 4, 10),
	))

	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active", "Open realtime sessions"))
	m.sessionsOpened = auto.NewCounter(m.counterOpts("sessions_opened_total", "Realtime sessions opened since start"))
	m.roomsActive = auto.NewGauge(m.gaugeOpts("rooms_active", "Rooms with at least one subscriber"))

	m.dispatchQueueSize = auto.NewGauge(m.gaugeOpts("dispatch_queue_size", "Draw commands waiting across all dispatcher shards"))
	m.dispatchEnqueueErrors = auto.NewCounter(m.counterOpts("dispatch_enqueue_errors_total", "Draw commands rejected by a full or closed shard"))
	m.dispatchBackpressure = auto.NewCounter(m.counterOpts("dispatch_backpressure_total", "Draw commands that waited for room in a full shard"))
	m.dispatchLatency = auto.NewHistogram(m.histogramOpts(
		"dispatch_latency_milliseconds", "Time to apply and publish one draw command", m.histogramBuckets,
	))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// UpdateStoreSize sets the blueprint and author gauges.
func UpdateStoreSize(blueprints, authors int) {
	globalManager.blueprintsTotal.Set(float64(blueprints))
	globalManager.authorsTotal.Set(float64(authors))
}

// RecordStoreOperation counts one store call. outcome is "ok" or an error kind.
func RecordStoreOperation(op, outcome string, latencyMs float64) {
	globalManager.storeOperations.WithLabelValues(op, outcome).Inc()
	globalManager.storeOpLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordPointAppended increments the appended points counter.
func RecordPointAppended() {
	globalManager.pointsAppended.Inc()
}

// RecordDrawDropped counts a draw event that produced no broadcast.
func RecordDrawDropped(reason string) {
	globalManager.drawEventsDropped.WithLabelValues(reason).Inc()
}

// RecordBroadcast records one publish with its fan-out outcome.
func RecordBroadcast(frameBytes, delivered, dropped int) {
	globalManager.broadcasts.Inc()
	globalManager.broadcastFrameBytes.Observe(float64(frameBytes))
	globalManager.broadcastDelivered.Add(float64(delivered))
	globalManager.broadcastDropped.Add(float64(dropped))
}

// RecordSessionOpened increments the opened counter and the active gauge.
func RecordSessionOpened() {
	globalManager.sessionsOpened.Inc()
	globalManager.sessionsActive.Inc()
}

// RecordSessionClosed decrements the active sessions gauge.
func RecordSessionClosed() {
	globalManager.sessionsActive.Dec()
}

// UpdateRoomsActive sets the number of non-empty rooms.
func UpdateRoomsActive(count int) {
	globalManager.roomsActive.Set(float64(count))
}

// UpdateDispatchQueueSize sets the number of queued draw commands.
func UpdateDispatchQueueSize(size int) {
	globalManager.dispatchQueueSize.Set(float64(size))
}

// RecordDispatchEnqueueError counts a rejected draw command.
func RecordDispatchEnqueueError() {
	globalManager.dispatchEnqueueErrors.Inc()
}

// RecordDispatchBackpressure counts a draw command that had to wait for a full shard.
func RecordDispatchBackpressure() {
	globalManager.dispatchBackpressure.Inc()
}

// RecordDispatchLatency records how long one draw command took.
func RecordDispatchLatency(latencyMs float64) {
	globalManager.dispatchLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
