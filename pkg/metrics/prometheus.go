// Package metrics provides Prometheus metrics for the tagtrail service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tagtrail service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	sizeBuckets      []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Tag registry
	scansSaved      prometheus.Counter
	scansDuplicate  prometheus.Counter
	tagsCreated     prometheus.Counter
	historyOversize *prometheus.CounterVec

	// Transactions
	txConflicts *prometheus.CounterVec
	txExhausted *prometheus.CounterVec

	// Event pipeline
	eventsWritten      prometheus.Counter
	eventsSkipped      prometheus.Counter
	statsApplied       prometheus.Counter
	statsFailed        prometheus.Counter
	statsDeduplicated  prometheus.Counter
	batchSize          prometheus.Histogram
	fanOutInFlight     prometheus.Gauge
	storeOpLatency     *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tagtrail",
		subsystem:        "",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		sizeBuckets:      []float64{1, 5, 10, 25, 50, 100, 250, 500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scansSaved = m.counter("tag_scans_saved_total", "Total number of tag scans persisted")
	m.scansDuplicate = m.counter("tag_scans_duplicate_total", "Total number of tag scans suppressed by the recent-scan window")
	m.tagsCreated = m.counter("tags_created_total", "Total number of tags seen for the first time")
	m.historyOversize = m.counterVec("history_oversize_total",
		"Writes that left a record history above the warning threshold", "collection")

	m.txConflicts = m.counterVec("store_tx_conflicts_total",
		"Transaction attempts aborted by a conflicting write", "backend")
	m.txExhausted = m.counterVec("store_tx_exhausted_total",
		"Transactions that failed after the last retry", "backend")

	m.eventsWritten = m.counter("events_written_total", "Total number of events persisted")
	m.eventsSkipped = m.counter("events_skipped_total", "Total number of events skipped for lack of an id")
	m.statsApplied = m.counter("stats_updates_applied_total", "Total number of stats deltas applied")
	m.statsFailed = m.counter("stats_updates_failed_total", "Total number of stats deltas that failed and were swallowed")
	m.statsDeduplicated = m.counter("stats_updates_deduplicated_total",
		"Total number of stats deltas skipped because the event id was already counted")

	m.batchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "event_batch_size",
		Help:        "Number of events per accepted batch",
		Buckets:     m.sizeBuckets,
		ConstLabels: m.constLabels,
	})

	m.fanOutInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fanout_in_flight",
		Help:        "Number of fan-out tasks currently running",
		ConstLabels: m.constLabels,
	})

	m.storeOpLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_operation_latency_milliseconds",
		Help:        "Document store operation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"backend", "operation"})

	m.cacheLookups = m.counterVec("cache_lookups_total", "Cache lookups by cache name and result", "cache", "result")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordScanSaved counts a persisted scan; created marks a first sighting.
func RecordScanSaved(created bool) {
	globalManager.scansSaved.Inc()
	if created {
		globalManager.tagsCreated.Inc()
	}
}

// RecordScanDuplicate counts a scan answered from the recent-scan window.
func RecordScanDuplicate() {
	globalManager.scansDuplicate.Inc()
}

// RecordHistoryOversize counts a write that left history above the threshold.
func RecordHistoryOversize(collection string) {
	globalManager.historyOversize.WithLabelValues(collection).Inc()
}

// RecordTxConflict counts an aborted transaction attempt.
func RecordTxConflict(backend string) {
	globalManager.txConflicts.WithLabelValues(backend).Inc()
}

// RecordTxExhausted counts a transaction that ran out of retries.
func RecordTxExhausted(backend string) {
	globalManager.txExhausted.WithLabelValues(backend).Inc()
}

// RecordEventsWritten adds n persisted events.
func RecordEventsWritten(n int) {
	globalManager.eventsWritten.Add(float64(n))
}

// RecordEventSkipped counts an event dropped for lack of an id.
func RecordEventSkipped() {
	globalManager.eventsSkipped.Inc()
}

// RecordStatsApplied counts a successful stats delta.
func RecordStatsApplied() {
	globalManager.statsApplied.Inc()
}

// RecordStatsFailed counts a swallowed stats failure.
func RecordStatsFailed() {
	globalManager.statsFailed.Inc()
}

// RecordStatsDeduplicated counts a stats delta skipped for an already counted event.
func RecordStatsDeduplicated() {
	globalManager.statsDeduplicated.Inc()
}

// RecordBatchSize observes the size of an accepted batch.
func RecordBatchSize(n int) {
	globalManager.batchSize.Observe(float64(n))
}

// AddFanOutInFlight moves the in-flight fan-out gauge by delta.
func AddFanOutInFlight(delta int) {
	globalManager.fanOutInFlight.Add(float64(delta))
}

// RecordStoreLatency observes a store operation latency in milliseconds.
func RecordStoreLatency(backend, operation string, latencyMs float64) {
	globalManager.storeOpLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestLatency.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
