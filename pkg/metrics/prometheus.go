package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the replay service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Decode pipeline
	replaysSubmitted prometheus.Counter
	replaysDecoded   prometheus.Counter
	replaysDuplicate prometheus.Counter
	decodeFailures   *prometheus.CounterVec
	decodeLatency    prometheus.Histogram
	ratingUpdates    prometheus.Counter
	playersRated     prometheus.Gauge
	matchesStored    prometheus.Gauge

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Match store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP and live feed
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	liveSubscribers     prometheus.Gauge
	liveMessages        prometheus.Counter

	errorsByComponent *prometheus.CounterVec

	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "replaymeta",
		subsystem:        "decoder",
		histogramBuckets: defaultLatencyBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.replaysSubmitted = m.counter("replays_submitted_total", "Total number of replay payloads accepted for decoding")
	m.replaysDecoded = m.counter("replays_decoded_total", "Total number of replay payloads decoded successfully")
	m.replaysDuplicate = m.counter("replays_duplicate_total", "Total number of decoded matches rejected as duplicates")
	m.decodeFailures = m.counterVec("decode_failures_total", "Total number of decode failures by error kind", "kind")
	m.decodeLatency = m.histogram("decode_latency_milliseconds", "Histogram of payload decode latency in milliseconds")
	m.ratingUpdates = m.counter("rating_updates_total", "Total number of player rating changes applied")
	m.playersRated = m.gauge("players_rated", "Number of players with a rating")
	m.matchesStored = m.gauge("matches_stored", "Number of matches in the match store")

	m.queueSize = m.gauge("queue_size", "Current size of the submission queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of submissions enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of submissions dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time a submission waited in the queue")

	m.workerCount = m.gauge("worker_count", "Configured number of decode workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently processing a submission")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end processing latency per submission")
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Match store operation latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Total number of match store errors", "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.liveSubscribers = m.gauge("live_subscribers", "Number of connected live feed subscribers")
	m.liveMessages = m.counter("live_messages_total", "Total number of live feed messages broadcast")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordReplaySubmitted increments the accepted submissions counter.
func RecordReplaySubmitted() { globalManager.replaysSubmitted.Inc() }

// RecordReplayDecoded increments the decoded counter.
func RecordReplayDecoded() { globalManager.replaysDecoded.Inc() }

// RecordReplayDuplicate increments the duplicate counter.
func RecordReplayDuplicate() { globalManager.replaysDuplicate.Inc() }

// RecordDecodeFailure counts a failure labelled with its error kind.
func RecordDecodeFailure(kind string) {
	globalManager.decodeFailures.WithLabelValues(kind).Inc()
}

// RecordDecodeLatency records decode latency in milliseconds.
func RecordDecodeLatency(latencyMs float64) {
	globalManager.decodeLatency.Observe(latencyMs)
}

// RecordRatingUpdates adds n applied rating changes.
func RecordRatingUpdates(n int) {
	globalManager.ratingUpdates.Add(float64(n))
}

// UpdatePlayersRated sets the rated players gauge.
func UpdatePlayersRated(count int) {
	globalManager.playersRated.Set(float64(count))
}

// UpdateMatchesStored sets the stored matches gauge.
func UpdateMatchesStored(count int) {
	globalManager.matchesStored.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records how long a submission waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordStoreLatency records a match store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed match store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateLiveSubscribers sets the connected subscribers gauge.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// RecordLiveMessage counts a broadcast message.
func RecordLiveMessage() { globalManager.liveMessages.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// SampleRuntime refreshes the memory and goroutine gauges.
func SampleRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
