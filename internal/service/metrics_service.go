package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/deadline-engine/internal/models"
)

// MetricsService owns the engine's Prometheus registry and keeps atomic
// counters for the summary endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheHitRatio   prometheus.Gauge
	extensions      *prometheus.CounterVec
	periodToggles   *prometheus.CounterVec
	tickDuration    *prometheus.HistogramVec
	mirrors         *prometheus.CounterVec
	events          *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	extensionCount       uint64
	toggleCount          uint64
	mirrorCount          uint64
	droppedEvents        uint64
}

// NewMetricsService registers the engine collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deadline_status_cache_latency_seconds",
		Help:    "Latency of deadline status cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deadline_status_cache_hits_total",
		Help: "Deadline status cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deadline_status_cache_misses_total",
		Help: "Deadline status cache misses",
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deadline_status_cache_hit_ratio",
		Help: "Ratio of cache hits to total lookups",
	})

	extensions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extension_transitions_total",
		Help: "Extension request transitions by resulting status",
	}, []string{"status"})

	periodToggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "period_toggles_total",
		Help: "Deadline period enable/disable operations by origin and outcome",
	}, []string{"origin", "action", "outcome"})

	tickDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "periodic_task_duration_seconds",
		Help:    "Duration of scheduler and reconciler passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	mirrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_mirrors_total",
		Help: "Mirror records written by the calendar reconciler",
	}, []string{"store", "outcome"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deadline_events_total",
		Help: "Deadline notifications by type and outcome",
	}, []string{"type", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses, cacheHitRatio,
		extensions, periodToggles, tickDuration, mirrors, events, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheHitRatio:   cacheHitRatio,
		extensions:      extensions,
		periodToggles:   periodToggles,
		tickDuration:    tickDuration,
		mirrors:         mirrors,
		events:          events,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the private registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordExtensionTransition counts a committed extension state change.
func (m *MetricsService) RecordExtensionTransition(status models.ExtensionStatus) {
	if m == nil {
		return
	}
	m.extensions.WithLabelValues(string(status)).Inc()
	atomic.AddUint64(&m.extensionCount, 1)
}

// RecordPeriodToggle counts an enable/disable attempt. origin is "scheduler"
// or "manual"; outcome is "applied", "noop" or "failed".
func (m *MetricsService) RecordPeriodToggle(origin string, enabled bool, outcome string) {
	if m == nil {
		return
	}
	action := "disable"
	if enabled {
		action = "enable"
	}
	m.periodToggles.WithLabelValues(origin, action, outcome).Inc()
	if outcome == "applied" {
		atomic.AddUint64(&m.toggleCount, 1)
	}
}

// ObserveTask records the duration of a periodic pass.
func (m *MetricsService) ObserveTask(task string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordMirror counts a reconciler insert into store ("periods" or "calendar").
func (m *MetricsService) RecordMirror(store string, ok bool) {
	if m == nil {
		return
	}
	outcome := "created"
	if !ok {
		outcome = "failed"
	} else {
		atomic.AddUint64(&m.mirrorCount, 1)
	}
	m.mirrors.WithLabelValues(store, outcome).Inc()
}

// RecordEvent counts a notification outcome: "queued", "dropped", "stored" or "failed".
func (m *MetricsService) RecordEvent(eventType models.EventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(eventType), outcome).Inc()
	if outcome == "dropped" {
		atomic.AddUint64(&m.droppedEvents, 1)
	}
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio,
		ExtensionTransitions:     atomic.LoadUint64(&m.extensionCount),
		PeriodToggles:            atomic.LoadUint64(&m.toggleCount),
		MirrorsCreated:           atomic.LoadUint64(&m.mirrorCount),
		EventsDropped:            atomic.LoadUint64(&m.droppedEvents),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
