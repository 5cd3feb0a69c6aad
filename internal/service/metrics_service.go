package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/manuscript-review/internal/models"
)

// Sync pass outcomes used as the outcome label of sync_passes_total.
const (
	SyncOutcomeComplete = "complete"
	SyncOutcomePartial  = "partial"
	SyncOutcomeError    = "error"
	SyncOutcomeSkipped  = "skipped"
)

// MetricsService owns the Prometheus registry for HTTP, cache and
// reconciliation instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	syncPasses      *prometheus.CounterVec
	syncReconciled  prometheus.Counter
	syncFailed      prometheus.Counter
	syncDuration    prometheus.Histogram
	online          prometheus.Gauge
	transitions     *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	syncedCount    uint64
	failedCount    uint64
	passCount      uint64
	lastPassNanos  int64
}

// NewMetricsService registers the collectors on a private registry.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	syncPasses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_passes_total",
		Help: "Reconciliation passes by outcome",
	}, []string{"outcome"})

	syncReconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_documents_reconciled_total",
		Help: "Documents acknowledged by the remote authority",
	})

	syncFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_documents_failed_total",
		Help: "Documents whose reconciliation failed",
	})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_pass_duration_seconds",
		Help:    "Duration of reconciliation passes",
		Buckets: prometheus.DefBuckets,
	})

	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "connectivity_online",
		Help: "1 while the remote authority is considered reachable",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_status_transitions_total",
		Help: "Applied workflow transitions",
	}, []string{"from", "to"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		syncPasses, syncReconciled, syncFailed, syncDuration, online, transitions, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		syncPasses:      syncPasses,
		syncReconciled:  syncReconciled,
		syncFailed:      syncFailed,
		syncDuration:    syncDuration,
		online:          online,
		transitions:     transitions,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates the hit ratio.
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

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveSyncPass records the outcome of one reconciliation pass.
func (m *MetricsService) ObserveSyncPass(outcome string, result models.SyncResult) {
	if m == nil {
		return
	}
	m.syncPasses.WithLabelValues(outcome).Inc()
	if outcome == SyncOutcomeSkipped {
		return
	}
	m.syncReconciled.Add(float64(result.Synced))
	m.syncFailed.Add(float64(result.Failed))
	m.syncDuration.Observe(result.Duration.Seconds())
	atomic.AddUint64(&m.passCount, 1)
	atomic.AddUint64(&m.syncedCount, uint64(result.Synced))
	atomic.AddUint64(&m.failedCount, uint64(result.Failed))
	atomic.StoreInt64(&m.lastPassNanos, result.CompletedAt.UnixNano())
}

// SetOnline mirrors the coordinator's connectivity state.
func (m *MetricsService) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

// ObserveTransition counts an applied workflow transition.
func (m *MetricsService) ObserveTransition(from, to models.DocumentStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// Snapshot returns aggregate counters for the sync status endpoint.
func (m *MetricsService) Snapshot() models.SyncMetricsSnapshot {
	if m == nil {
		return models.SyncMetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	snapshot := models.SyncMetricsSnapshot{
		Passes:          atomic.LoadUint64(&m.passCount),
		DocumentsSynced: atomic.LoadUint64(&m.syncedCount),
		DocumentsFailed: atomic.LoadUint64(&m.failedCount),
		RequestsTotal:   atomic.LoadUint64(&m.requestCount),
		CacheHitRatio:   ratio,
		Goroutines:      runtime.NumGoroutine(),
		GeneratedAt:     time.Now().UTC(),
	}
	if nanos := atomic.LoadInt64(&m.lastPassNanos); nanos > 0 {
		last := time.Unix(0, nanos).UTC()
		snapshot.LastPassCompletedAt = &last
	}
	return snapshot
}
