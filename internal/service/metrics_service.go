package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/seating-api/internal/models"
)

// Allocation outcome labels.
const (
	OutcomeOK                  = "ok"
	OutcomeCapacityExceeded    = "capacity_exceeded"
	OutcomeAllocationExhausted = "allocation_exhausted"
	OutcomeBudgetExceeded      = "step_budget_exceeded"
	OutcomeInvalid             = "invalid"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	allocations        *prometheus.CounterVec
	allocationDuration prometheus.Observer
	allocationSteps    prometheus.Observer
	violations         prometheus.Observer
	preferenceMisses   prometheus.Counter
	rosterImports      *prometheus.CounterVec
	exports            *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	allocationOK         uint64
	allocationFailed     uint64
	exportFinished       uint64
	exportFailed         uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Help:    "Latency for proposal cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total proposal cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total proposal cache misses",
	})

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seating_allocations_total",
		Help: "Seat allocation runs by outcome",
	}, []string{"outcome"})

	allocationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seating_allocation_duration_seconds",
		Help:    "Wall time of a seat allocation run",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	})

	allocationSteps := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seating_allocation_steps",
		Help:    "Seat inspections spent by successful runs",
		Buckets: prometheus.ExponentialBuckets(8, 4, 8),
	})

	violations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seating_violations",
		Help:    "Separation violations found per checked plan",
		Buckets: []float64{0, 1, 2, 4, 8, 16},
	})

	preferenceMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seating_preference_misses_total",
		Help: "Students seated outside their preferred half",
	})

	rosterImports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seating_roster_imports_total",
		Help: "Roster uploads by format and result",
	}, []string{"format", "result"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seating_exports_total",
		Help: "Chart export jobs by format and final status",
	}, []string{"format", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		allocations, allocationDuration, allocationSteps, violations, preferenceMisses, rosterImports, exports, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		allocations:        allocations,
		allocationDuration: allocationDuration,
		allocationSteps:    allocationSteps,
		violations:         violations,
		preferenceMisses:   preferenceMisses,
		rosterImports:      rosterImports,
		exports:            exports,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
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

// RecordCacheOperation records proposal cache hits and misses.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveAllocation records one allocator run. steps and misses only count for successful runs.
func (m *MetricsService) ObserveAllocation(outcome string, duration time.Duration, steps, misses int) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(outcome).Inc()
	m.allocationDuration.Observe(duration.Seconds())
	if outcome != OutcomeOK {
		atomic.AddUint64(&m.allocationFailed, 1)
		return
	}
	atomic.AddUint64(&m.allocationOK, 1)
	m.allocationSteps.Observe(float64(steps))
	m.preferenceMisses.Add(float64(misses))
}

// ObserveViolations records the size of a violation report.
func (m *MetricsService) ObserveViolations(count int) {
	if m == nil {
		return
	}
	m.violations.Observe(float64(count))
}

// RecordRosterImport counts a roster upload.
func (m *MetricsService) RecordRosterImport(format string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.rosterImports.WithLabelValues(format, result).Inc()
}

// RecordExport counts a finished or failed export job.
func (m *MetricsService) RecordExport(format string, status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, string(status)).Inc()
	switch status {
	case models.ExportStatusFinished:
		atomic.AddUint64(&m.exportFinished, 1)
	case models.ExportStatusFailed:
		atomic.AddUint64(&m.exportFailed, 1)
	}
}

// Snapshot returns aggregated counters for the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		AllocationsSucceeded:     atomic.LoadUint64(&m.allocationOK),
		AllocationsFailed:        atomic.LoadUint64(&m.allocationFailed),
		ExportsFinished:          atomic.LoadUint64(&m.exportFinished),
		ExportsFailed:            atomic.LoadUint64(&m.exportFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
