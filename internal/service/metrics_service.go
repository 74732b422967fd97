package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// Apply outcome labels.
const (
	ApplyOutcomeApplied    = "applied"
	ApplyOutcomeIncomplete = "incomplete"
	ApplyOutcomeFailed     = "failed"
	ApplyOutcomeRejected   = "rejected"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, caching and timetable generation.
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

	generationDuration prometheus.Histogram
	unfilledSlots      prometheus.Histogram
	repairs            prometheus.Counter
	skipped            prometheus.Counter
	conflicts          *prometheus.CounterVec
	applyTotal         *prometheus.CounterVec
	activeProposals    prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
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

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Time spent generating a timetable proposal",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
	})

	unfilledSlots := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_unfilled_slots",
		Help:    "Teaching slots left empty per generated proposal",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 40},
	})

	repairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_swap_repairs_total",
		Help: "Pool swaps performed to avoid teacher clashes",
	})

	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_skipped_demand_total",
		Help: "Demand items dropped because no teacher was free",
	})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Conflicts reported by the detector",
	}, []string{"type"})

	applyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_apply_total",
		Help: "Proposal apply and reject outcomes",
	}, []string{"outcome"})

	activeProposals := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_proposals_active",
		Help: "Proposals held in memory",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		generationDuration, unfilledSlots, repairs, skipped, conflicts, applyTotal, activeProposals,
		goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		generationDuration: generationDuration,
		unfilledSlots:      unfilledSlots,
		repairs:            repairs,
		skipped:            skipped,
		conflicts:          conflicts,
		applyTotal:         applyTotal,
		activeProposals:    activeProposals,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveGeneration records the cost and quality of one engine run.
func (m *MetricsService) ObserveGeneration(duration time.Duration, stats scheduler.AssignStats) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	m.unfilledSlots.Observe(float64(stats.Unfilled))
	m.repairs.Add(float64(stats.Repairs))
	m.skipped.Add(float64(stats.Skipped))
}

// RecordConflicts counts detector findings by type.
func (m *MetricsService) RecordConflicts(conflicts []scheduler.Conflict) {
	if m == nil {
		return
	}
	for _, conflict := range conflicts {
		m.conflicts.WithLabelValues(string(conflict.Type)).Inc()
	}
}

// RecordApply counts a proposal outcome.
func (m *MetricsService) RecordApply(outcome string) {
	if m == nil {
		return
	}
	m.applyTotal.WithLabelValues(outcome).Inc()
}

// SetActiveProposals reports the size of the proposal store.
func (m *MetricsService) SetActiveProposals(n int) {
	if m == nil {
		return
	}
	m.activeProposals.Set(float64(n))
}
