package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and escrow
// instrumentation. A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	escrowCreated   prometheus.Counter
	escrowReleased  *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	disputes        prometheus.Counter
	cancellations   prometheus.Counter
	reviews         *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	sweepReleased   prometheus.Counter
	sweepFailures   prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache reads",
			Buckets: prometheus.DefBuckets,
		}),
		escrowCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_created_total",
			Help: "Escrows locked at booking",
		}),
		escrowReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_releases_total",
			Help: "Escrow releases by reason",
		}, []string{"reason"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_confirmations_total",
			Help: "Session confirmations by role",
		}, []string{"role"}),
		disputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_disputes_total",
			Help: "Sessions moved to disputed",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_cancellations_total",
			Help: "Sessions cancelled with escrow refunded",
		}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_total",
			Help: "Review submissions by outcome",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "escrow_sweep_duration_seconds",
			Help:    "Duration of auto-release sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		sweepReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_sweep_released_total",
			Help: "Sessions released by the deadline sweep",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_sweep_failures_total",
			Help: "Sessions the sweep failed to release",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_events_total",
			Help: "Domain events handed to the dispatcher by result",
		}, []string{"type", "result"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLookups, m.cacheLatency, m.escrowCreated,
		m.escrowReleased, m.confirmations, m.disputes, m.cancellations, m.reviews, m.sweepDuration,
		m.sweepReleased, m.sweepFailures, m.eventsPublished, goroutines)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
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

// ObserveHTTPRequest records request latency and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.Observe(duration.Seconds())
}

func (m *MetricsService) escrowLocked() {
	if m == nil {
		return
	}
	m.escrowCreated.Inc()
}

func (m *MetricsService) released(reason string) {
	if m == nil {
		return
	}
	m.escrowReleased.WithLabelValues(reason).Inc()
}

func (m *MetricsService) confirmed(role string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(role).Inc()
}

func (m *MetricsService) disputed() {
	if m == nil {
		return
	}
	m.disputes.Inc()
}

func (m *MetricsService) cancelled() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *MetricsService) review(outcome string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(outcome).Inc()
}

func (m *MetricsService) sweep(duration time.Duration, released, failed int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepReleased.Add(float64(released))
	m.sweepFailures.Add(float64(failed))
}

func (m *MetricsService) event(eventType string, err error) {
	if m == nil {
		return
	}
	result := "queued"
	if err != nil {
		result = "rejected"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}
