// Package telemetry holds the Prometheus collectors for the engine.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "counsel"

// Ask outcomes.
const (
	OutcomeCached    = "cached"
	OutcomeGenerated = "generated"
	OutcomeFailed    = "failed"
)

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	asks          *prometheus.CounterVec
	askDuration   *prometheus.HistogramVec
	backendCalls  *prometheus.CounterVec
	backendTiming *prometheus.HistogramVec
	searches      *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	streamsActive prometheus.Gauge
	streamsDenied prometheus.Counter
	httpRequests  *prometheus.CounterVec
}

// New creates and registers the collectors, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		asks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asks_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"outcome"}),
		askDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "End-to-end question latency, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 3, 10),
		}, []string{"outcome"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Generation backend calls, by operation and result.",
		}, []string{"op", "result"}),
		backendTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Generation backend call latency, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Hybrid search results returned, by source.",
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Answer cache lookups, by result.",
		}, []string{"result"}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Streaming answers currently in flight.",
		}),
		streamsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_rejected_total",
			Help:      "Streaming requests rejected because the pool was saturated.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.asks, m.askDuration,
		m.backendCalls, m.backendTiming,
		m.searches, m.cacheLookups,
		m.streamsActive, m.streamsDenied,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAsk records one answered (or failed) question.
func (m *Metrics) ObserveAsk(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.asks.WithLabelValues(outcome).Inc()
	m.askDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveBackend records one backend call.
func (m *Metrics) ObserveBackend(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backendCalls.WithLabelValues(op, result).Inc()
	m.backendTiming.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveSearchResult counts one returned search result.
func (m *Metrics) ObserveSearchResult(source string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(source).Inc()
}

// ObserveCacheLookup records an answer cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// StreamStarted and StreamFinished bracket a streaming answer.
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.streamsActive.Inc()
}

func (m *Metrics) StreamFinished() {
	if m == nil {
		return
	}
	m.streamsActive.Dec()
}

// StreamRejected counts a stream refused for lack of capacity.
func (m *Metrics) StreamRejected() {
	if m == nil {
		return
	}
	m.streamsDenied.Inc()
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
