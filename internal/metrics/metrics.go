// package metrics exposes Prometheus instrumentation for the bridge on a private registry
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "spotibridge_"

// Outcome labels shared by all collectors.
const (
	OutcomeSuccess   = "success"
	OutcomeAuth      = "auth"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

// Metrics bundles the bridge collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal      *prometheus.CounterVec
	UpstreamTotal     *prometheus.CounterVec
	UpstreamLatency   *prometheus.HistogramVec
	TranscodeTotal    *prometheus.CounterVec
	TranscodeDuration prometheus.Histogram
	RequestsTotal     *prometheus.CounterVec
}

// New constructs the collectors and registers them, plus the Go runtime collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "token_refresh_total",
				Help: "Total access token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Total upstream requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upstream_latency_seconds",
				Help:    "Upstream request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		TranscodeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transcode_total",
				Help: "Total cover art transcodes by outcome",
			},
			[]string{"outcome"},
		),
		TranscodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "transcode_duration_seconds",
			Help:    "Cover art transcode duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshTotal,
		m.UpstreamTotal,
		m.UpstreamLatency,
		m.TranscodeTotal,
		m.TranscodeDuration,
		m.RequestsTotal,
	)
	return m
}

// Registry returns the private registry the collectors were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRefresh counts one token refresh attempt.
func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records one upstream call against endpoint.
func (m *Metrics) ObserveUpstream(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamTotal.WithLabelValues(endpoint, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveTranscode records one transcode run.
func (m *Metrics) ObserveTranscode(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TranscodeTotal.WithLabelValues(outcome).Inc()
	m.TranscodeDuration.Observe(elapsed.Seconds())
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
