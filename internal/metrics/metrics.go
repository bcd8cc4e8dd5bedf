// Package metrics exposes scoring and request counters for prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skufu/neurorisk/internal/assessment"
)

const namespace = "neurorisk"

// Metrics implements assessment.Recorder and modelclient.Observer.
type Metrics struct {
	assessments    *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New registers the collectors on reg. Passing a fresh prometheus.Registry
// keeps tests isolated from the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Risk assessments produced, by test and source.",
		}, []string{"test", "source"}),
		remoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_failures_total",
			Help:      "Remote model calls that did not yield a usable prediction.",
		}, []string{"test"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of remote model calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"test", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.assessments, m.remoteFailures, m.remoteLatency, m.requests, m.requestLatency)
	return m
}

func (m *Metrics) ObserveAssessment(test string, source assessment.Source) {
	m.assessments.WithLabelValues(test, string(source)).Inc()
}

func (m *Metrics) ObserveRemoteFailure(test string) {
	m.remoteFailures.WithLabelValues(test).Inc()
}

func (m *Metrics) ObserveRemoteLatency(test, outcome string, d time.Duration) {
	m.remoteLatency.WithLabelValues(test, outcome).Observe(d.Seconds())
}

// ObserveRequest records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
