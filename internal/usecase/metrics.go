package usecase

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heritagelens/vision-relay/internal/apperr"
)

// Metrics holds the Prometheus collectors for the analysis flow.
// A nil *Metrics records nothing.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	labelsReturned   prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates the analysis metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_analyze_requests_total",
				Help: "Total number of analyze requests by outcome",
			},
			[]string{"outcome"},
		),
		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_rejections_total",
				Help: "Total number of analyze requests that ended in an error, by kind",
			},
			[]string{"kind"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_provider_duration_seconds",
				Help:    "Latency of label detection calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		labelsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_labels_returned",
				Help:    "Number of labels returned per successful analysis",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.rejectionsTotal,
		m.providerDuration,
		m.labelsReturned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRejection counts a request that failed with a client-facing error.
func (m *Metrics) RecordRejection(kind apperr.Kind) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(kind.String()).Inc()
	m.requestsTotal.WithLabelValues("rejected").Inc()
}

func (m *Metrics) recordProviderCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) recordSuccess(labels int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues("success").Inc()
	m.labelsReturned.Observe(float64(labels))
}

func (m *Metrics) recordFailure() {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues("failed").Inc()
	m.rejectionsTotal.WithLabelValues(apperr.ProcessingFailed.String()).Inc()
}
