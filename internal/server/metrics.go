package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/records/internal/page"
)

// Metrics is the Prometheus metric set of a server. Each Metrics owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	recordsCreated  prometheus.Counter
	recordsDeleted  prometheus.Counter
	payloadUpdates  prometheus.Counter
	publishFailures prometheus.Counter
	listDuration    prometheus.Histogram
	listErrors      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// NewMetrics registers the server's metrics plus the Go runtime and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "records",
			Name:      "created_total",
			Help:      "Records created.",
		}),
		recordsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "records",
			Name:      "deleted_total",
			Help:      "Records deleted.",
		}),
		payloadUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "records",
			Name:      "payload_updates_total",
			Help:      "Record payloads replaced.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "records",
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be published.",
		}),
		listDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "records",
			Name:      "list_duration_seconds",
			Help:      "Time to fetch one page of records, count included.",
			Buckets:   prometheus.DefBuckets,
		}),
		listErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "records",
			Name:      "list_errors_total",
			Help:      "Failed page fetches by cause.",
		}, []string{"cause"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "records",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recordsCreated,
		m.recordsDeleted,
		m.payloadUpdates,
		m.publishFailures,
		m.listDuration,
		m.listErrors,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeList(d time.Duration, err error) {
	m.listDuration.Observe(d.Seconds())
	if err == nil {
		return
	}
	var rowErr *page.RowError
	switch {
	case errors.Is(err, page.ErrInvalidParameter):
		m.listErrors.WithLabelValues("invalid_parameter").Inc()
	case errors.As(err, &rowErr):
		m.listErrors.WithLabelValues("row").Inc()
	default:
		m.listErrors.WithLabelValues("store").Inc()
	}
}
