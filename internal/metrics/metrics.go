package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics on a private registry.
// All recording methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec

	Mutations           *prometheus.CounterVec
	ValidationSkips     *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	CollaboratorResults *prometheus.CounterVec
	Rotations           prometheus.Counter
	WhisperStreams      prometheus.Gauge
}

// NewCollector creates and registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Successful store mutations by operation",
		}, []string{"op"}),
		ValidationSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_validation_skips_total",
			Help:      "Mutations skipped because their preconditions were not met",
		}, []string{"op"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed reads and writes of the durable store",
		}, []string{"op"}),
		CollaboratorResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_results_total",
			Help:      "Suggestion service calls by operation and outcome",
		}, []string{"op", "outcome"}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "whisper_rotations_total",
			Help:      "Live whisper selections made by all samplers",
		}),
		WhisperStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "whisper_streams",
			Help:      "Open live whisper websocket streams",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.Mutations,
		c.ValidationSkips,
		c.PersistenceFailures,
		c.CollaboratorResults,
		c.Rotations,
		c.WhisperStreams,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Mutation(op string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(op).Inc()
}

func (c *Collector) Skip(op string) {
	if c == nil {
		return
	}
	c.ValidationSkips.WithLabelValues(op).Inc()
}

func (c *Collector) PersistenceFailure(op string) {
	if c == nil {
		return
	}
	c.PersistenceFailures.WithLabelValues(op).Inc()
}

func (c *Collector) Collaborator(op string, fallback bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	c.CollaboratorResults.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) Rotation() {
	if c == nil {
		return
	}
	c.Rotations.Inc()
}

func (c *Collector) StreamOpened() {
	if c == nil {
		return
	}
	c.WhisperStreams.Inc()
}

func (c *Collector) StreamClosed() {
	if c == nil {
		return
	}
	c.WhisperStreams.Dec()
}

func (c *Collector) Request(method, route, status string) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
}
