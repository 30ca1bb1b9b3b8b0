package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics of the service
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	PipelineResults  *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
	TopologyVersion  prometheus.Gauge

	// Collaborator metrics
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	// Event log metrics
	EventLogAppends *prometheus.CounterVec
	EventLogDropped prometheus.Counter
}

// NewCollector creates a collector with its own registry under namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PipelineResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_results_total",
				Help:      "Change events handled by the publication pipeline",
			},
			[]string{"action", "status", "reason"},
		),
		PipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Time spent handling one change event",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_queue_depth",
				Help:      "Change events waiting for the pipeline worker",
			},
		),
		TopologyVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "topology_version",
				Help:      "Last committed topology version",
			},
		),
		UpstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collaborator_calls_total",
				Help:      "Calls to external collaborators",
			},
			[]string{"collaborator", "outcome"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collaborator_call_duration_seconds",
				Help:      "Duration of calls to external collaborators",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collaborator"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		EventLogAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_log_appends_total",
				Help:      "Event log append attempts",
			},
			[]string{"status"},
		),
		EventLogDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_log_dropped_total",
				Help:      "Event names dropped because the append buffer was full",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.PipelineResults,
		c.PipelineDuration,
		c.QueueDepth,
		c.TopologyVersion,
		c.UpstreamCalls,
		c.UpstreamDuration,
		c.BreakerState,
		c.EventLogAppends,
		c.EventLogDropped,
	)

	return c
}

// RecordPipelineResult records one handled change event
func (c *Collector) RecordPipelineResult(action, status, reason string, duration time.Duration) {
	if c == nil {
		return
	}
	c.PipelineResults.WithLabelValues(action, status, reason).Inc()
	c.PipelineDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordCollaboratorCall records one outbound call
func (c *Collector) RecordCollaboratorCall(collaborator, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamCalls.WithLabelValues(collaborator, outcome).Inc()
	c.UpstreamDuration.WithLabelValues(collaborator).Observe(duration.Seconds())
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetBreakerState publishes the state of a circuit breaker
func (c *Collector) SetBreakerState(name string, state float64) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(name).Set(state)
}

// SetTopologyVersion publishes the last committed version
func (c *Collector) SetTopologyVersion(version int) {
	if c == nil {
		return
	}
	c.TopologyVersion.Set(float64(version))
}

// SetQueueDepth publishes the pipeline backlog
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(depth))
}

// RecordEventLogAppend counts an append attempt with its outcome
func (c *Collector) RecordEventLogAppend(status string) {
	if c == nil {
		return
	}
	c.EventLogAppends.WithLabelValues(status).Inc()
}

// RecordEventLogDrop counts a name dropped from a full append buffer
func (c *Collector) RecordEventLogDrop() {
	if c == nil {
		return
	}
	c.EventLogDropped.Inc()
}

// Handler serves the collector's metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
