// Package metrics provides Prometheus metrics export for command dispatch.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orchestra"

// PrometheusExporter exports dispatch and agent metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Dispatch metrics
	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	inflight        prometheus.Gauge

	// Agent metrics
	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	agentRuns    *prometheus.CounterVec
	agentLatency prometheus.Histogram
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Total number of dispatched commands",
		},
		[]string{"source", "status"},
	)

	e.dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "End-to-end dispatch latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"source"},
	)

	e.inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "background_inflight",
			Help:      "Number of background dispatches currently running",
		},
	)

	e.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls made by the agent",
		},
		[]string{"tool_name", "status"},
	)

	e.toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_latency_seconds",
			Help:      "Tool call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tool_name"},
	)

	e.agentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total number of agent resolutions",
		},
		[]string{"status"},
	)

	e.agentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "latency_seconds",
			Help:      "Agent resolution latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	registry.MustRegister(
		e.dispatchTotal,
		e.dispatchLatency,
		e.inflight,
		e.toolCalls,
		e.toolLatency,
		e.agentRuns,
		e.agentLatency,
	)

	return e
}

// RecordDispatch records one completed dispatch.
func (e *PrometheusExporter) RecordDispatch(source, status string, latency time.Duration) {
	e.dispatchTotal.WithLabelValues(source, status).Inc()
	e.dispatchLatency.WithLabelValues(source).Observe(latency.Seconds())
}

// AddInflight adjusts the background dispatch gauge by delta.
func (e *PrometheusExporter) AddInflight(delta int) {
	e.inflight.Add(float64(delta))
}

// RecordToolCall records one agent tool invocation.
func (e *PrometheusExporter) RecordToolCall(tool, status string, latency time.Duration) {
	e.toolCalls.WithLabelValues(tool, status).Inc()
	e.toolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordAgentRun records one agent resolution.
func (e *PrometheusExporter) RecordAgentRun(status string, latency time.Duration) {
	e.agentRuns.WithLabelValues(status).Inc()
	e.agentLatency.Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
