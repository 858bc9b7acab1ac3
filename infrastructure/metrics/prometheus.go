// Package metrics provides the Prometheus-backed implementation of the
// pipeline's metrics collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/modelarena/arena/internal/ports"
)

// PrometheusCollector implements ports.MetricsCollector using Prometheus.
// It covers the LLM transport metrics emitted by the client middleware and
// the pipeline-level metrics emitted by the orchestrator and the event
// processor.
type PrometheusCollector struct {
	llmLatency    *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	stateGauges   *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector registered against the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use a
// fresh registry to avoid duplicate registration.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_latency_seconds",
				Help:    "Latency of individual LLM requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total tokens consumed across LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of pipeline stages such as planning and evaluation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Total pipeline operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		stateGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_state",
				Help: "Current pipeline state values such as queue depth.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records a stage duration histogram observation.
func (pc *PrometheusCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pc.stageLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments a counter, routing LLM transport metrics to their
// dedicated vectors and everything else to the pipeline operations counter.
func (pc *PrometheusCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_requests_total":
		pc.llmRequests.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Add(value)
	case "llm_tokens_total":
		pc.llmTokens.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	default:
		pc.operations.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordGauge sets a pipeline state gauge.
func (pc *PrometheusCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	pc.stateGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a histogram observation, routing LLM latency to
// its dedicated vector and everything else to the stage histogram.
func (pc *PrometheusCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	if metric == "llm_latency_seconds" {
		pc.llmLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Observe(value)
		return
	}
	pc.stageLatency.WithLabelValues(metric).Observe(value)
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}
