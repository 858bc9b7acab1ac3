package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounterRoutesLLMMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)

	labels := map[string]string{"provider": "openai", "model": "gpt-4o", "status": "success"}
	collector.RecordCounter("llm_requests_total", 1, labels)
	collector.RecordCounter("llm_requests_total", 1, labels)

	got := testutil.ToFloat64(collector.llmRequests.WithLabelValues("openai", "gpt-4o", "success"))
	assert.Equal(t, 2.0, got)
}

func TestRecordCounterTokenTypes(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)

	collector.RecordCounter("llm_tokens_total", 120, map[string]string{
		"provider": "anthropic", "model": "claude-3-5-sonnet-20241022", "token_type": "input",
	})
	collector.RecordCounter("llm_tokens_total", 80, map[string]string{
		"provider": "anthropic", "model": "claude-3-5-sonnet-20241022", "token_type": "output",
	})

	input := testutil.ToFloat64(collector.llmTokens.WithLabelValues("anthropic", "claude-3-5-sonnet-20241022", "input"))
	output := testutil.ToFloat64(collector.llmTokens.WithLabelValues("anthropic", "claude-3-5-sonnet-20241022", "output"))
	assert.Equal(t, 120.0, input)
	assert.Equal(t, 80.0, output)
}

func TestRecordCounterDefaultsToPipelineOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)

	collector.RecordCounter("comparisons_total", 1, nil)
	collector.RecordCounter("evaluation_events_total", 1, map[string]string{"status": "redelivered"})

	success := testutil.ToFloat64(collector.operations.WithLabelValues("comparisons_total", "success"))
	redelivered := testutil.ToFloat64(collector.operations.WithLabelValues("evaluation_events_total", "redelivered"))
	assert.Equal(t, 1.0, success)
	assert.Equal(t, 1.0, redelivered)
}

func TestRecordGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)

	collector.RecordGauge("event_queue_depth", 7, nil)
	got := testutil.ToFloat64(collector.stateGauges.WithLabelValues("event_queue_depth"))
	assert.Equal(t, 7.0, got)
}

func TestRecordLatencyAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)

	collector.RecordLatency("planning", 250*time.Millisecond, nil)
	collector.RecordHistogram("llm_latency_seconds", 0.42, map[string]string{
		"provider": "google", "model": "gemini-2.0-flash", "status": "success",
	})

	count := testutil.CollectAndCount(collector.stageLatency)
	require.Positive(t, count)
	count = testutil.CollectAndCount(collector.llmLatency)
	require.Positive(t, count)
}
