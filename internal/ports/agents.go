package ports

import (
	"context"
	"time"

	"github.com/modelarena/arena/internal/domain"
)

// Planner fans a single prompt out to a set of model backends concurrently
// and collects completions with per-call metadata.
type Planner interface {
	// Plan issues one completion call per model id, each with an
	// independent timeout. Failures are isolated: a failing model yields
	// an error-marked completion while the others proceed. The returned
	// slice preserves the request order of modelIDs.
	Plan(ctx context.Context, prompt, systemPrompt string, modelIDs []string) []domain.ModelCompletion
}

// Evaluator computes quantitative similarity scores for one candidate text
// against a reference.
type Evaluator interface {
	// Evaluate never fails; degenerate inputs produce defined edge scores.
	Evaluate(ctx context.Context, reference, candidate string) domain.EvaluationResult
}

// Judge produces qualitative rubric scores for one candidate response.
type Judge interface {
	// Judge asks the judge model to score the candidate. A parse failure
	// is recorded in the result, not returned as an error.
	Judge(ctx context.Context, query, candidate string) domain.JudgeResult
}

// Reflector retrieves semantic memory to enrich a model's prompting context.
type Reflector interface {
	// RetrieveContext returns up to limit chunks from the model's memory
	// namespace with relevance of at least minRelevance, ordered by
	// descending relevance.
	RetrieveContext(ctx context.Context, modelID, threadID, query string, limit int, minRelevance float64) ([]domain.MemoryChunk, error)
}

// EventHandler processes one delivery of an evaluation event.
type EventHandler func(ctx context.Context, event domain.EvaluationEvent) error

// EventBus is the at-least-once channel between the synchronous request
// path and the asynchronous evaluation phase. Handlers must be idempotent:
// the bus redelivers on failure with an incremented attempt counter and
// may deliver the same event more than once.
type EventBus interface {
	// Publish enqueues an event for asynchronous processing. It does not
	// wait for the event to be handled.
	Publish(ctx context.Context, event domain.EvaluationEvent) error
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations integrate with observability platforms such as
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
