package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// EvaluationProcessor consumes evaluation events and runs the asynchronous
// scoring phase: quantitative metrics and the qualitative judge for every
// completion, persisted incrementally so polling sees monotonic progress.
//
// Delivery is at-least-once, so every step is idempotent: attempts are
// claimed per (thread, event, attempt), score writes are upserts, and a
// thread that is already fully scored or terminal is skipped.
type EvaluationProcessor struct {
	store     ports.SessionStore
	evaluator ports.Evaluator
	judge     ports.Judge
	collector ports.MetricsCollector
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewEvaluationProcessor wires the asynchronous scoring phase. The
// collector may be nil.
func NewEvaluationProcessor(
	store ports.SessionStore,
	evaluator ports.Evaluator,
	judge ports.Judge,
	collector ports.MetricsCollector,
	logger *slog.Logger,
) *EvaluationProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluationProcessor{
		store:     store,
		evaluator: evaluator,
		judge:     judge,
		collector: collector,
		tracer:    otel.Tracer("arena/processor"),
		logger:    logger.With("component", "event_processor"),
	}
}

// HandleEvent processes one delivery of an evaluation event. A returned
// error requests redelivery; nil acknowledges the event.
func (p *EvaluationProcessor) HandleEvent(ctx context.Context, event domain.EvaluationEvent) error {
	ctx, span := p.tracer.Start(ctx, "processor.handle_event",
		trace.WithAttributes(
			attribute.String("event_id", event.ID),
			attribute.String("thread_id", event.ThreadID),
			attribute.Int("attempt", event.Attempt),
		))
	defer span.End()
	start := time.Now()

	thread, err := p.store.GetThread(ctx, event.ThreadID)
	if err != nil {
		return err
	}
	if thread.State.Terminal() {
		p.logger.InfoContext(ctx, "skipping event for terminal thread",
			"thread_id", event.ThreadID, "state", thread.State)
		return nil
	}

	claimed, err := p.store.BeginEventAttempt(ctx, event.ThreadID, event.ID, event.Attempt)
	if err != nil {
		return err
	}
	if !claimed {
		p.logger.InfoContext(ctx, "duplicate event delivery ignored",
			"event_id", event.ID, "thread_id", event.ThreadID, "attempt", event.Attempt)
		return nil
	}

	scored, err := p.store.FullyScored(ctx, event.ThreadID)
	if err != nil {
		return err
	}
	if scored {
		return p.finalize(ctx, event)
	}

	// The first score write moves the thread into PartiallyEvaluated. On a
	// redelivery the thread may already be there.
	if err := p.store.TransitionThread(ctx, event.ThreadID, domain.ThreadPartiallyEvaluated); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			return err
		}
	}

	var g errgroup.Group
	for _, completion := range event.Completions {
		g.Go(func() error {
			return p.scoreCompletion(ctx, event, completion)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if p.collector != nil {
		p.collector.RecordLatency("evaluation", time.Since(start), nil)
		p.collector.RecordCounter("evaluation_events_total", 1, map[string]string{"status": "processed"})
	}
	return p.finalize(ctx, event)
}

// scoreCompletion computes and persists both score families for one
// completion. Failed completions receive error-marked zero results so the
// thread can still reach the Evaluated state.
func (p *EvaluationProcessor) scoreCompletion(ctx context.Context, event domain.EvaluationEvent, completion domain.ModelCompletion) error {
	if completion.Failed() {
		evalResult := domain.EvaluationResult{
			ModelID: completion.ModelID,
			Error:   completion.Error,
		}
		if err := p.store.PutEvaluationResult(ctx, event.ThreadID, evalResult); err != nil {
			return err
		}
		judgeResult := domain.JudgeResult{
			ModelID: completion.ModelID,
			Error:   completion.Error,
		}
		return p.store.PutJudgeResult(ctx, event.ThreadID, judgeResult)
	}

	evalResult := p.evaluator.Evaluate(ctx, event.Reference, completion.Content)
	evalResult.ModelID = completion.ModelID
	evalResult.TokensPerSecond = tokensPerSecond(completion)
	if err := p.store.PutEvaluationResult(ctx, event.ThreadID, evalResult); err != nil {
		return err
	}

	judgeResult := p.judge.Judge(ctx, event.Query, completion.Content)
	judgeResult.ModelID = completion.ModelID
	return p.store.PutJudgeResult(ctx, event.ThreadID, judgeResult)
}

// finalize moves the thread to Evaluated and records the evaluation-ready
// protocol message.
func (p *EvaluationProcessor) finalize(ctx context.Context, event domain.EvaluationEvent) error {
	if err := p.store.TransitionThread(ctx, event.ThreadID, domain.ThreadEvaluated); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			return err
		}
	}

	_, err := p.store.RecordMessage(ctx, domain.Message{
		SessionID: event.SessionID,
		ThreadID:  event.ThreadID,
		Type:      domain.MessageEvaluationReady,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func tokensPerSecond(completion domain.ModelCompletion) float64 {
	seconds := completion.Latency.Seconds()
	if seconds <= 0 || completion.Tokens.Completion <= 0 {
		return 0
	}
	return float64(completion.Tokens.Completion) / seconds
}
