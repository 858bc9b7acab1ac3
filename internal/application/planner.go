// Package application wires the agent services that implement the
// comparison pipeline: the planner fan-out, reflection, the orchestrator
// for the synchronous phase, and the event processor for the asynchronous
// evaluation phase. Everything here talks to the outside world through
// ports.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// Planner defaults.
const (
	DefaultModelTimeout  = 60 * time.Second
	DefaultMaxConcurrent = 8
)

// thinkTagPattern matches reasoning traces some models wrap in think-tags.
// They are scrubbed before completions are stored or scored.
var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ScrubThinkTags removes think-tag blocks and trims surrounding whitespace.
func ScrubThinkTags(text string) string {
	return strings.TrimSpace(thinkTagPattern.ReplaceAllString(text, ""))
}

// PlannerConfig controls the concurrent fan-out.
type PlannerConfig struct {
	// ModelTimeout bounds each model call independently. One slow model
	// never stalls the batch.
	ModelTimeout time.Duration `json:"model_timeout" yaml:"model_timeout"`

	// MaxConcurrent bounds in-flight model calls.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" validate:"min=1"`
}

// PlannerService fans a prompt out to the requested models concurrently.
// Failures are isolated per model: a failing call yields an error-marked
// completion in its request-order slot while the others proceed.
type PlannerService struct {
	resolver ports.ClientResolver
	config   PlannerConfig
	tracer   trace.Tracer
	logger   *slog.Logger
}

var _ ports.Planner = (*PlannerService)(nil)

// NewPlannerService creates a planner. Zero config fields fall back to
// package defaults.
func NewPlannerService(resolver ports.ClientResolver, config PlannerConfig, logger *slog.Logger) *PlannerService {
	if config.ModelTimeout <= 0 {
		config.ModelTimeout = DefaultModelTimeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PlannerService{
		resolver: resolver,
		config:   config,
		tracer:   otel.Tracer("arena/planner"),
		logger:   logger.With("component", "planner"),
	}
}

// Plan issues one completion call per model id concurrently and returns the
// completions in request order. It never returns an error; per-model
// failures are recorded on the completions themselves.
func (p *PlannerService) Plan(ctx context.Context, prompt, systemPrompt string, modelIDs []string) []domain.ModelCompletion {
	ctx, span := p.tracer.Start(ctx, "planner.plan",
		trace.WithAttributes(attribute.Int("model_count", len(modelIDs))))
	defer span.End()

	completions := make([]domain.ModelCompletion, len(modelIDs))

	var g errgroup.Group
	g.SetLimit(p.config.MaxConcurrent)
	for i, modelID := range modelIDs {
		g.Go(func() error {
			completions[i] = p.invoke(ctx, modelID, prompt, systemPrompt)
			return nil
		})
	}
	// Goroutines only write their own slot and never return errors.
	_ = g.Wait()

	return completions
}

func (p *PlannerService) invoke(ctx context.Context, modelID, prompt, systemPrompt string) domain.ModelCompletion {
	client, err := p.resolver.Resolve(modelID)
	if err != nil {
		llmErr := ports.NewLLMError(modelID, "resolve", err)
		p.logger.WarnContext(ctx, "model resolution failed", "model_id", modelID, "error", llmErr)
		return domain.ModelCompletion{ModelID: modelID, Error: llmErr.Error()}
	}

	options := map[string]any{}
	if systemPrompt != "" {
		options["system"] = systemPrompt
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.ModelTimeout)
	defer cancel()

	start := time.Now()
	content, tokensIn, tokensOut, err := client.CompleteWithUsage(callCtx, prompt, options)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ports.ErrTimeout, err)
		}
		llmErr := ports.NewLLMError(modelID, "complete", err)
		p.logger.WarnContext(ctx, "model call failed",
			"model_id", modelID, "latency", latency,
			"retryable", llmErr.IsRetryable(), "error", llmErr)
		return domain.ModelCompletion{ModelID: modelID, Latency: latency, Error: llmErr.Error()}
	}

	return domain.ModelCompletion{
		ModelID: modelID,
		Content: ScrubThinkTags(content),
		Latency: latency,
		Tokens: domain.TokenUsage{
			Prompt:     tokensIn,
			Completion: tokensOut,
			Total:      tokensIn + tokensOut,
		},
	}
}
