package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// OrchestratorConfig controls memory retrieval during context-aware runs.
type OrchestratorConfig struct {
	// RetrievalLimit caps the chunks retrieved per model.
	RetrievalLimit int `json:"retrieval_limit" yaml:"retrieval_limit" validate:"min=1"`

	// MinRelevance is the cosine similarity threshold below which retrieved
	// chunks are discarded.
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance" validate:"min=0,max=1"`
}

// Orchestrator drives the synchronous phase of a comparison run: request
// validation, id assignment, optional memory reflection, the planner
// fan-out, persistence, and the hand-off to asynchronous evaluation.
type Orchestrator struct {
	store     ports.SessionStore
	memory    ports.MemoryStore
	planner   ports.Planner
	reflector ports.Reflector
	embedder  ports.EmbeddingClient
	bus       ports.EventBus
	config    OrchestratorConfig
	collector ports.MetricsCollector
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewOrchestrator wires the synchronous pipeline. The collector may be nil.
func NewOrchestrator(
	store ports.SessionStore,
	memory ports.MemoryStore,
	planner ports.Planner,
	reflector ports.Reflector,
	embedder ports.EmbeddingClient,
	bus ports.EventBus,
	config OrchestratorConfig,
	collector ports.MetricsCollector,
	logger *slog.Logger,
) *Orchestrator {
	if config.RetrievalLimit <= 0 {
		config.RetrievalLimit = DefaultRetrievalLimit
	}
	if config.MinRelevance <= 0 {
		config.MinRelevance = DefaultMinRelevance
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:     store,
		memory:    memory,
		planner:   planner,
		reflector: reflector,
		embedder:  embedder,
		bus:       bus,
		config:    config,
		collector: collector,
		tracer:    otel.Tracer("arena/orchestrator"),
		logger:    logger.With("component", "orchestrator"),
	}
}

// RunComparison executes one comparison run: it validates the request,
// assigns identifiers, optionally augments context from memory, fans the
// prompt out to the requested models, persists the completions, and emits
// the evaluation event. It returns the completions in request order; scores
// arrive later through polling.
//
// A total planner failure still returns a result: every completion carries
// its error marker and the asynchronous phase proceeds. Only validation and
// persistence failures surface as errors.
func (o *Orchestrator) RunComparison(ctx context.Context, req domain.ComparisonRequest) (domain.ComparisonResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ComparisonResult{}, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = newThreadID(sessionID)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.run_comparison",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("thread_id", threadID),
			attribute.Int("model_count", len(req.ModelIDs)),
			attribute.String("use_case", string(req.UseCase)),
		))
	defer span.End()
	start := time.Now()

	if err := o.store.CreateSession(ctx, domain.Session{ID: sessionID, CreatedAt: time.Now().UTC()}); err != nil {
		return domain.ComparisonResult{}, err
	}
	thread := domain.Thread{
		ID:           threadID,
		SessionID:    sessionID,
		Prompt:       req.Prompt,
		Context:      req.Context,
		SystemPrompt: req.SystemPrompt,
		UseCase:      useCaseOrDefault(req.UseCase),
		State:        domain.ThreadCreated,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.CreateThread(ctx, thread); err != nil {
		return domain.ComparisonResult{}, err
	}

	effectiveContext := req.Context
	if req.ContextAware() {
		effectiveContext = o.augmentContext(ctx, sessionID, threadID, req)
	}

	prompt := req.Prompt
	if req.ContextAware() {
		prompt = effectiveContext + "\n\n" + req.Prompt
	}

	completions := o.planner.Plan(ctx, prompt, req.SystemPrompt, req.ModelIDs)

	for _, completion := range completions {
		if err := o.store.PutCompletion(ctx, threadID, completion); err != nil {
			return domain.ComparisonResult{}, o.failThread(ctx, threadID, err)
		}
	}
	o.writeMemory(ctx, threadID, req.Prompt, completions)

	if err := o.store.TransitionThread(ctx, threadID, domain.ThreadDispatched); err != nil {
		return domain.ComparisonResult{}, o.failThread(ctx, threadID, err)
	}
	o.recordMessage(ctx, sessionID, threadID, domain.MessageCompletionReady)

	reference := prompt
	if req.ContextAware() {
		reference = effectiveContext
	}
	event := domain.EvaluationEvent{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ThreadID:    threadID,
		Query:       req.Prompt,
		Reference:   reference,
		Completions: completions,
		EmittedAt:   time.Now().UTC(),
	}
	if err := o.bus.Publish(ctx, event); err != nil {
		return domain.ComparisonResult{}, o.failThread(ctx, threadID, err)
	}

	if err := o.store.TransitionThread(ctx, threadID, domain.ThreadAwaitingEvaluation); err != nil {
		return domain.ComparisonResult{}, o.failThread(ctx, threadID, err)
	}

	if o.collector != nil {
		o.collector.RecordCounter("comparisons_total", 1, nil)
		o.collector.RecordLatency("comparison", time.Since(start), nil)
	}

	return domain.ComparisonResult{
		SessionID:   sessionID,
		ThreadID:    threadID,
		Completions: completions,
	}, nil
}

// GetResults returns the polling view of one thread.
func (o *Orchestrator) GetResults(ctx context.Context, sessionID, threadID string) (domain.ThreadResults, error) {
	return o.store.GetThreadResults(ctx, sessionID, threadID)
}

// ListSessionResults returns the polling view of every thread in a session,
// oldest thread first.
func (o *Orchestrator) ListSessionResults(ctx context.Context, sessionID string) ([]domain.ThreadResults, error) {
	threads, err := o.store.ListThreads(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ThreadResults, 0, len(threads))
	for _, thread := range threads {
		r, err := o.store.GetThreadResults(ctx, sessionID, thread.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// augmentContext runs the reflection step for a context-aware request.
// Memory enrichment is best-effort: on any failure or when the thread has
// no history yet, the request context is used unchanged.
func (o *Orchestrator) augmentContext(ctx context.Context, sessionID, threadID string, req domain.ComparisonRequest) string {
	hasHistory, err := o.memory.HasHistory(ctx, threadID)
	if err != nil {
		o.logger.WarnContext(ctx, "memory history check failed", "thread_id", threadID, "error", err)
		return req.Context
	}
	if !hasHistory {
		return req.Context
	}

	o.recordMessage(ctx, sessionID, threadID, domain.MessageContextRequest)

	var combined []domain.MemoryChunk
	for _, modelID := range req.ModelIDs {
		start := time.Now()
		chunks, err := o.reflector.RetrieveContext(ctx, modelID, threadID, req.Prompt,
			o.config.RetrievalLimit, o.config.MinRelevance)
		if err != nil {
			o.logger.WarnContext(ctx, "memory retrieval failed",
				"model_id", modelID, "thread_id", threadID, "error", err)
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		reflection := domain.Reflection{
			ModelID:      modelID,
			ThreadID:     threadID,
			ContextBlock: RenderContextBlock(chunks),
			Chunks:       chunks,
			Duration:     time.Since(start),
			CreatedAt:    time.Now().UTC(),
		}
		if err := o.store.PutReflection(ctx, sessionID, reflection); err != nil {
			o.logger.WarnContext(ctx, "reflection persistence failed",
				"model_id", modelID, "thread_id", threadID, "error", err)
		}
		combined = append(combined, chunks...)
	}

	block := RenderContextBlock(combined)
	if block == "" {
		return req.Context
	}
	return req.Context + "\n\n" + block
}

// writeMemory appends the user prompt and each successful completion to the
// per-model memory namespaces. Failures are logged, never fatal: memory is
// an enrichment, not a system of record.
func (o *Orchestrator) writeMemory(ctx context.Context, threadID, prompt string, completions []domain.ModelCompletion) {
	promptVector, err := o.embedder.Embed(ctx, prompt)
	if err != nil {
		o.logger.WarnContext(ctx, "prompt embedding failed", "thread_id", threadID, "error", err)
		promptVector = nil
	}

	now := time.Now().UTC()
	for _, completion := range completions {
		if completion.Failed() {
			continue
		}

		userChunk := domain.MemoryChunk{
			ModelID:    completion.ModelID,
			ThreadID:   threadID,
			Role:       domain.RoleUser,
			Content:    prompt,
			Embedding:  promptVector,
			TokenCount: estimateTokens(prompt),
			CreatedAt:  now,
		}
		if err := o.memory.Append(ctx, userChunk); err != nil {
			o.logger.WarnContext(ctx, "memory append failed",
				"model_id", completion.ModelID, "role", domain.RoleUser, "error", err)
			continue
		}

		contentVector, err := o.embedder.Embed(ctx, completion.Content)
		if err != nil {
			o.logger.WarnContext(ctx, "completion embedding failed",
				"model_id", completion.ModelID, "error", err)
			contentVector = nil
		}
		assistantChunk := domain.MemoryChunk{
			ModelID:    completion.ModelID,
			ThreadID:   threadID,
			Role:       domain.RoleAssistant,
			Content:    completion.Content,
			Embedding:  contentVector,
			TokenCount: estimateTokens(completion.Content),
			CreatedAt:  now,
		}
		if err := o.memory.Append(ctx, assistantChunk); err != nil {
			o.logger.WarnContext(ctx, "memory append failed",
				"model_id", completion.ModelID, "role", domain.RoleAssistant, "error", err)
		}
	}
}

// failThread moves the thread to the Failed terminal state after an
// unrecoverable persistence error, preserving the original error.
func (o *Orchestrator) failThread(ctx context.Context, threadID string, cause error) error {
	if err := o.store.TransitionThread(ctx, threadID, domain.ThreadFailed); err != nil {
		o.logger.ErrorContext(ctx, "failed to mark thread failed", "thread_id", threadID, "error", err)
	}
	return fmt.Errorf("thread %s failed: %w", threadID, cause)
}

func (o *Orchestrator) recordMessage(ctx context.Context, sessionID, threadID string, msgType domain.MessageType) {
	_, err := o.store.RecordMessage(ctx, domain.Message{
		SessionID: sessionID,
		ThreadID:  threadID,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		o.logger.WarnContext(ctx, "protocol message not recorded",
			"thread_id", threadID, "type", msgType, "error", err)
	}
}

// newThreadID derives a thread id from the first eight characters of the
// session id plus a random suffix.
func newThreadID(sessionID string) string {
	prefix := sessionID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return prefix + "-" + suffix
}

func useCaseOrDefault(uc domain.UseCase) domain.UseCase {
	if uc == "" {
		return domain.UseCaseDirect
	}
	return uc
}

func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
