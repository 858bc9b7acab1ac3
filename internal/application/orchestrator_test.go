package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelarena/arena/infrastructure/memory"
	"github.com/modelarena/arena/infrastructure/store"
	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
	"github.com/modelarena/arena/internal/testutils"
)

// stubPlanner returns canned completions and records the prompt it was
// called with.
type stubPlanner struct {
	mu          sync.Mutex
	prompts     []string
	completions func(modelIDs []string) []domain.ModelCompletion
}

func (p *stubPlanner) Plan(_ context.Context, prompt, _ string, modelIDs []string) []domain.ModelCompletion {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()
	if p.completions != nil {
		return p.completions(modelIDs)
	}
	out := make([]domain.ModelCompletion, len(modelIDs))
	for i, id := range modelIDs {
		out[i] = domain.ModelCompletion{
			ModelID: id,
			Content: "answer from " + id,
			Tokens:  domain.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
		}
	}
	return out
}

func (p *stubPlanner) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

// captureBus records published events without delivering them.
type captureBus struct {
	mu     sync.Mutex
	events []domain.EvaluationEvent
	err    error
}

func (b *captureBus) Publish(_ context.Context, event domain.EvaluationEvent) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) published() []domain.EvaluationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.EvaluationEvent(nil), b.events...)
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	store        *store.SQLiteStore
	memory       *memory.Store
	planner      *stubPlanner
	bus          *captureBus
	embedder     *testutils.MockEmbeddingClient
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	sessionStore, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sessionStore.Close() })

	memoryStore, err := memory.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { memoryStore.Close() })

	embedder := &testutils.MockEmbeddingClient{Vectors: map[string][]float32{}}
	planner := &stubPlanner{}
	bus := &captureBus{}
	reflector := NewReflectionService(memoryStore, embedder, nil)

	return &orchestratorFixture{
		orchestrator: NewOrchestrator(sessionStore, memoryStore, planner, reflector,
			embedder, bus, OrchestratorConfig{RetrievalLimit: 5, MinRelevance: 0.7}, nil, nil),
		store:    sessionStore,
		memory:   memoryStore,
		planner:  planner,
		bus:      bus,
		embedder: embedder,
	}
}

func TestRunComparisonRejectsInvalidRequest(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		ModelIDs: []string{"m1"},
	})
	assert.ErrorIs(t, err, domain.ErrEmptyPrompt)

	_, err = f.orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		Prompt:   "hello",
		ModelIDs: []string{"m1", "m1"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateModel)
}

func TestRunComparisonHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	result, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:   "What is 2+2?",
		ModelIDs: []string{"m1", "m2"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.ThreadID)
	require.Len(t, result.Completions, 2)
	assert.Equal(t, "m1", result.Completions[0].ModelID)
	assert.Equal(t, "m2", result.Completions[1].ModelID)

	// Generated thread ids embed a session prefix.
	prefix := result.SessionID[:8]
	assert.True(t, strings.HasPrefix(result.ThreadID, prefix+"-"))

	thread, err := f.store.GetThread(ctx, result.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadAwaitingEvaluation, thread.State)

	events := f.bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, result.ThreadID, events[0].ThreadID)
	assert.Equal(t, "What is 2+2?", events[0].Query)
	assert.Equal(t, "What is 2+2?", events[0].Reference, "direct runs score against the prompt")
	assert.Len(t, events[0].Completions, 2)
	assert.NotEmpty(t, events[0].ID)

	// The completion-ready protocol message was recorded exactly once.
	first, err := f.store.RecordMessage(ctx, domain.Message{
		SessionID: result.SessionID, ThreadID: result.ThreadID, Type: domain.MessageCompletionReady,
	})
	require.NoError(t, err)
	assert.False(t, first)

	// Successful completions were written through to memory.
	has, err := f.memory.HasHistory(ctx, result.ThreadID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRunComparisonHonorsClientIDs(t *testing.T) {
	f := newOrchestratorFixture(t)

	result, err := f.orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		Prompt:    "What is 2+2?",
		ModelIDs:  []string{"m1"},
		SessionID: "client-session",
		ThreadID:  "client-thread",
	})
	require.NoError(t, err)
	assert.Equal(t, "client-session", result.SessionID)
	assert.Equal(t, "client-thread", result.ThreadID)

	// A second run may reuse the session with a fresh thread.
	again, err := f.orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		Prompt:    "And 3+3?",
		ModelIDs:  []string{"m1"},
		SessionID: "client-session",
	})
	require.NoError(t, err)
	assert.Equal(t, "client-session", again.SessionID)
	assert.NotEqual(t, "client-thread", again.ThreadID)

	threads, err := f.store.ListThreads(context.Background(), "client-session")
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestRunComparisonSecondTurnOnSameThread(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	first, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:    "What is 2+2?",
		ModelIDs:  []string{"m1"},
		SessionID: "sess-1",
		ThreadID:  "thread-1",
	})
	require.NoError(t, err)

	second, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:    "And 3+3?",
		ModelIDs:  []string{"m1"},
		SessionID: "sess-1",
		ThreadID:  "thread-1",
	})
	require.NoError(t, err, "a second turn on an existing thread must not fail")
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.ThreadID, second.ThreadID)

	thread, err := f.store.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadAwaitingEvaluation, thread.State)
	assert.Equal(t, "And 3+3?", thread.Prompt)

	// The polling view holds the second turn's completions only.
	results, err := f.store.GetThreadResults(ctx, "sess-1", "thread-1")
	require.NoError(t, err)
	require.Len(t, results.Completions, 1)

	// Each turn emits its own evaluation event; the thread count does not grow.
	assert.Len(t, f.bus.published(), 2)
	threads, err := f.store.ListThreads(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestRunComparisonSecondTurnRetrievesFirstTurnMemory(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	// Pin the embeddings so the second turn's query matches the first
	// turn's stored chunks.
	f.embedder.Vectors["I love jazz. What should I listen to?"] = []float32{1, 0, 0}
	f.embedder.Vectors["answer from m1"] = []float32{1, 0, 0}
	f.embedder.Vectors["What should I queue up next?"] = []float32{1, 0, 0}

	_, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:    "I love jazz. What should I listen to?",
		ModelIDs:  []string{"m1"},
		Context:   "Pick some music.",
		UseCase:   domain.UseCaseContextAware,
		SessionID: "sess-1",
		ThreadID:  "thread-1",
	})
	require.NoError(t, err)
	assert.NotContains(t, f.planner.lastPrompt(), "[Memory]",
		"the first turn has no history to retrieve")

	result, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:    "What should I queue up next?",
		ModelIDs:  []string{"m1"},
		Context:   "Pick some music.",
		UseCase:   domain.UseCaseContextAware,
		SessionID: "sess-1",
		ThreadID:  "thread-1",
	})
	require.NoError(t, err)

	// The second turn's prompt carries the first turn's conversation.
	prompt := f.planner.lastPrompt()
	assert.Contains(t, prompt, "[Memory][1] I love jazz. What should I listen to?")
	assert.Contains(t, prompt, "answer from m1")

	results, err := f.store.GetThreadResults(ctx, result.SessionID, result.ThreadID)
	require.NoError(t, err)
	require.Len(t, results.Reflections, 1)
	assert.Contains(t, results.Reflections["m1"].ContextBlock, "I love jazz.")
}

func TestRunComparisonTotalPlannerFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.planner.completions = func(modelIDs []string) []domain.ModelCompletion {
		out := make([]domain.ModelCompletion, len(modelIDs))
		for i, id := range modelIDs {
			out[i] = domain.ModelCompletion{ModelID: id, Error: "backend down"}
		}
		return out
	}

	result, err := f.orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		Prompt:   "What is 2+2?",
		ModelIDs: []string{"m1", "m2"},
	})
	require.NoError(t, err, "a total planner failure is a partial result, not an error")
	require.Len(t, result.Completions, 2)
	for _, c := range result.Completions {
		assert.True(t, c.Failed())
	}

	// The asynchronous phase still runs so the thread can settle.
	assert.Len(t, f.bus.published(), 1)

	// Failed completions are not written to memory.
	has, err := f.memory.HasHistory(context.Background(), result.ThreadID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRunComparisonContextAwareWithoutHistory(t *testing.T) {
	f := newOrchestratorFixture(t)

	result, err := f.orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		Prompt:   "What should I listen to?",
		ModelIDs: []string{"m1"},
		Context:  "The user is at a dinner party.",
		UseCase:  domain.UseCaseContextAware,
	})
	require.NoError(t, err)

	// No history: the context is used as-is, prepended to the prompt.
	prompt := f.planner.lastPrompt()
	assert.True(t, strings.HasPrefix(prompt, "The user is at a dinner party."))
	assert.Contains(t, prompt, "What should I listen to?")
	assert.NotContains(t, prompt, "[Memory]")

	events := f.bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, "The user is at a dinner party.", events[0].Reference,
		"context-aware runs score against the context")

	results, err := f.store.GetThreadResults(context.Background(), result.SessionID, result.ThreadID)
	require.NoError(t, err)
	assert.Empty(t, results.Reflections)
}

func TestRunComparisonContextAwareWithHistory(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	// Pin the query embedding and seed a highly relevant chunk for m1 in
	// the reused thread.
	f.embedder.Vectors["What should I listen to?"] = []float32{1, 0, 0}
	require.NoError(t, f.memory.Append(ctx, domain.MemoryChunk{
		ModelID: "m1", ThreadID: "client-thread", Role: domain.RoleUser,
		Content: "The user loves jazz.", Embedding: []float32{1, 0, 0},
	}))

	result, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:    "What should I listen to?",
		ModelIDs:  []string{"m1"},
		Context:   "Pick some music.",
		UseCase:   domain.UseCaseContextAware,
		SessionID: "client-session",
		ThreadID:  "client-thread",
	})
	require.NoError(t, err)

	prompt := f.planner.lastPrompt()
	assert.Contains(t, prompt, "[Memory][1] The user loves jazz.")
	assert.True(t, strings.HasPrefix(prompt, "Pick some music."))

	results, err := f.store.GetThreadResults(ctx, result.SessionID, result.ThreadID)
	require.NoError(t, err)
	require.Len(t, results.Reflections, 1)
	reflection := results.Reflections["m1"]
	assert.Contains(t, reflection.ContextBlock, "The user loves jazz.")
	require.Len(t, reflection.Chunks, 1)
	assert.Greater(t, reflection.Chunks[0].Relevance, 0.9)

	// The context-request protocol message was recorded.
	first, err := f.store.RecordMessage(ctx, domain.Message{
		SessionID: result.SessionID, ThreadID: result.ThreadID, Type: domain.MessageContextRequest,
	})
	require.NoError(t, err)
	assert.False(t, first)
}

func TestRunComparisonIrrelevantMemorySkipsAugmentation(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.embedder.Vectors["What should I listen to?"] = []float32{1, 0, 0}
	// History exists but is orthogonal to the query, below the relevance
	// threshold.
	require.NoError(t, f.memory.Append(ctx, domain.MemoryChunk{
		ModelID: "m1", ThreadID: "client-thread", Role: domain.RoleUser,
		Content: "The user collects stamps.", Embedding: []float32{0, 1, 0},
	}))

	_, err := f.orchestrator.RunComparison(ctx, domain.ComparisonRequest{
		Prompt:    "What should I listen to?",
		ModelIDs:  []string{"m1"},
		Context:   "Pick some music.",
		UseCase:   domain.UseCaseContextAware,
		SessionID: "client-session",
		ThreadID:  "client-thread",
	})
	require.NoError(t, err)

	prompt := f.planner.lastPrompt()
	assert.NotContains(t, prompt, "[Memory]", "below-threshold retrieval leaves context unchanged")
}

// failingStore wraps the real store and fails a configured operation.
type failingStore struct {
	ports.SessionStore
	failPutCompletion bool
}

func (s *failingStore) PutCompletion(ctx context.Context, threadID string, c domain.ModelCompletion) error {
	if s.failPutCompletion {
		return errors.New("disk full")
	}
	return s.SessionStore.PutCompletion(ctx, threadID, c)
}

func TestRunComparisonPersistenceFailureFailsThread(t *testing.T) {
	f := newOrchestratorFixture(t)
	wrapped := &failingStore{SessionStore: f.store, failPutCompletion: true}
	orchestrator := NewOrchestrator(wrapped, f.memory, f.planner,
		NewReflectionService(f.memory, f.embedder, nil), f.embedder, f.bus,
		OrchestratorConfig{}, nil, nil)

	_, err := orchestrator.RunComparison(context.Background(), domain.ComparisonRequest{
		Prompt:    "What is 2+2?",
		ModelIDs:  []string{"m1"},
		SessionID: "sess-fail",
		ThreadID:  "thread-fail",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	thread, err := f.store.GetThread(context.Background(), "thread-fail")
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadFailed, thread.State)
}
