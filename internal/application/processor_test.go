package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelarena/arena/infrastructure/store"
	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// countingEvaluator returns fixed scores and counts invocations.
type countingEvaluator struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEvaluator) Evaluate(_ context.Context, reference, candidate string) domain.EvaluationResult {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if candidate == reference {
		return domain.EvaluationResult{BLEU: 1, ROUGE1: 1, ROUGEL: 1, CosineSimilarity: 1, LexicalSimilarity: 1, CombinedScore: 1}
	}
	return domain.EvaluationResult{BLEU: 0.5, ROUGE1: 0.6, ROUGEL: 0.55, CosineSimilarity: 0.8, LexicalSimilarity: 0.4, CombinedScore: 0.66}
}

func (e *countingEvaluator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// stubJudge returns fixed rubric scores.
type stubJudge struct{}

func (stubJudge) Judge(_ context.Context, _, candidate string) domain.JudgeResult {
	return domain.JudgeResult{
		Scores:  map[string]float64{"relevance": 9, "fluency": 8},
		Reasons: map[string]string{"relevance": "answers directly"},
		RawText: `{"scores": {"relevance": 9, "fluency": 8}}`,
	}
}

type processorFixture struct {
	processor *EvaluationProcessor
	store     *store.SQLiteStore
	evaluator *countingEvaluator
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	sessionStore, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sessionStore.Close() })

	evaluator := &countingEvaluator{}
	return &processorFixture{
		processor: NewEvaluationProcessor(sessionStore, evaluator, stubJudge{}, nil, nil),
		store:     sessionStore,
		evaluator: evaluator,
	}
}

// seedAwaitingThread creates a thread in AwaitingEvaluation with the given
// completions persisted, mirroring what the orchestrator leaves behind.
func seedAwaitingThread(t *testing.T, s *store.SQLiteStore, threadID string, completions []domain.ModelCompletion) domain.EvaluationEvent {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess-1"}))
	require.NoError(t, s.CreateThread(ctx, domain.Thread{
		ID: threadID, SessionID: "sess-1", Prompt: "What is 2+2?",
		UseCase: domain.UseCaseDirect, State: domain.ThreadCreated,
	}))
	for _, c := range completions {
		require.NoError(t, s.PutCompletion(ctx, threadID, c))
	}
	require.NoError(t, s.TransitionThread(ctx, threadID, domain.ThreadDispatched))
	require.NoError(t, s.TransitionThread(ctx, threadID, domain.ThreadAwaitingEvaluation))

	return domain.EvaluationEvent{
		ID:          "evt-1",
		SessionID:   "sess-1",
		ThreadID:    threadID,
		Query:       "What is 2+2?",
		Reference:   "What is 2+2?",
		Completions: completions,
		Attempt:     1,
	}
}

func TestHandleEventScoresAllCompletions(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	event := seedAwaitingThread(t, f.store, "thread-1", []domain.ModelCompletion{
		{ModelID: "m1", Content: "four", Latency: 2 * time.Second, Tokens: domain.TokenUsage{Completion: 50}},
		{ModelID: "m2", Content: "it is four"},
	})

	require.NoError(t, f.processor.HandleEvent(ctx, event))

	thread, err := f.store.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadEvaluated, thread.State)

	results, err := f.store.GetThreadResults(ctx, "sess-1", "thread-1")
	require.NoError(t, err)
	require.Len(t, results.Evaluations, 2)
	require.Len(t, results.Judgements, 2)

	m1 := results.Evaluations["m1"]
	assert.InDelta(t, 0.5, m1.BLEU, 1e-9)
	assert.InDelta(t, 25.0, m1.TokensPerSecond, 1e-9, "50 completion tokens over 2s")
	assert.Equal(t, 9.0, results.Judgements["m1"].Scores["relevance"])

	// The evaluation-ready protocol message was recorded.
	first, err := f.store.RecordMessage(ctx, domain.Message{
		SessionID: "sess-1", ThreadID: "thread-1", Type: domain.MessageEvaluationReady,
	})
	require.NoError(t, err)
	assert.False(t, first)
}

func TestHandleEventDuplicateAttemptIsNoOp(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	event := seedAwaitingThread(t, f.store, "thread-1", []domain.ModelCompletion{
		{ModelID: "m1", Content: "four"},
	})

	require.NoError(t, f.processor.HandleEvent(ctx, event))
	callsAfterFirst := f.evaluator.count()

	// The same delivery arrives again.
	require.NoError(t, f.processor.HandleEvent(ctx, event))
	assert.Equal(t, callsAfterFirst, f.evaluator.count(), "a claimed attempt is never re-scored")
}

func TestHandleEventRedeliveryOfScoredThread(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	event := seedAwaitingThread(t, f.store, "thread-1", []domain.ModelCompletion{
		{ModelID: "m1", Content: "four"},
	})
	require.NoError(t, f.processor.HandleEvent(ctx, event))

	// A redelivery with a later attempt finds the terminal thread and skips.
	event.Attempt = 2
	require.NoError(t, f.processor.HandleEvent(ctx, event))
	assert.Equal(t, 1, f.evaluator.count())
}

func TestHandleEventFailedCompletionGetsErrorMarkedScores(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	event := seedAwaitingThread(t, f.store, "thread-1", []domain.ModelCompletion{
		{ModelID: "m1", Content: "four"},
		{ModelID: "m2", Error: "model call failed"},
	})

	require.NoError(t, f.processor.HandleEvent(ctx, event))

	results, err := f.store.GetThreadResults(ctx, "sess-1", "thread-1")
	require.NoError(t, err)

	failed := results.Evaluations["m2"]
	assert.Equal(t, "model call failed", failed.Error)
	assert.Zero(t, failed.BLEU)
	assert.Zero(t, failed.CombinedScore)
	assert.Equal(t, "model call failed", results.Judgements["m2"].Error)

	// The thread still settles even with a failed completion.
	thread, err := f.store.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadEvaluated, thread.State)
}

// judgeFailingStore fails PutJudgeResult a configured number of times to
// simulate a mid-processing crash.
type judgeFailingStore struct {
	ports.SessionStore
	mu       sync.Mutex
	failures int
}

func (s *judgeFailingStore) PutJudgeResult(ctx context.Context, threadID string, r domain.JudgeResult) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("store unavailable")
	}
	s.mu.Unlock()
	return s.SessionStore.PutJudgeResult(ctx, threadID, r)
}

func TestHandleEventPartialFailureThenRedelivery(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	event := seedAwaitingThread(t, f.store, "thread-1", []domain.ModelCompletion{
		{ModelID: "m1", Content: "four"},
	})

	wrapped := &judgeFailingStore{SessionStore: f.store, failures: 1}
	processor := NewEvaluationProcessor(wrapped, f.evaluator, stubJudge{}, nil, nil)

	// First delivery persists the evaluation result but fails on the judge
	// write, requesting redelivery.
	err := processor.HandleEvent(ctx, event)
	require.Error(t, err)

	thread, err := f.store.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadPartiallyEvaluated, thread.State)

	results, err := f.store.GetThreadResults(ctx, "sess-1", "thread-1")
	require.NoError(t, err)
	assert.Len(t, results.Evaluations, 1, "partial progress is persisted")
	assert.Empty(t, results.Judgements)

	// The redelivery completes the thread.
	event.Attempt = 2
	require.NoError(t, processor.HandleEvent(ctx, event))

	thread, err = f.store.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadEvaluated, thread.State)

	results, err = f.store.GetThreadResults(ctx, "sess-1", "thread-1")
	require.NoError(t, err)
	assert.Len(t, results.Evaluations, 1)
	assert.Len(t, results.Judgements, 1)
}
