package ports

import (
	"context"

	"github.com/modelarena/arena/internal/domain"
)

// SessionStore persists comparison sessions, threads, and their accumulated
// results. The synchronous request path and the asynchronous event processor
// both write to it, so all writes are field-scoped and additive: completions
// are set-if-absent per (thread, model), results are idempotent upserts, and
// state changes go through the thread lifecycle state machine. Nothing is
// ever removed once written.
type SessionStore interface {
	// CreateSession persists a new session. Creating an already-existing
	// session id is a no-op so client-supplied ids can be reused.
	CreateSession(ctx context.Context, session domain.Session) error

	// CreateThread persists a new thread in state Created. Reusing an
	// existing thread id within the same session re-dispatches the thread
	// for its next turn: prompt and context are replaced, the state
	// resets to Created, and the prior turn's results are cleared.
	// Reusing a thread id under a different session is an error.
	CreateThread(ctx context.Context, thread domain.Thread) error

	// GetThread returns the thread, or ErrThreadNotFound.
	GetThread(ctx context.Context, threadID string) (domain.Thread, error)

	// TransitionThread moves the thread to the target lifecycle state.
	// Illegal transitions return domain.ErrInvalidTransition.
	TransitionThread(ctx context.Context, threadID string, to domain.ThreadState) error

	// PutCompletion records one model completion. The write is
	// set-if-absent keyed by (thread, model id); a second write for the
	// same pair leaves the first untouched.
	PutCompletion(ctx context.Context, threadID string, completion domain.ModelCompletion) error

	// PutEvaluationResult upserts the quantitative scores for one
	// (thread, model) pair. Safe to repeat with identical inputs.
	PutEvaluationResult(ctx context.Context, threadID string, result domain.EvaluationResult) error

	// PutJudgeResult upserts the qualitative scores for one
	// (thread, model) pair. Safe to repeat with identical inputs.
	PutJudgeResult(ctx context.Context, threadID string, result domain.JudgeResult) error

	// PutReflection records the memory retrieval performed for a model
	// before planning, keyed by (session, model id).
	PutReflection(ctx context.Context, sessionID string, reflection domain.Reflection) error

	// RecordMessage appends a protocol message. Messages are deduplicated
	// by (thread id, message type); the bool reports whether this call
	// was the first delivery.
	RecordMessage(ctx context.Context, msg domain.Message) (bool, error)

	// BeginEventAttempt claims one delivery of an evaluation event for
	// processing. It returns false when the same (thread, event, attempt)
	// was already claimed, so redeliveries never double-count.
	BeginEventAttempt(ctx context.Context, threadID, eventID string, attempt int) (bool, error)

	// FullyScored reports whether every completion of the thread has both
	// an evaluation and a judge result persisted.
	FullyScored(ctx context.Context, threadID string) (bool, error)

	// GetThreadResults returns the polling view of one thread: completions
	// plus whatever evaluation, judge, and reflection results exist.
	GetThreadResults(ctx context.Context, sessionID, threadID string) (domain.ThreadResults, error)

	// ListThreads returns all threads of a session, oldest first.
	ListThreads(ctx context.Context, sessionID string) ([]domain.Thread, error)
}

// MemoryStore is the append-only semantic memory of past conversation
// turns, searchable by vector similarity within a model's namespace.
type MemoryStore interface {
	// Append stores one conversation turn with its embedding.
	Append(ctx context.Context, chunk domain.MemoryChunk) error

	// Search returns up to limit chunks owned by modelID whose embedding
	// similarity against query is at least minRelevance, ordered by
	// descending relevance. A non-empty threadID restricts the search to
	// that thread.
	Search(ctx context.Context, modelID, threadID string, query []float32, limit int, minRelevance float64) ([]domain.MemoryChunk, error)

	// HasHistory reports whether any chunk exists for the thread.
	HasHistory(ctx context.Context, threadID string) (bool, error)
}
