// Package store implements the session store on SQLite. The synchronous
// request path and the asynchronous event processor both write here, so
// every write is field-scoped and additive: completions are set-if-absent,
// scores are idempotent upserts, and state changes go through the thread
// lifecycle state machine inside a transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS threads (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	prompt        TEXT NOT NULL,
	context       TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	use_case      TEXT NOT NULL,
	state         TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_threads_session ON threads(session_id);
CREATE TABLE IF NOT EXISTS completions (
	thread_id         TEXT NOT NULL,
	model_id          TEXT NOT NULL,
	content           TEXT NOT NULL,
	latency_ns        INTEGER NOT NULL DEFAULT 0,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT '',
	seq               INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (thread_id, model_id)
);
CREATE TABLE IF NOT EXISTS evaluations (
	thread_id         TEXT NOT NULL,
	model_id          TEXT NOT NULL,
	bleu              REAL NOT NULL DEFAULT 0,
	rouge_1           REAL NOT NULL DEFAULT 0,
	rouge_l           REAL NOT NULL DEFAULT 0,
	cosine            REAL NOT NULL DEFAULT 0,
	lexical           REAL NOT NULL DEFAULT 0,
	combined          REAL NOT NULL DEFAULT 0,
	tokens_per_second REAL NOT NULL DEFAULT 0,
	duration_ns       INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (thread_id, model_id)
);
CREATE TABLE IF NOT EXISTS judgements (
	thread_id   TEXT NOT NULL,
	model_id    TEXT NOT NULL,
	scores      TEXT NOT NULL DEFAULT '{}',
	reasons     TEXT NOT NULL DEFAULT '{}',
	raw_text    TEXT NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (thread_id, model_id)
);
CREATE TABLE IF NOT EXISTS reflections (
	session_id    TEXT NOT NULL,
	model_id      TEXT NOT NULL,
	thread_id     TEXT NOT NULL,
	context_block TEXT NOT NULL DEFAULT '',
	chunks        TEXT NOT NULL DEFAULT '[]',
	duration_ns   INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, model_id)
);
CREATE TABLE IF NOT EXISTS messages (
	thread_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	session_id TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (thread_id, type)
);
CREATE TABLE IF NOT EXISTS processed_events (
	thread_id  TEXT NOT NULL,
	event_id   TEXT NOT NULL,
	attempt    INTEGER NOT NULL,
	claimed_at TIMESTAMP NOT NULL,
	PRIMARY KEY (thread_id, event_id, attempt)
);
`

// SQLiteStore is the SQLite-backed SessionStore implementation.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.SessionStore = (*SQLiteStore)(nil)

// Open creates or opens the session database at the given path and ensures
// the schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY when the request path and event processor write together.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSession persists a new session. Creating an already-existing session
// id is a no-op so client-supplied ids can be reused across requests.
func (s *SQLiteStore) CreateSession(ctx context.Context, session domain.Session) error {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		session.ID, createdAt,
	)
	if err != nil {
		return ports.NewStoreError("session", session.ID, "create", err)
	}
	return nil
}

// CreateThread persists a new thread in state Created. A thread id that
// already exists within the same session is re-dispatched for the next
// conversation turn: the prompt and context are replaced, the state resets
// to Created, and the previous turn's completions, scores, and protocol
// messages are cleared. Memory chunks live in the memory store and survive
// re-dispatch, which is what lets reflection retrieve earlier turns.
// Reusing a thread id under a different session is an error.
func (s *SQLiteStore) CreateThread(ctx context.Context, thread domain.Thread) error {
	createdAt := thread.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	state := thread.State
	if state == "" {
		state = domain.ThreadCreated
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.NewStoreError("thread", thread.ID, "create", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT session_id FROM threads WHERE id = ?`, thread.ID).Scan(&owner)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO threads (id, session_id, prompt, context, system_prompt, use_case, state, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			thread.ID, thread.SessionID, thread.Prompt, thread.Context,
			thread.SystemPrompt, string(thread.UseCase), string(state), createdAt,
		)
		if err != nil {
			return ports.NewStoreError("thread", thread.ID, "create", err)
		}
	case err != nil:
		return ports.NewStoreError("thread", thread.ID, "create", err)
	case owner != thread.SessionID:
		return ports.NewStoreError("thread", thread.ID, "create",
			fmt.Errorf("thread already belongs to session %s", owner))
	default:
		if err := redispatchThread(ctx, tx, thread, string(state)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return ports.NewStoreError("thread", thread.ID, "create", err)
	}
	return nil
}

// redispatchThread resets an existing thread for its next turn inside the
// CreateThread transaction: new prompt and context, state back to Created,
// prior results and messages cleared so the new evaluation cycle starts
// clean. Processed-event claims are kept; old event ids never recur.
func redispatchThread(ctx context.Context, tx *sql.Tx, thread domain.Thread, state string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE threads SET prompt = ?, context = ?, system_prompt = ?, use_case = ?, state = ?
		 WHERE id = ?`,
		thread.Prompt, thread.Context, thread.SystemPrompt,
		string(thread.UseCase), state, thread.ID,
	)
	if err != nil {
		return ports.NewStoreError("thread", thread.ID, "redispatch", err)
	}

	for _, table := range []string{"completions", "evaluations", "judgements", "messages"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE thread_id = ?`, thread.ID); err != nil {
			return ports.NewStoreError("thread", thread.ID, "redispatch", err)
		}
	}
	return nil
}

// GetThread returns the thread, or ports.ErrThreadNotFound.
func (s *SQLiteStore) GetThread(ctx context.Context, threadID string) (domain.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, prompt, context, system_prompt, use_case, state, created_at
		 FROM threads WHERE id = ?`, threadID)
	return scanThread(row, threadID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner, threadID string) (domain.Thread, error) {
	var (
		thread  domain.Thread
		useCase string
		state   string
	)
	err := row.Scan(&thread.ID, &thread.SessionID, &thread.Prompt, &thread.Context,
		&thread.SystemPrompt, &useCase, &state, &thread.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Thread{}, fmt.Errorf("thread %s: %w", threadID, ports.ErrThreadNotFound)
	}
	if err != nil {
		return domain.Thread{}, ports.NewStoreError("thread", threadID, "get", err)
	}
	thread.UseCase = domain.UseCase(useCase)
	thread.State = domain.ThreadState(state)
	return thread, nil
}

// TransitionThread moves the thread to the target lifecycle state. The read
// and write happen in one transaction so concurrent transitions cannot skip
// states. Illegal transitions return domain.ErrInvalidTransition.
func (s *SQLiteStore) TransitionThread(ctx context.Context, threadID string, to domain.ThreadState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.NewStoreError("thread", threadID, "transition", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT state FROM threads WHERE id = ?`, threadID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("thread %s: %w", threadID, ports.ErrThreadNotFound)
	}
	if err != nil {
		return ports.NewStoreError("thread", threadID, "transition", err)
	}

	from := domain.ThreadState(current)
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE threads SET state = ? WHERE id = ?`, string(to), threadID); err != nil {
		return ports.NewStoreError("thread", threadID, "transition", err)
	}
	if err := tx.Commit(); err != nil {
		return ports.NewStoreError("thread", threadID, "transition", err)
	}
	return nil
}

// PutCompletion records one model completion. Set-if-absent keyed by
// (thread, model id): a second write for the same pair leaves the first
// untouched.
func (s *SQLiteStore) PutCompletion(ctx context.Context, threadID string, completion domain.ModelCompletion) error {
	var seq int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM completions WHERE thread_id = ?`, threadID,
	).Scan(&seq); err != nil {
		return ports.NewStoreError("completion", threadID, "put", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completions
		 (thread_id, model_id, content, latency_ns, prompt_tokens, completion_tokens, total_tokens, error, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		threadID, completion.ModelID, completion.Content, completion.Latency.Nanoseconds(),
		completion.Tokens.Prompt, completion.Tokens.Completion, completion.Tokens.Total,
		completion.Error, seq,
	)
	if err != nil {
		return ports.NewStoreError("completion", threadID, "put", err)
	}
	return nil
}

// PutEvaluationResult upserts the quantitative scores for one
// (thread, model) pair.
func (s *SQLiteStore) PutEvaluationResult(ctx context.Context, threadID string, result domain.EvaluationResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations
		 (thread_id, model_id, bleu, rouge_1, rouge_l, cosine, lexical, combined, tokens_per_second, duration_ns, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (thread_id, model_id) DO UPDATE SET
		   bleu = excluded.bleu, rouge_1 = excluded.rouge_1, rouge_l = excluded.rouge_l,
		   cosine = excluded.cosine, lexical = excluded.lexical, combined = excluded.combined,
		   tokens_per_second = excluded.tokens_per_second, duration_ns = excluded.duration_ns,
		   error = excluded.error`,
		threadID, result.ModelID, result.BLEU, result.ROUGE1, result.ROUGEL,
		result.CosineSimilarity, result.LexicalSimilarity, result.CombinedScore,
		result.TokensPerSecond, result.Duration.Nanoseconds(), result.Error,
	)
	if err != nil {
		return ports.NewStoreError("evaluation", threadID, "put", err)
	}
	return nil
}

// PutJudgeResult upserts the qualitative scores for one (thread, model)
// pair. Score and reason maps are stored as JSON.
func (s *SQLiteStore) PutJudgeResult(ctx context.Context, threadID string, result domain.JudgeResult) error {
	scores, err := json.Marshal(orEmptyScores(result.Scores))
	if err != nil {
		return ports.NewStoreError("judgement", threadID, "put", err)
	}
	reasons, err := json.Marshal(orEmptyReasons(result.Reasons))
	if err != nil {
		return ports.NewStoreError("judgement", threadID, "put", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO judgements (thread_id, model_id, scores, reasons, raw_text, duration_ns, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (thread_id, model_id) DO UPDATE SET
		   scores = excluded.scores, reasons = excluded.reasons, raw_text = excluded.raw_text,
		   duration_ns = excluded.duration_ns, error = excluded.error`,
		threadID, result.ModelID, string(scores), string(reasons),
		result.RawText, result.Duration.Nanoseconds(), result.Error,
	)
	if err != nil {
		return ports.NewStoreError("judgement", threadID, "put", err)
	}
	return nil
}

func orEmptyScores(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func orEmptyReasons(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// PutReflection records the memory retrieval performed for a model before
// planning, keyed by (session, model id).
func (s *SQLiteStore) PutReflection(ctx context.Context, sessionID string, reflection domain.Reflection) error {
	chunks, err := json.Marshal(reflection.Chunks)
	if err != nil {
		return ports.NewStoreError("reflection", sessionID, "put", err)
	}
	createdAt := reflection.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reflections (session_id, model_id, thread_id, context_block, chunks, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, model_id) DO UPDATE SET
		   thread_id = excluded.thread_id, context_block = excluded.context_block,
		   chunks = excluded.chunks, duration_ns = excluded.duration_ns,
		   created_at = excluded.created_at`,
		sessionID, reflection.ModelID, reflection.ThreadID, reflection.ContextBlock,
		string(chunks), reflection.Duration.Nanoseconds(), createdAt,
	)
	if err != nil {
		return ports.NewStoreError("reflection", sessionID, "put", err)
	}
	return nil
}

// RecordMessage appends a protocol message, deduplicated by
// (thread id, message type). The bool reports whether this call was the
// first delivery.
func (s *SQLiteStore) RecordMessage(ctx context.Context, msg domain.Message) (bool, error) {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (thread_id, type, session_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ThreadID, string(msg.Type), msg.SessionID, string(msg.Payload), createdAt,
	)
	if err != nil {
		return false, ports.NewStoreError("message", msg.ThreadID, "record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, ports.NewStoreError("message", msg.ThreadID, "record", err)
	}
	return affected > 0, nil
}

// BeginEventAttempt claims one delivery of an evaluation event. It returns
// false when the same (thread, event, attempt) was already claimed, so
// redeliveries never double-count.
func (s *SQLiteStore) BeginEventAttempt(ctx context.Context, threadID, eventID string, attempt int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_events (thread_id, event_id, attempt, claimed_at)
		 VALUES (?, ?, ?, ?)`,
		threadID, eventID, attempt, time.Now().UTC(),
	)
	if err != nil {
		return false, ports.NewStoreError("event_attempt", eventID, "claim", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, ports.NewStoreError("event_attempt", eventID, "claim", err)
	}
	return affected > 0, nil
}

// FullyScored reports whether the thread has at least one completion and
// every completion has both an evaluation and a judge result persisted.
func (s *SQLiteStore) FullyScored(ctx context.Context, threadID string) (bool, error) {
	var scored int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM completions WHERE thread_id = ?)
		    AND NOT EXISTS(
		      SELECT 1 FROM completions c
		      WHERE c.thread_id = ?
		        AND (NOT EXISTS(SELECT 1 FROM evaluations e WHERE e.thread_id = c.thread_id AND e.model_id = c.model_id)
		          OR NOT EXISTS(SELECT 1 FROM judgements j WHERE j.thread_id = c.thread_id AND j.model_id = c.model_id)))`,
		threadID, threadID,
	).Scan(&scored)
	if err != nil {
		return false, ports.NewStoreError("thread", threadID, "fully_scored", err)
	}
	return scored == 1, nil
}

// GetThreadResults returns the polling view of one thread: completions in
// request order plus whatever evaluation, judge, and reflection results
// exist. Absent phases come back as empty maps.
func (s *SQLiteStore) GetThreadResults(ctx context.Context, sessionID, threadID string) (domain.ThreadResults, error) {
	thread, err := s.GetThread(ctx, threadID)
	if err != nil {
		return domain.ThreadResults{}, err
	}
	if thread.SessionID != sessionID {
		return domain.ThreadResults{}, fmt.Errorf("thread %s: %w", threadID, ports.ErrThreadNotFound)
	}

	results := domain.ThreadResults{
		Thread:      thread,
		Evaluations: map[string]domain.EvaluationResult{},
		Judgements:  map[string]domain.JudgeResult{},
		Reflections: map[string]domain.Reflection{},
	}

	if results.Completions, err = s.listCompletions(ctx, threadID); err != nil {
		return domain.ThreadResults{}, err
	}
	if err = s.collectEvaluations(ctx, threadID, results.Evaluations); err != nil {
		return domain.ThreadResults{}, err
	}
	if err = s.collectJudgements(ctx, threadID, results.Judgements); err != nil {
		return domain.ThreadResults{}, err
	}
	if err = s.collectReflections(ctx, sessionID, threadID, results.Reflections); err != nil {
		return domain.ThreadResults{}, err
	}

	return results, nil
}

func (s *SQLiteStore) listCompletions(ctx context.Context, threadID string) ([]domain.ModelCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, content, latency_ns, prompt_tokens, completion_tokens, total_tokens, error
		 FROM completions WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, ports.NewStoreError("completion", threadID, "list", err)
	}
	defer rows.Close()

	var completions []domain.ModelCompletion
	for rows.Next() {
		var (
			c       domain.ModelCompletion
			latency int64
		)
		if err := rows.Scan(&c.ModelID, &c.Content, &latency,
			&c.Tokens.Prompt, &c.Tokens.Completion, &c.Tokens.Total, &c.Error); err != nil {
			return nil, ports.NewStoreError("completion", threadID, "list", err)
		}
		c.Latency = time.Duration(latency)
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (s *SQLiteStore) collectEvaluations(ctx context.Context, threadID string, out map[string]domain.EvaluationResult) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, bleu, rouge_1, rouge_l, cosine, lexical, combined, tokens_per_second, duration_ns, error
		 FROM evaluations WHERE thread_id = ?`, threadID)
	if err != nil {
		return ports.NewStoreError("evaluation", threadID, "list", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r        domain.EvaluationResult
			duration int64
		)
		if err := rows.Scan(&r.ModelID, &r.BLEU, &r.ROUGE1, &r.ROUGEL,
			&r.CosineSimilarity, &r.LexicalSimilarity, &r.CombinedScore,
			&r.TokensPerSecond, &duration, &r.Error); err != nil {
			return ports.NewStoreError("evaluation", threadID, "list", err)
		}
		r.Duration = time.Duration(duration)
		out[r.ModelID] = r
	}
	return rows.Err()
}

func (s *SQLiteStore) collectJudgements(ctx context.Context, threadID string, out map[string]domain.JudgeResult) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, scores, reasons, raw_text, duration_ns, error
		 FROM judgements WHERE thread_id = ?`, threadID)
	if err != nil {
		return ports.NewStoreError("judgement", threadID, "list", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r               domain.JudgeResult
			scores, reasons string
			duration        int64
		)
		if err := rows.Scan(&r.ModelID, &scores, &reasons, &r.RawText, &duration, &r.Error); err != nil {
			return ports.NewStoreError("judgement", threadID, "list", err)
		}
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return ports.NewStoreError("judgement", threadID, "list", err)
		}
		if err := json.Unmarshal([]byte(reasons), &r.Reasons); err != nil {
			return ports.NewStoreError("judgement", threadID, "list", err)
		}
		if len(r.Scores) == 0 {
			r.Scores = nil
		}
		if len(r.Reasons) == 0 {
			r.Reasons = nil
		}
		r.Duration = time.Duration(duration)
		out[r.ModelID] = r
	}
	return rows.Err()
}

func (s *SQLiteStore) collectReflections(ctx context.Context, sessionID, threadID string, out map[string]domain.Reflection) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, thread_id, context_block, chunks, duration_ns, created_at
		 FROM reflections WHERE session_id = ? AND thread_id = ?`, sessionID, threadID)
	if err != nil {
		return ports.NewStoreError("reflection", sessionID, "list", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r        domain.Reflection
			chunks   string
			duration int64
		)
		if err := rows.Scan(&r.ModelID, &r.ThreadID, &r.ContextBlock, &chunks, &duration, &r.CreatedAt); err != nil {
			return ports.NewStoreError("reflection", sessionID, "list", err)
		}
		if err := json.Unmarshal([]byte(chunks), &r.Chunks); err != nil {
			return ports.NewStoreError("reflection", sessionID, "list", err)
		}
		r.Duration = time.Duration(duration)
		out[r.ModelID] = r
	}
	return rows.Err()
}

// ListThreads returns all threads of a session, oldest first.
func (s *SQLiteStore) ListThreads(ctx context.Context, sessionID string) ([]domain.Thread, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID,
	).Scan(&exists)
	if err != nil {
		return nil, ports.NewStoreError("session", sessionID, "list_threads", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ports.ErrSessionNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, prompt, context, system_prompt, use_case, state, created_at
		 FROM threads WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, ports.NewStoreError("session", sessionID, "list_threads", err)
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		thread, err := scanThread(rows, "")
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}
