// Package memory implements the append-only semantic memory store on
// SQLite. Embeddings are stored as float32 blobs and searched by
// brute-force cosine similarity, which is adequate for the per-model,
// per-thread corpus sizes the pipeline produces.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/modelarena/arena/infrastructure/scoring"
	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	model_id    TEXT NOT NULL,
	thread_id   TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	embedding   BLOB,
	token_count INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_model ON chunks(model_id);
CREATE INDEX IF NOT EXISTS idx_chunks_thread ON chunks(thread_id);
`

// Store is the SQLite-backed MemoryStore implementation.
type Store struct {
	db *sql.DB
}

var _ ports.MemoryStore = (*Store)(nil)

// Open creates or opens the memory database at the given path and ensures
// the schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append stores one conversation turn with its embedding.
func (s *Store) Append(ctx context.Context, chunk domain.MemoryChunk) error {
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (model_id, thread_id, role, content, embedding, token_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ModelID, chunk.ThreadID, string(chunk.Role), chunk.Content,
		EncodeVector(chunk.Embedding), chunk.TokenCount, createdAt,
	)
	if err != nil {
		return ports.NewStoreError("memory_chunk", chunk.ThreadID, "append", err)
	}
	return nil
}

// Search returns up to limit chunks owned by modelID whose cosine
// similarity against the query vector is at least minRelevance, most
// relevant first. A non-empty threadID restricts the search to that thread.
func (s *Store) Search(ctx context.Context, modelID, threadID string, query []float32, limit int, minRelevance float64) ([]domain.MemoryChunk, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}

	args := []any{modelID}
	q := `SELECT id, model_id, thread_id, role, content, embedding, token_count, created_at
	      FROM chunks WHERE model_id = ?`
	if threadID != "" {
		q += ` AND thread_id = ?`
		args = append(args, threadID)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ports.NewStoreError("memory_chunk", modelID, "search", err)
	}
	defer rows.Close()

	var matches []domain.MemoryChunk
	for rows.Next() {
		var (
			chunk domain.MemoryChunk
			role  string
			blob  []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.ModelID, &chunk.ThreadID, &role,
			&chunk.Content, &blob, &chunk.TokenCount, &chunk.CreatedAt); err != nil {
			return nil, ports.NewStoreError("memory_chunk", modelID, "search", err)
		}
		chunk.Role = domain.Role(role)

		embedding, err := DecodeVector(blob)
		if err != nil {
			return nil, ports.NewStoreError("memory_chunk", modelID, "search", err)
		}
		chunk.Embedding = embedding

		chunk.Relevance = scoring.Cosine(query, embedding)
		if chunk.Relevance >= minRelevance {
			matches = append(matches, chunk)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError("memory_chunk", modelID, "search", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Relevance > matches[j].Relevance
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// HasHistory reports whether any chunk exists for the thread.
func (s *Store) HasHistory(ctx context.Context, threadID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM chunks WHERE thread_id = ?)`, threadID,
	).Scan(&exists)
	if err != nil {
		return false, ports.NewStoreError("memory_chunk", threadID, "has_history", err)
	}
	return exists == 1, nil
}
