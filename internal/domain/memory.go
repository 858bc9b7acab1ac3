package domain

import "time"

// Role identifies the author of a remembered conversation turn.
type Role string

const (
	// RoleUser marks chunks that originated from user prompts.
	RoleUser Role = "user"
	// RoleAssistant marks chunks that originated from model completions.
	RoleAssistant Role = "assistant"
)

// MemoryChunk is one stored conversation turn in semantic memory. Chunks are
// append-only; the evaluation pipeline never deletes them. Retrieval is
// scoped by the owning model id so one model's memory never leaks into
// another's context.
type MemoryChunk struct {
	ID       int64  `json:"id,omitempty"`
	ModelID  string `json:"model_id"`
	ThreadID string `json:"thread_id"`
	Role     Role   `json:"role"`
	Content  string `json:"content"`

	// Embedding is the vector used for similarity search. It may be empty
	// on chunks returned to callers that only need content.
	Embedding []float32 `json:"-"`

	// TokenCount is the estimated size of Content in tokens.
	TokenCount int `json:"token_count,omitempty"`

	// Relevance is the cosine similarity against the search query. Only
	// populated on retrieval results.
	Relevance float64 `json:"relevance,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
