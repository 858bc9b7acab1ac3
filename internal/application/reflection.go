package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// Reflection defaults.
const (
	DefaultRetrievalLimit = 5
	DefaultMinRelevance   = 0.7
)

// ReflectionService retrieves semantic memory to enrich a model's prompting
// context. Retrieval is scoped to the model's own memory namespace.
type ReflectionService struct {
	memory   ports.MemoryStore
	embedder ports.EmbeddingClient
	logger   *slog.Logger
}

var _ ports.Reflector = (*ReflectionService)(nil)

// NewReflectionService creates a reflector over the given memory store and
// embedding client.
func NewReflectionService(memory ports.MemoryStore, embedder ports.EmbeddingClient, logger *slog.Logger) *ReflectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReflectionService{
		memory:   memory,
		embedder: embedder,
		logger:   logger.With("component", "reflection"),
	}
}

// RetrieveContext embeds the query and returns up to limit chunks from the
// model's memory with relevance of at least minRelevance, most relevant
// first.
func (r *ReflectionService) RetrieveContext(ctx context.Context, modelID, threadID, query string, limit int, minRelevance float64) ([]domain.MemoryChunk, error) {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed retrieval query: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}

	chunks, err := r.memory.Search(ctx, modelID, threadID, vector, limit, minRelevance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMemoryUnavailable, err)
	}
	return chunks, nil
}

// RenderContextBlock formats retrieved chunks as numbered memory paragraphs
// for prompt augmentation. Empty input renders as an empty string.
func RenderContextBlock(chunks []domain.MemoryChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[Memory][%d] %s", i+1, chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}
