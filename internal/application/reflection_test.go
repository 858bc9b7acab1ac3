package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelarena/arena/infrastructure/memory"
	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
	"github.com/modelarena/arena/internal/testutils"
)

func TestRetrieveContextRanksByRelevance(t *testing.T) {
	memoryStore, err := memory.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { memoryStore.Close() })
	ctx := context.Background()

	embedder := &testutils.MockEmbeddingClient{Vectors: map[string][]float32{
		"jazz recommendations": {1, 0, 0},
	}}

	require.NoError(t, memoryStore.Append(ctx, domain.MemoryChunk{
		ModelID: "m1", ThreadID: "t1", Role: domain.RoleUser,
		Content: "loves jazz", Embedding: []float32{0.95, 0.05, 0},
	}))
	require.NoError(t, memoryStore.Append(ctx, domain.MemoryChunk{
		ModelID: "m1", ThreadID: "t1", Role: domain.RoleAssistant,
		Content: "recommended Coltrane", Embedding: []float32{0.7, 0.3, 0},
	}))
	require.NoError(t, memoryStore.Append(ctx, domain.MemoryChunk{
		ModelID: "m1", ThreadID: "t1", Role: domain.RoleUser,
		Content: "tax questions", Embedding: []float32{0, 0, 1},
	}))

	reflector := NewReflectionService(memoryStore, embedder, nil)

	chunks, err := reflector.RetrieveContext(ctx, "m1", "t1", "jazz recommendations", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, chunks, 2, "the orthogonal chunk falls below the threshold")
	assert.Equal(t, "loves jazz", chunks[0].Content)
	assert.Equal(t, "recommended Coltrane", chunks[1].Content)
	assert.Greater(t, chunks[0].Relevance, chunks[1].Relevance)
}

func TestRetrieveContextBelowThresholdIsEmpty(t *testing.T) {
	memoryStore, err := memory.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { memoryStore.Close() })
	ctx := context.Background()

	embedder := &testutils.MockEmbeddingClient{Vectors: map[string][]float32{
		"query": {1, 0},
	}}
	require.NoError(t, memoryStore.Append(ctx, domain.MemoryChunk{
		ModelID: "m1", ThreadID: "t1", Role: domain.RoleUser,
		Content: "irrelevant", Embedding: []float32{0, 1},
	}))

	reflector := NewReflectionService(memoryStore, embedder, nil)

	chunks, err := reflector.RetrieveContext(ctx, "m1", "t1", "query", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrieveContextEmbeddingFailure(t *testing.T) {
	memoryStore, err := memory.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { memoryStore.Close() })

	embedder := &testutils.MockEmbeddingClient{Err: errors.New("embedding service down")}
	reflector := NewReflectionService(memoryStore, embedder, nil)

	_, err = reflector.RetrieveContext(context.Background(), "m1", "t1", "query", 5, 0.7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed retrieval query")
}

// brokenMemory fails every search so the unavailable-store path can be
// exercised.
type brokenMemory struct {
	ports.MemoryStore
}

func (brokenMemory) Search(context.Context, string, string, []float32, int, float64) ([]domain.MemoryChunk, error) {
	return nil, errors.New("database is locked")
}

func TestRetrieveContextMemoryUnavailable(t *testing.T) {
	embedder := &testutils.MockEmbeddingClient{Vectors: map[string][]float32{
		"query": {1, 0},
	}}
	reflector := NewReflectionService(brokenMemory{}, embedder, nil)

	_, err := reflector.RetrieveContext(context.Background(), "m1", "t1", "query", 5, 0.7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrMemoryUnavailable)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestRenderContextBlock(t *testing.T) {
	assert.Empty(t, RenderContextBlock(nil))

	block := RenderContextBlock([]domain.MemoryChunk{
		{Content: "loves jazz"},
		{Content: "recommended Coltrane"},
	})
	assert.Equal(t, "[Memory][1] loves jazz\n\n[Memory][2] recommended Coltrane", block)
}
