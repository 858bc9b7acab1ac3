// Package ports defines the interfaces between the evaluation pipeline and
// its infrastructure: model backends, persistence, the event channel, and
// observability. Application code depends on these interfaces only;
// concrete adapters live under infrastructure.
package ports

import "context"

// LLMClient defines the interface for interacting with a language model
// backend. Implementations handle provider-specific details like
// authentication, request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request and returns the generated text.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64
	//   - "max_tokens": int
	//   - "system": string (system prompt)
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteWithUsage is Complete with provider-reported token usage.
	// It returns the generated text, input token count, and output token
	// count. Providers that do not report usage fall back to estimates.
	CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error)

	// EstimateTokens calculates the approximate token count for a text.
	// The estimation method may vary by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier used by this client.
	GetModel() string
}

// EmbeddingClient computes dense vector embeddings for text. Used for
// cosine-similarity scoring and semantic memory retrieval.
type EmbeddingClient interface {
	// Embed returns the embedding vector for the given text. An empty
	// text yields a zero vector rather than an error.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ClientResolver maps a caller-facing model id to a ready LLM client.
// Implementations typically consult a configured alias table and construct
// provider clients lazily.
type ClientResolver interface {
	// Resolve returns the client for the given model id, or an error when
	// the id maps to no configured provider.
	Resolve(modelID string) (LLMClient, error)
}
