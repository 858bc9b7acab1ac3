package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/modelarena/arena/internal/ports"
)

// DefaultEmbeddingModel is the embedding model used when none is
// configured.
const DefaultEmbeddingModel = string(openai.AdaEmbeddingV2)

// OpenAIEmbedder produces embedding vectors through the OpenAI embeddings
// API. Vectors back both semantic memory retrieval and the cosine
// similarity metric.
type OpenAIEmbedder struct {
	client          *openai.Client
	model           openai.EmbeddingModel
	errorClassifier *ErrorClassifier
}

var _ ports.EmbeddingClient = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. The model may be empty, in which
// case DefaultEmbeddingModel is used.
func NewOpenAIEmbedder(apiKey, model, baseURL string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &OpenAIEmbedder{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           openai.EmbeddingModel(model),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// Embed returns the embedding vector for the given text. Blank text yields
// a nil vector without an API call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, e.classifyError(err)
	}
	if len(resp.Data) == 0 {
		return nil, NewProviderError("openai", ErrorTypeUnknown, 0, "embedding response contained no data", ErrEmptyResponse)
	}

	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return e.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return e.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	return fmt.Errorf("embedding request failed: %w", err)
}
