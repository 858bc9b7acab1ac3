// Package llm provides a unified interface for the model backends the
// comparison pipeline fans out to, with built-in support for timeouts,
// retries, rate limiting, and metrics.
//
// The package abstracts multiple providers (OpenAI, Anthropic, Google)
// behind a common interface while adding operational cross-cutting concerns
// through a middleware pattern. The planner resolves caller-facing model
// ids to clients through the Registry; the judge engine and the embedding
// client reuse the same provider plumbing.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o",
//	})
//	response, err := client.Complete(ctx, "Hello world!", nil)
//
// With middleware:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-3-5-sonnet-20241022",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(20, 40),
//	        llm.RetryMiddleware(3, 500*time.Millisecond, 10*time.Second),
//	        llm.MetricsMiddleware(collector),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/modelarena/arena/internal/ports"
)

// CoreLLM defines the minimal interface that providers must implement.
// The middleware system wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response
	// text, input token count, output token count, and any error. The
	// opts map carries provider-specific configuration such as
	// temperature or max tokens.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model for subsequent requests.
	SetModel(model string)
}

// TokenEstimator provides pluggable token estimation strategies for cost
// estimation when exact counts are unavailable.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for the text.
	EstimateTokens(text string) int
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint. Empty uses the
	// provider's default.
	BaseURL string

	// Timeout sets the maximum duration for individual requests at the
	// HTTP layer. Zero means no timeout.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic. Nil falls
	// back to a character-based estimator.
	TokenEstimator TokenEstimator

	// Middleware is applied in the order specified, outermost first.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting
// functionality without modifying provider logic.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient by wrapping a provider-specific CoreLLM
// with the configured middleware chain.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates an LLM client for the given provider type, assembling
// the middleware chain and validating configuration.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first middleware is the
	// outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{core: core, estimator: estimator}, nil
}

// Complete sends a prompt to the model and returns the response text,
// discarding token usage.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt to the model and returns the response
// with input and output token counts.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for the given text
// using the configured estimator.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the currently configured model name.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator provides character-based token estimation at
// approximately four characters per token, a reasonable heuristic for
// English text.
type SimpleTokenEstimator struct{}

// EstimateTokens implements TokenEstimator.
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories is the provider registry. Providers register themselves
// in init so new providers can be added without touching client code.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider factory under a type name.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
