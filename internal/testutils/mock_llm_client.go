// Package testutils provides deterministic test doubles for the model and
// embedding backends so pipeline behavior can be tested without network
// access.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/modelarena/arena/internal/ports"
)

// MockResponse defines one pre-configured response pattern for the mock
// client. Patterns match by substring against the prompt; the empty pattern
// matches everything and acts as the default.
type MockResponse struct {
	// Pattern is matched against prompts (substring matching).
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// TokensIn and TokensOut are the reported usage counts.
	TokensIn  int
	TokensOut int
	// Err, when set, is returned instead of a response.
	Err error
	// Delay is slept before responding, honoring context cancellation.
	// Used to simulate slow or timed-out models.
	Delay time.Duration
}

// MockLLMClient implements ports.LLMClient with deterministic responses
// selected by prompt pattern. It records every prompt it sees so tests can
// assert on call shape.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	calls     []string
}

var _ ports.LLMClient = (*MockLLMClient)(nil)

// NewMockLLMClient creates a mock client for the given model identifier
// with no configured responses. Unmatched prompts get a generic response.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{model: model}
}

// AddResponse appends a response pattern. Patterns are checked in the order
// they were added.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := m.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage implements ports.LLMClient. It honors the matched
// response's Delay so per-call timeouts can be exercised in tests.
func (m *MockLLMClient) CompleteWithUsage(ctx context.Context, prompt string, _ map[string]any) (string, int, int, error) {
	if ctx.Err() != nil {
		return "", 0, 0, ctx.Err()
	}
	if prompt == "" {
		return "", 0, 0, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	matched := m.findMatch(prompt)
	m.mu.Unlock()

	if matched == nil {
		return "Mock response for testing purposes.", 1, 8, nil
	}

	if matched.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(matched.Delay):
		}
	}

	if matched.Err != nil {
		return "", 0, 0, matched.Err
	}
	return matched.Response, matched.TokensIn, matched.TokensOut, nil
}

// findMatch returns the first configured response whose pattern occurs in
// the prompt. Caller holds the lock.
func (m *MockLLMClient) findMatch(prompt string) *MockResponse {
	promptLower := strings.ToLower(prompt)
	for i := range m.responses {
		if m.responses[i].Pattern == "" || strings.Contains(promptLower, strings.ToLower(m.responses[i].Pattern)) {
			return &m.responses[i]
		}
	}
	return nil
}

// EstimateTokens implements ports.LLMClient with the usual four characters
// per token heuristic.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string { return m.model }

// Calls returns a copy of every prompt the client has received.
func (m *MockLLMClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockEmbeddingClient implements ports.EmbeddingClient with canned or
// derived vectors.
type MockEmbeddingClient struct {
	// Vectors maps exact text to its embedding.
	Vectors map[string][]float32
	// Err, when set, fails every call.
	Err error
}

var _ ports.EmbeddingClient = (*MockEmbeddingClient)(nil)

// Embed returns the configured vector for the text, or a deterministic
// byte-derived vector so unknown texts still embed consistently.
func (m *MockEmbeddingClient) Embed(_ context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if vec, ok := m.Vectors[text]; ok {
		return vec, nil
	}

	vec := make([]float32, 8)
	for i, b := range []byte(text) {
		vec[i%8] += float32(b) / 255.0
	}
	return vec, nil
}
