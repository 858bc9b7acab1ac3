package llm

import "sync"

// Default request parameter values shared by all providers.
const (
	// DefaultMaxTokens bounds generation length when the caller does not
	// specify one.
	DefaultMaxTokens = 2048
)

// BaseProvider provides common, thread-safe model-name management for
// provider implementations.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name. Safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. Safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the standardized set of request parameters shared
// across providers.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens int

	// Model is the model identifier for this request.
	Model string

	// Temperature controls output randomness. Nil uses the provider
	// default.
	Temperature *float64

	// TopP enables nucleus sampling. Nil uses the provider default.
	TopP *float64

	// System carries the system prompt, empty when none.
	System string

	// Extra holds provider-specific options outside the standard set.
	Extra map[string]any
}

// ParseRequestOptions extracts and validates request parameters from an
// options map, applying defaults for missing or invalid entries. Options
// outside the standard set are collected into Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}
	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
			// Standard options, already processed.
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// ExtractOptionalInt reads an int option, accepting float64 values as YAML
// and JSON decoders commonly produce. Invalid or missing values yield the
// default.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, valid func(int) bool) int {
	raw, ok := opts[key]
	if !ok {
		return defaultVal
	}

	var val int
	switch v := raw.(type) {
	case int:
		val = v
	case int64:
		val = int(v)
	case float64:
		val = int(v)
	default:
		return defaultVal
	}

	if valid != nil && !valid(val) {
		return defaultVal
	}
	return val
}

// ExtractOptionalString reads a string option, falling back to the default
// when missing or invalid.
func ExtractOptionalString(opts map[string]any, key, defaultVal string, valid func(string) bool) string {
	raw, ok := opts[key]
	if !ok {
		return defaultVal
	}
	val, ok := raw.(string)
	if !ok {
		return defaultVal
	}
	if valid != nil && !valid(val) {
		return defaultVal
	}
	return val
}

// ExtractOptionalFloat64 reads a float option, accepting ints. Invalid or
// missing values yield the default.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, valid func(float64) bool) float64 {
	raw, ok := opts[key]
	if !ok {
		return defaultVal
	}

	var val float64
	switch v := raw.(type) {
	case float64:
		val = v
	case float32:
		val = float64(v)
	case int:
		val = float64(v)
	default:
		return defaultVal
	}

	if valid != nil && !valid(val) {
		return defaultVal
	}
	return val
}

// TokenCounter estimates token counts from text when the provider does not
// report exact usage.
type TokenCounter struct {
	// CharactersPerToken is the average characters-per-token ratio.
	CharactersPerToken float64
}

// NewTokenCounter creates a TokenCounter with the common English-text
// approximation of four characters per token.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens returns the estimated token count for text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns the actual count when positive, otherwise an
// estimate from the text.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
