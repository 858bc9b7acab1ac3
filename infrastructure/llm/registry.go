package llm

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/modelarena/arena/internal/ports"
)

// ModelSpec configures one caller-facing model id: which provider serves
// it, the provider-side model name, and the credential.
type ModelSpec struct {
	// Provider selects the registered provider factory
	// (openai, anthropic, google).
	Provider string `json:"provider" yaml:"provider" validate:"required,oneof=openai anthropic google"`

	// Model is the provider-side model name.
	Model string `json:"model" yaml:"model" validate:"required"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key" yaml:"api_key" validate:"required"`

	// BaseURL optionally overrides the provider endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// RegistryConfig holds the model table and the operational settings
// applied uniformly to every constructed client.
type RegistryConfig struct {
	// Models maps caller-facing model ids to provider specs.
	Models map[string]ModelSpec `json:"models" yaml:"models" validate:"required,min=1"`

	// Timeout is the per-request timeout applied via middleware.
	// Zero disables the timeout middleware.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries enables retry middleware when positive.
	MaxRetries int `json:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`

	// RateLimit enables token-bucket rate limiting (requests per second)
	// when positive.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" validate:"min=0"`

	// Burst is the rate limiter burst size.
	Burst int `json:"burst" yaml:"burst" validate:"min=0"`
}

// Registry resolves caller-facing model ids to ready clients. Clients are
// created lazily on first resolution and cached; Resolve is safe for
// concurrent use by the planner fan-out.
type Registry struct {
	mu        sync.Mutex
	config    RegistryConfig
	collector ports.MetricsCollector
	clients   map[string]ports.LLMClient
}

var _ ports.ClientResolver = (*Registry)(nil)

// NewRegistry creates a registry from the model table. The collector may
// be nil to disable per-call metrics.
func NewRegistry(config RegistryConfig, collector ports.MetricsCollector) (*Registry, error) {
	if len(config.Models) == 0 {
		return nil, fmt.Errorf("at least one model must be configured")
	}
	for id, spec := range config.Models {
		if spec.Provider == "" || spec.Model == "" {
			return nil, fmt.Errorf("model %q: provider and model are required", id)
		}
	}

	return &Registry{
		config:    config,
		collector: collector,
		clients:   make(map[string]ports.LLMClient),
	}, nil
}

// Resolve returns the client for the given model id, constructing and
// caching it on first use.
func (r *Registry) Resolve(modelID string) (ports.LLMClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[modelID]; ok {
		return client, nil
	}

	spec, ok := r.config.Models[modelID]
	if !ok {
		return nil, fmt.Errorf("unknown model id: %s", modelID)
	}

	client, err := NewClient(spec.Provider, ClientConfig{
		APIKey:     spec.APIKey,
		Model:      spec.Model,
		BaseURL:    spec.BaseURL,
		Middleware: r.middleware(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client for model %q: %w", modelID, err)
	}

	r.clients[modelID] = client
	return client, nil
}

// middleware assembles the chain applied to every client, outermost first:
// rate limit, then retry, then timeout, then metrics closest to the wire.
func (r *Registry) middleware() []Middleware {
	var chain []Middleware
	if r.config.RateLimit > 0 {
		burst := r.config.Burst
		if burst <= 0 {
			burst = 1
		}
		chain = append(chain, RateLimitMiddleware(rate.Limit(r.config.RateLimit), burst))
	}
	if r.config.MaxRetries > 0 {
		chain = append(chain, RetryMiddleware(r.config.MaxRetries, 500*time.Millisecond, 10*time.Second))
	}
	if r.config.Timeout > 0 {
		chain = append(chain, TimeoutMiddleware(r.config.Timeout))
	}
	if r.collector != nil {
		chain = append(chain, MetricsMiddleware(r.collector))
	}
	return chain
}
