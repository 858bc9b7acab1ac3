package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCore is a scriptable CoreLLM used to exercise client and middleware
// behavior without network calls.
type fakeCore struct {
	BaseProvider

	mu        sync.Mutex
	calls     int
	responses []fakeResponse
	delay     time.Duration
}

type fakeResponse struct {
	text      string
	tokensIn  int
	tokensOut int
	err       error
}

func newFakeCore(model string, responses ...fakeResponse) *fakeCore {
	f := &fakeCore{responses: responses}
	f.SetModel(model)
	return f
}

func (f *fakeCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	if len(f.responses) == 0 {
		return "ok", 1, 1, nil
	}
	if call >= len(f.responses) {
		call = len(f.responses) - 1
	}
	r := f.responses[call]
	return r.text, r.tokensIn, r.tokensOut, r.err
}

func (f *fakeCore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		config   ClientConfig
		wantErr  string
	}{
		{
			name:     "missing API key",
			provider: "openai",
			config:   ClientConfig{Model: "gpt-4o"},
			wantErr:  "API key is required",
		},
		{
			name:     "missing model",
			provider: "openai",
			config:   ClientConfig{APIKey: "test-key"},
			wantErr:  "model is required",
		},
		{
			name:     "unknown provider",
			provider: "nonexistent",
			config:   ClientConfig{APIKey: "test-key", Model: "some-model"},
			wantErr:  "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.provider, tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMiddlewareOrdering(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &taggedCore{next: next, name: name, order: &order}
		}
	}

	RegisterProviderFactory("fake-ordering", func(ClientConfig) (CoreLLM, error) {
		return newFakeCore("fake-model"), nil
	})

	client, err := NewClient("fake-ordering", ClientConfig{
		APIKey:     "test-key",
		Model:      "fake-model",
		Middleware: []Middleware{tag("first"), tag("second"), tag("third")},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hello", nil)
	require.NoError(t, err)

	// The first middleware in the slice is the outermost wrapper.
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

type taggedCore struct {
	next  CoreLLM
	name  string
	order *[]string
}

func (c *taggedCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	*c.order = append(*c.order, c.name)
	return c.next.DoRequest(ctx, prompt, opts)
}

func (c *taggedCore) GetModel() string      { return c.next.GetModel() }
func (c *taggedCore) SetModel(model string) { c.next.SetModel(model) }

func TestRetryMiddlewareRecoversTransientFailure(t *testing.T) {
	transient := NewProviderError("openai", ErrorTypeServerError, 503, "upstream unavailable", nil)
	core := newFakeCore("gpt-4o",
		fakeResponse{err: transient},
		fakeResponse{err: transient},
		fakeResponse{text: "recovered", tokensIn: 5, tokensOut: 3},
	)

	wrapped := RetryMiddleware(3, time.Millisecond, 5*time.Millisecond)(core)

	response, tokensIn, tokensOut, err := wrapped.DoRequest(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", response)
	assert.Equal(t, 5, tokensIn)
	assert.Equal(t, 3, tokensOut)
	assert.Equal(t, 3, core.callCount())
}

func TestRetryMiddlewareStopsOnNonRetryable(t *testing.T) {
	authErr := NewProviderError("openai", ErrorTypeAuthentication, 401, "bad key", nil)
	core := newFakeCore("gpt-4o", fakeResponse{err: authErr})

	wrapped := RetryMiddleware(5, time.Millisecond, 5*time.Millisecond)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "hello", nil)
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, ErrorTypeAuthentication, providerErr.Type)
	assert.Equal(t, 1, core.callCount(), "non-retryable errors must not be retried")
}

func TestRetryMiddlewareExhaustsAttempts(t *testing.T) {
	rateLimited := NewProviderError("openai", ErrorTypeRateLimit, 429, "slow down", nil)
	core := newFakeCore("gpt-4o", fakeResponse{err: rateLimited})

	wrapped := RetryMiddleware(2, time.Millisecond, 5*time.Millisecond)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, core.callCount())
}

func TestTimeoutMiddleware(t *testing.T) {
	core := newFakeCore("gpt-4o", fakeResponse{text: "slow"})
	core.delay = 200 * time.Millisecond

	wrapped := TimeoutMiddleware(20 * time.Millisecond)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseRequestOptions(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]any
		want func(t *testing.T, got RequestOptions)
	}{
		{
			name: "empty options use defaults",
			opts: nil,
			want: func(t *testing.T, got RequestOptions) {
				assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
				assert.Equal(t, "default-model", got.Model)
				assert.Nil(t, got.Temperature)
				assert.Nil(t, got.TopP)
				assert.Empty(t, got.System)
			},
		},
		{
			name: "standard options extracted",
			opts: map[string]any{
				"max_tokens":  512,
				"model":       "override-model",
				"temperature": 0.7,
				"top_p":       0.9,
				"system":      "You are terse.",
			},
			want: func(t *testing.T, got RequestOptions) {
				assert.Equal(t, 512, got.MaxTokens)
				assert.Equal(t, "override-model", got.Model)
				require.NotNil(t, got.Temperature)
				assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
				require.NotNil(t, got.TopP)
				assert.InDelta(t, 0.9, *got.TopP, 1e-9)
				assert.Equal(t, "You are terse.", got.System)
			},
		},
		{
			name: "JSON-decoded float max_tokens accepted",
			opts: map[string]any{"max_tokens": float64(256)},
			want: func(t *testing.T, got RequestOptions) {
				assert.Equal(t, 256, got.MaxTokens)
			},
		},
		{
			name: "invalid values fall back to defaults",
			opts: map[string]any{
				"max_tokens":  -5,
				"model":       "",
				"temperature": 9.9,
			},
			want: func(t *testing.T, got RequestOptions) {
				assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
				assert.Equal(t, "default-model", got.Model)
				assert.Nil(t, got.Temperature)
			},
		},
		{
			name: "non-standard keys land in Extra",
			opts: map[string]any{
				"temperature":     0.3,
				"response_format": map[string]string{"type": "json_object"},
			},
			want: func(t *testing.T, got RequestOptions) {
				assert.Contains(t, got.Extra, "response_format")
				assert.NotContains(t, got.Extra, "temperature")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, ParseRequestOptions(tt.opts, "default-model"))
		})
	}
}

func TestProviderErrorRetryability(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeBadRequest, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeContentPolicy, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		err := NewProviderError("test", tt.errType, 0, "msg", nil)
		assert.Equal(t, tt.retryable, err.IsRetryable(), "type %v", tt.errType)
	}
}

func TestErrorClassifier(t *testing.T) {
	classifier := &ErrorClassifier{Provider: "openai"}

	tests := []struct {
		status   int
		wantType ErrorType
	}{
		{401, ErrorTypeAuthentication},
		{403, ErrorTypeAuthentication},
		{429, ErrorTypeRateLimit},
		{400, ErrorTypeBadRequest},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeBadRequest},
	}

	for _, tt := range tests {
		got := classifier.ClassifyHTTPError(tt.status, "message", errors.New("raw"))
		assert.Equal(t, tt.wantType, got.Type, "status %d", tt.status)
		assert.Equal(t, tt.status, got.StatusCode)
	}

	deadline := classifier.ClassifyContextError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, deadline.Type)

	canceled := classifier.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, canceled.Type)
}

func TestSimpleTokenEstimator(t *testing.T) {
	estimator := &SimpleTokenEstimator{}
	assert.Equal(t, 0, estimator.EstimateTokens(""))
	assert.Equal(t, 1, estimator.EstimateTokens("hi"))
	assert.Equal(t, 3, estimator.EstimateTokens("hello world!"))
}
