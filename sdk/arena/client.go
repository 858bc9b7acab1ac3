// Package arena is a small Go client for the comparison service HTTP API.
// It wraps the compare and results endpoints with typed requests and
// responses, mirroring the service's wire format without depending on its
// internals.
package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds each API call when the caller does not supply an
// http.Client.
const DefaultTimeout = 2 * time.Minute

// Client talks to one arena service instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the service at baseURL, such as
// "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComparisonRequest describes one comparison run.
type ComparisonRequest struct {
	Prompt       string   `json:"prompt"`
	Models       []string `json:"models"`
	Context      string   `json:"context,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	UseCase      string   `json:"use_case,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	ThreadID     string   `json:"thread_id,omitempty"`
}

// TokenUsage records token counts for one model call.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// ModelCompletion is the outcome of one model call.
type ModelCompletion struct {
	ModelID string        `json:"model_id"`
	Content string        `json:"content"`
	Latency time.Duration `json:"latency"`
	Tokens  TokenUsage    `json:"tokens"`
	Error   string        `json:"error,omitempty"`
}

// ComparisonResult is the synchronous response of Compare.
type ComparisonResult struct {
	SessionID   string            `json:"session_id"`
	ThreadID    string            `json:"thread_id"`
	Completions []ModelCompletion `json:"completions"`
}

// EvaluationResult holds the quantitative scores for one completion.
type EvaluationResult struct {
	ModelID           string        `json:"model_id"`
	BLEU              float64       `json:"bleu"`
	ROUGE1            float64       `json:"rouge_1"`
	ROUGEL            float64       `json:"rouge_l"`
	CosineSimilarity  float64       `json:"cosine_similarity"`
	LexicalSimilarity float64       `json:"lexical_similarity"`
	CombinedScore     float64       `json:"combined_score"`
	TokensPerSecond   float64       `json:"tokens_per_second"`
	Duration          time.Duration `json:"duration"`
	Error             string        `json:"error,omitempty"`
}

// JudgeResult holds the qualitative rubric scores for one completion.
type JudgeResult struct {
	ModelID  string             `json:"model_id"`
	Scores   map[string]float64 `json:"scores,omitempty"`
	Reasons  map[string]string  `json:"reasons,omitempty"`
	RawText  string             `json:"raw_text,omitempty"`
	Duration time.Duration      `json:"duration"`
	Error    string             `json:"error,omitempty"`
}

// MemoryChunk is one retrieved conversation turn.
type MemoryChunk struct {
	ID        int64     `json:"id,omitempty"`
	ModelID   string    `json:"model_id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Relevance float64   `json:"relevance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reflection records a memory retrieval performed before planning.
type Reflection struct {
	ModelID      string        `json:"model_id"`
	ThreadID     string        `json:"thread_id"`
	ContextBlock string        `json:"context_block,omitempty"`
	Chunks       []MemoryChunk `json:"chunks,omitempty"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Thread is one conversation context within a session.
type Thread struct {
	ID           string    `json:"thread_id"`
	SessionID    string    `json:"session_id"`
	Prompt       string    `json:"prompt"`
	Context      string    `json:"context,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	UseCase      string    `json:"use_case"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// ThreadResults is the polling view of one thread. Absent phases are empty.
type ThreadResults struct {
	Thread      Thread                      `json:"thread"`
	Completions []ModelCompletion           `json:"completions"`
	Evaluations map[string]EvaluationResult `json:"evaluations,omitempty"`
	Judgements  map[string]JudgeResult      `json:"judgements,omitempty"`
	Reflections map[string]Reflection       `json:"reflections,omitempty"`
}

// SessionResults is the session-level polling response.
type SessionResults struct {
	SessionID string          `json:"session_id"`
	Threads   []ThreadResults `json:"threads"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("arena API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Compare runs one synchronous comparison. Quantitative and qualitative
// scores arrive asynchronously; poll Results with the returned ids.
func (c *Client) Compare(ctx context.Context, req ComparisonRequest) (ComparisonResult, error) {
	var result ComparisonResult
	err := c.post(ctx, "/api/v1/compare", req, &result)
	return result, err
}

// Results returns the polling view of every thread in a session.
func (c *Client) Results(ctx context.Context, sessionID string) (SessionResults, error) {
	var results SessionResults
	err := c.get(ctx, "/api/v1/results/"+url.PathEscape(sessionID), &results)
	return results, err
}

// ThreadResults returns the polling view of one thread.
func (c *Client) ThreadResults(ctx context.Context, sessionID, threadID string) (ThreadResults, error) {
	var results ThreadResults
	path := fmt.Sprintf("/api/v1/results/%s?thread_id=%s",
		url.PathEscape(sessionID), url.QueryEscape(threadID))
	err := c.get(ctx, path, &results)
	return results, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readErrorMessage(body io.Reader) string {
	var parsed struct {
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(raw))
}
