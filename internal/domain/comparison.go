// Package domain contains the core types for multi-model comparison runs:
// requests, model completions, quantitative and qualitative results,
// session/thread lifecycle state, semantic memory chunks, and the
// evaluation events that bridge the synchronous and asynchronous phases.
//
// The package has no dependencies on infrastructure concerns. All types are
// plain data with validation and lifecycle rules; persistence, transport,
// and model access live behind ports.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// UseCase selects how a comparison request is prompted.
type UseCase string

const (
	// UseCaseDirect sends the prompt to each model as-is.
	UseCaseDirect UseCase = "direct"

	// UseCaseContextAware prepends the request context (possibly augmented
	// with retrieved memory) to the prompt before dispatch.
	UseCaseContextAware UseCase = "context_aware"
)

// Validation errors returned by ComparisonRequest.Validate.
var (
	// ErrEmptyPrompt indicates a request with no prompt text.
	ErrEmptyPrompt = errors.New("prompt must not be empty")
	// ErrNoModels indicates a request that selects no models.
	ErrNoModels = errors.New("at least one model id is required")
	// ErrDuplicateModel indicates the same model id was requested twice.
	ErrDuplicateModel = errors.New("model ids must be unique")
	// ErrMissingContext indicates a context-aware request without context text.
	ErrMissingContext = errors.New("context-aware requests must carry context")
	// ErrInvalidUseCase indicates an unrecognized use-case value.
	ErrInvalidUseCase = errors.New(`use case must be "direct" or "context_aware"`)
)

// ComparisonRequest describes one comparison run: a single prompt fanned out
// to a set of models. SessionID and ThreadID are optional; when empty the
// orchestrator assigns fresh identifiers.
type ComparisonRequest struct {
	// Prompt is the user prompt sent to every selected model.
	Prompt string `json:"prompt"`

	// ModelIDs selects the models to compare. Order is preserved in the
	// returned completions.
	ModelIDs []string `json:"models"`

	// Context is optional background text. Required when UseCase is
	// context-aware.
	Context string `json:"context,omitempty"`

	// SystemPrompt is an optional system instruction applied to every model.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// UseCase selects direct or context-aware prompting. Empty defaults
	// to direct.
	UseCase UseCase `json:"use_case,omitempty"`

	// SessionID, when supplied by the client, is reused instead of
	// generating a new session.
	SessionID string `json:"session_id,omitempty"`

	// ThreadID, when supplied by the client, is reused instead of
	// generating a new thread.
	ThreadID string `json:"thread_id,omitempty"`
}

// Validate checks the structural invariants of the request.
// It rejects empty prompts, empty or duplicated model sets, unknown
// use-case values, and context-aware requests without context text.
func (r ComparisonRequest) Validate() error {
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(r.ModelIDs) == 0 {
		return ErrNoModels
	}
	seen := make(map[string]struct{}, len(r.ModelIDs))
	for _, id := range r.ModelIDs {
		if id == "" {
			return fmt.Errorf("%w: empty model id", ErrNoModels)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateModel, id)
		}
		seen[id] = struct{}{}
	}
	switch r.UseCase {
	case "", UseCaseDirect, UseCaseContextAware:
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidUseCase, r.UseCase)
	}
	if r.ContextAware() && r.Context == "" {
		return ErrMissingContext
	}
	return nil
}

// ContextAware reports whether the request opted into context-aware prompting.
func (r ComparisonRequest) ContextAware() bool {
	return r.UseCase == UseCaseContextAware
}

// TokenUsage records token counts for a single model call.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// ModelCompletion is the outcome of one model call within a thread.
// Exactly one completion exists per (thread, model id) pair. A failed call
// is recorded with empty content and a non-empty Error marker so that one
// model's failure never hides the others' results.
type ModelCompletion struct {
	// ModelID identifies the model that produced (or failed to produce)
	// this completion.
	ModelID string `json:"model_id"`

	// Content is the completion text with think-tags already scrubbed.
	// Empty when the call failed.
	Content string `json:"content"`

	// Latency is the wall-clock duration of the model call.
	Latency time.Duration `json:"latency"`

	// Tokens carries the provider-reported or estimated token counts.
	Tokens TokenUsage `json:"tokens"`

	// Error holds the failure description when the call did not succeed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether this completion records a model failure.
func (c ModelCompletion) Failed() bool { return c.Error != "" }

// ComparisonResult is the synchronous response of a comparison run:
// the assigned identifiers and the per-model completions in request order.
// Quantitative and qualitative scores arrive later through polling.
type ComparisonResult struct {
	SessionID   string            `json:"session_id"`
	ThreadID    string            `json:"thread_id"`
	Completions []ModelCompletion `json:"completions"`
}
