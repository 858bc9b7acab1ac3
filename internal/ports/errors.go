package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors surfaced across port boundaries.
var (
	// ErrSessionNotFound indicates that no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrThreadNotFound indicates that no thread exists for the given id.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrMemoryUnavailable indicates that the semantic memory store could
	// not be reached. Reflection treats this as a soft failure.
	ErrMemoryUnavailable = errors.New("memory store unavailable")

	// ErrTimeout indicates that a model call exceeded its per-call
	// deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrBusClosed indicates a publish on a stopped event bus.
	ErrBusClosed = errors.New("event bus closed")
)

// LLMError represents an error from an LLM backend, carrying the model and
// operation for diagnostics.
type LLMError struct {
	// Model is the identifier of the model that generated the error.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error.
	Err error

	// RetryAfter indicates how long to wait before retrying, if known.
	RetryAfter *time.Duration
}

// Error implements the error interface for LLMError.
func (e *LLMError) Error() string {
	msg := fmt.Sprintf("llm error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error { return e.Err }

// retryable is satisfied by provider errors that classify their own
// retryability.
type retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried. Timeouts are retryable; everything else defers to the
// underlying provider error's own classification when it has one.
func (e *LLMError) IsRetryable() bool {
	if errors.Is(e.Err, ErrTimeout) {
		return true
	}
	var r retryable
	if errors.As(e.Err, &r) {
		return r.IsRetryable()
	}
	return false
}

// NewLLMError creates a new LLMError with the given details.
func NewLLMError(model, operation string, err error) *LLMError {
	return &LLMError{Model: model, Operation: operation, Err: err}
}

// StoreError represents a persistence failure. Store errors during state
// transitions are fatal for the affected thread, which moves to Failed.
type StoreError struct {
	// Entity names the record type involved (session, thread, completion...).
	Entity string

	// Key identifies the record.
	Key string

	// Operation is the store operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: operation=%s, entity=%s, key=%s, err=%v", e.Operation, e.Entity, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(entity, key, operation string, err error) *StoreError {
	return &StoreError{Entity: entity, Key: key, Operation: operation, Err: err}
}
