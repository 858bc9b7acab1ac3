package domain

import (
	"encoding/json"
	"time"
)

// EvaluationEvent is the unit of work handed from the synchronous request
// path to the asynchronous evaluation phase. Delivery is at-least-once, so
// the event carries everything needed for the processor to be idempotent:
// a stable event id and an attempt counter stamped by the transport.
type EvaluationEvent struct {
	// ID is stable across redeliveries of the same event.
	ID string `json:"event_id"`

	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`

	// Query is the prompt the completions answered.
	Query string `json:"query"`

	// Reference is the text completions are scored against. For direct
	// runs this equals Query; for context-aware runs it is the (possibly
	// memory-augmented) context.
	Reference string `json:"reference"`

	// Completions is the full set of model completions to score.
	Completions []ModelCompletion `json:"completions"`

	// Attempt counts deliveries of this event, starting at 1. Set by the
	// transport, monotonically increasing across redeliveries.
	Attempt int `json:"attempt"`

	EmittedAt time.Time `json:"emitted_at"`
}

// MessageType labels a session/thread protocol message.
type MessageType string

const (
	// MessageContextRequest records that memory context was requested for
	// a thread before planning.
	MessageContextRequest MessageType = "context-request"
	// MessageCompletionReady records that a thread's completions were
	// collected and persisted.
	MessageCompletionReady MessageType = "completion-ready"
	// MessageEvaluationReady records that a thread's asynchronous
	// evaluation has started.
	MessageEvaluationReady MessageType = "evaluation-ready"
)

// Message is one session/thread protocol message. Messages are deduplicated
// by (thread id, message type): upstream delivery is at-least-once, so the
// same message may be recorded more than once and only the first write wins.
type Message struct {
	SessionID string          `json:"session_id"`
	ThreadID  string          `json:"thread_id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
