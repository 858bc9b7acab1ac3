package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition indicates an attempted thread state change that the
// lifecycle state machine does not permit.
var ErrInvalidTransition = errors.New("invalid thread state transition")

// ThreadState tracks where a thread sits in the comparison lifecycle.
//
// The normal progression is Created → Dispatched → AwaitingEvaluation →
// PartiallyEvaluated → Evaluated. Failed is a parallel terminal state
// reachable from any non-terminal state on an unrecoverable persistence
// error.
type ThreadState string

const (
	// ThreadCreated means the thread exists but no models have been called.
	ThreadCreated ThreadState = "created"
	// ThreadDispatched means completions have been collected and persisted.
	ThreadDispatched ThreadState = "dispatched"
	// ThreadAwaitingEvaluation means the evaluation event has been emitted
	// and the asynchronous phase has not started.
	ThreadAwaitingEvaluation ThreadState = "awaiting_evaluation"
	// ThreadPartiallyEvaluated means at least one score has been persisted
	// but not all completions are fully scored.
	ThreadPartiallyEvaluated ThreadState = "partially_evaluated"
	// ThreadEvaluated is the terminal success state.
	ThreadEvaluated ThreadState = "evaluated"
	// ThreadFailed is the terminal failure state.
	ThreadFailed ThreadState = "failed"
)

// validTransitions encodes the lifecycle state machine. Failed is reachable
// from every non-terminal state and is handled in CanTransition directly.
var validTransitions = map[ThreadState][]ThreadState{
	ThreadCreated:            {ThreadDispatched},
	ThreadDispatched:         {ThreadAwaitingEvaluation},
	ThreadAwaitingEvaluation: {ThreadPartiallyEvaluated, ThreadEvaluated},
	ThreadPartiallyEvaluated: {ThreadEvaluated},
}

// Terminal reports whether the state admits no further transitions.
func (s ThreadState) Terminal() bool {
	return s == ThreadEvaluated || s == ThreadFailed
}

// CanTransition reports whether the state machine permits moving from s
// to the target state.
func (s ThreadState) CanTransition(to ThreadState) bool {
	if s.Terminal() {
		return false
	}
	if to == ThreadFailed {
		return true
	}
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one comparison run. It owns one or more threads and is never
// mutated after its threads reach a terminal state.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is a single conversation context within a session. It carries the
// original request text and accumulates per-model results as the pipeline
// progresses.
type Thread struct {
	ID           string      `json:"thread_id"`
	SessionID    string      `json:"session_id"`
	Prompt       string      `json:"prompt"`
	Context      string      `json:"context,omitempty"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	UseCase      UseCase     `json:"use_case"`
	State        ThreadState `json:"state"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Transition moves the thread to the target state, enforcing the lifecycle
// state machine.
func (t *Thread) Transition(to ThreadState) error {
	if !t.State.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
	}
	t.State = to
	return nil
}

// ThreadResults is the polling view of a thread: the completions plus
// whatever evaluation, judge, and reflection results exist so far. Absent
// phases are empty maps, not errors; entries only ever accumulate.
type ThreadResults struct {
	Thread      Thread                      `json:"thread"`
	Completions []ModelCompletion           `json:"completions"`
	Evaluations map[string]EvaluationResult `json:"evaluations,omitempty"`
	Judgements  map[string]JudgeResult      `json:"judgements,omitempty"`
	Reflections map[string]Reflection       `json:"reflections,omitempty"`
}
