package domain

import (
	"errors"
	"fmt"
)

// ErrContextNotFound is returned when a user has no persisted workflow context.
var ErrContextNotFound = errors.New("workflow context not found")

// ErrWorkflowNotFound is returned when a workflow id is not registered.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrWorkflowInactive is returned when starting a workflow whose definition is
// disabled.
var ErrWorkflowInactive = errors.New("workflow is inactive")

// ErrNotPaused is returned when resuming a context that is not paused.
var ErrNotPaused = errors.New("workflow is not paused")

// ErrContextPaused is returned when stepping a paused context.
var ErrContextPaused = errors.New("workflow context is paused")

// ErrContextTerminal is returned when stepping a context that already reached
// a terminal status.
var ErrContextTerminal = errors.New("workflow context is terminal")

// ErrStateTimeout is returned when a step arrives after the state deadline.
var ErrStateTimeout = errors.New("state deadline exceeded")

// DefinitionError reports a malformed workflow or intent definition. It is
// fatal at registration time: the engine never becomes operational with a
// broken definition.
type DefinitionError struct {
	Kind   string // "workflow" or "intent"
	ID     string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid %s definition %q: %s", e.Kind, e.ID, e.Reason)
}
