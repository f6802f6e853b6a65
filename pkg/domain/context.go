package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status describes the lifecycle of a workflow context.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further steps may execute on this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Step is one append-only history entry of a workflow context.
type Step struct {
	StateID   string        `json:"state_id"`
	Timestamp time.Time     `json:"timestamp"`
	Input     string        `json:"input,omitempty"`
	Output    string        `json:"output,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// WorkflowContext is the live, per-user instance of a workflow in progress.
// A user has at most one active context at a time. It is owned exclusively by
// the workflow engine while active and persisted after every step.
type WorkflowContext struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	WorkflowID   string         `json:"workflow_id"`
	CurrentState string         `json:"current_state"`
	Data         map[string]any `json:"data"`
	History      []Step         `json:"history"`
	Status       Status         `json:"status"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is set when the context reaches a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// StateEnteredAt tracks when the current state was entered, for state
	// timeout enforcement.
	StateEnteredAt time.Time `json:"state_entered_at"`

	Error string `json:"error,omitempty"`
}

// NewContext creates a fresh active context positioned at the given state.
func NewContext(userID, workflowID, initialState string) *WorkflowContext {
	now := time.Now()
	return &WorkflowContext{
		ID:             uuid.NewString(),
		UserID:         userID,
		WorkflowID:     workflowID,
		CurrentState:   initialState,
		Data:           make(map[string]any),
		Status:         StatusActive,
		StartedAt:      now,
		UpdatedAt:      now,
		StateEnteredAt: now,
	}
}

// Visited reports whether history already contains a step for the state.
// Input and decision states use this to distinguish the prompt-only first
// visit from the input-bearing second visit.
func (c *WorkflowContext) Visited(stateID string) bool {
	for i := range c.History {
		if c.History[i].StateID == stateID {
			return true
		}
	}
	return false
}

// AppendStep records a history entry and bumps the update timestamp.
func (c *WorkflowContext) AppendStep(step Step) {
	c.History = append(c.History, step)
	c.UpdatedAt = step.Timestamp
}

// SetData writes a key into the accumulated data, overwriting prior values.
func (c *WorkflowContext) SetData(key string, value any) {
	if c.Data == nil {
		c.Data = make(map[string]any)
	}
	c.Data[key] = value
}

// MergeData copies all entries of data into the context, overwriting
// existing keys.
func (c *WorkflowContext) MergeData(data map[string]any) {
	for k, v := range data {
		c.SetData(k, v)
	}
}

// Terminate moves the context to a terminal status and stamps completion.
func (c *WorkflowContext) Terminate(status Status, errMsg string) {
	now := time.Now()
	c.Status = status
	c.Error = errMsg
	c.UpdatedAt = now
	c.CompletedAt = &now
}

// Clone returns a deep copy of the context, isolating data and history so a
// stored snapshot cannot be mutated through a live pointer.
func (c *WorkflowContext) Clone() *WorkflowContext {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Data = make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		cp.Data[k] = v
	}
	cp.History = make([]Step, len(c.History))
	copy(cp.History, c.History)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
