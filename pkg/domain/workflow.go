package domain

import (
	"time"

	"github.com/awoulbe/chatflow/pkg/validation"
)

// StateType constants define how the engine handles a state on each step.
const (
	// StateInput prompts on first visit, then collects and validates input.
	StateInput = "input"
	// StateValidation validates input immediately, without a prompt-only pass.
	StateValidation = "validation"
	// StateProcessing runs a named handler (or just renders and advances).
	StateProcessing = "processing"
	// StateOutput emits a message and always advances.
	StateOutput = "output"
	// StateDecision prompts on first visit, then stores the user's choice.
	StateDecision = "decision"
	// StateAIProcessing defers to a named handler; without one it waits.
	StateAIProcessing = "ai_processing"
	// StateCompleted is the terminal success state.
	StateCompleted = "completed"
	// StateCancelled is the terminal cancellation state.
	StateCancelled = "cancelled"
)

// State is one step of a workflow definition.
type State struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`

	// Prompt is the message template shown to the user. {{key}} tokens are
	// interpolated from the context data.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`

	// Rules are applied to the user input on input/validation/decision states.
	Rules []validation.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`

	// Handler names the business-logic unit to invoke. Unresolved names are
	// treated as "no handler".
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty"`

	// NextState is the fallback destination when no transition matches.
	NextState string `json:"next_state,omitempty" yaml:"next_state,omitempty"`

	// OnEntry and OnExit name hook handlers run around state execution.
	OnEntry string `json:"on_entry,omitempty" yaml:"on_entry,omitempty"`
	OnExit  string `json:"on_exit,omitempty" yaml:"on_exit,omitempty"`

	// Timeout bounds how long the workflow may sit in this state. A step
	// arriving after the deadline fails and the context is marked failed.
	// Zero means no deadline.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// IsTerminal reports whether the state ends the workflow.
func (s *State) IsTerminal() bool {
	return s.Type == StateCompleted || s.Type == StateCancelled
}

// Transition is a conditioned or unconditioned edge between two states.
type Transition struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Condition is a boolean expression over context data, e.g.
	// `data.amount > 1000 && data.currency == "XAF"`. Empty means always.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Priority orders evaluation among transitions from the same state.
	// Higher wins.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// WorkflowDefinition is the immutable template of a guided interaction.
// It is validated once at registration and never mutated afterward.
type WorkflowDefinition struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Version      string       `json:"version,omitempty" yaml:"version,omitempty"`
	InitialState string       `json:"initial_state" yaml:"initial_state"`
	States       []State      `json:"states" yaml:"states"`
	Transitions  []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Active       bool         `json:"active" yaml:"active"`
}

// StateByID returns the declared state with the given id, or nil.
func (d *WorkflowDefinition) StateByID(id string) *State {
	for i := range d.States {
		if d.States[i].ID == id {
			return &d.States[i]
		}
	}
	return nil
}
