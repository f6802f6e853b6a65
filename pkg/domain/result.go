package domain

// HandlerResult is the successful outcome of a handler invocation. Failure is
// expressed through the error return of Handler.Execute, so call sites always
// face exactly two cases: a result, or an error.
type HandlerResult struct {
	// Output is the user-facing message produced by the handler, if any.
	Output string

	// Data is merged into the workflow context after the step.
	Data map[string]any

	// NextState overrides transition resolution when set. It must name a
	// declared state of the workflow; an unknown name fails the step.
	NextState string
}

// StepResult describes the outcome of one engine step.
type StepResult struct {
	// Success is false when validation failed, a handler errored, or the
	// state deadline expired. The state does not advance on failure.
	Success bool `json:"success"`

	// Message is the user-facing text for this step: a prompt, a validation
	// message, handler output, or a generic retry message. It never carries
	// internal error detail.
	Message string `json:"message,omitempty"`

	// Completed is true when the workflow reached a terminal state.
	Completed bool `json:"completed"`

	// StateID is the context's current state after the step.
	StateID string `json:"state_id"`

	// Data holds values produced by this step (validated input, handler data).
	Data map[string]any `json:"data,omitempty"`
}
