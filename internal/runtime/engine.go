// Package runtime implements the workflow state-machine engine: registration
// of workflow definitions, the per-message step cycle, transition resolution
// and the context lifecycle operations (start, cancel, pause, resume,
// rollback).
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/awoulbe/chatflow/internal/logging"
	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/expr"
	"github.com/awoulbe/chatflow/pkg/observability"
	"github.com/awoulbe/chatflow/pkg/ports"
	"github.com/awoulbe/chatflow/pkg/registry"
	"github.com/awoulbe/chatflow/pkg/session"
	"github.com/awoulbe/chatflow/pkg/validation"
)

// compiledWorkflow pairs a validated definition with its pre-compiled
// transition conditions, keyed by transition index.
type compiledWorkflow struct {
	def   *domain.WorkflowDefinition
	conds map[int]*expr.Expr
}

// Engine executes workflow steps. All lifecycle operations for one user are
// serialized through the session manager; different users proceed in
// parallel.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*compiledWorkflow

	sessions  *session.Manager
	locker    ports.DistributedLocker
	handlers  *registry.HandlerRegistry
	validator *validation.Engine
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithHandlers injects the handler registry.
func WithHandlers(h *registry.HandlerRegistry) Option {
	return func(e *Engine) { e.handlers = h }
}

// WithValidator injects the validation engine used for state input rules.
func WithValidator(v *validation.Engine) Option {
	return func(e *Engine) { e.validator = v }
}

// WithLocker enables distributed locking on the session manager.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a workflow engine over the given context store.
func NewEngine(store ports.ContextStore, opts ...Option) *Engine {
	e := &Engine{
		workflows: make(map[string]*compiledWorkflow),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.handlers == nil {
		e.handlers = registry.NewHandlerRegistry()
	}
	if e.validator == nil {
		e.validator = validation.NewEngine()
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(store, sessionOpts...)
	return e
}

// RegisterWorkflow validates and installs a definition. Violations are fatal
// here: a broken definition never becomes executable.
func (e *Engine) RegisterWorkflow(def *domain.WorkflowDefinition) error {
	cw, err := compileWorkflow(def)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[def.ID] = cw
	e.logger.Info("workflow registered", "workflow_id", def.ID, "states", len(def.States))
	return nil
}

// compileWorkflow checks definition invariants and pre-compiles transition
// conditions.
func compileWorkflow(def *domain.WorkflowDefinition) (*compiledWorkflow, error) {
	if def.ID == "" {
		return nil, &domain.DefinitionError{Kind: "workflow", ID: def.ID, Reason: "id is required"}
	}
	if def.Name == "" {
		return nil, &domain.DefinitionError{Kind: "workflow", ID: def.ID, Reason: "name is required"}
	}
	if len(def.States) == 0 {
		return nil, &domain.DefinitionError{Kind: "workflow", ID: def.ID, Reason: "at least one state is required"}
	}
	if def.StateByID(def.InitialState) == nil {
		return nil, &domain.DefinitionError{
			Kind: "workflow", ID: def.ID,
			Reason: fmt.Sprintf("initial state %q is not declared", def.InitialState),
		}
	}

	declared := make(map[string]bool, len(def.States))
	for i := range def.States {
		s := &def.States[i]
		if s.ID == "" {
			return nil, &domain.DefinitionError{Kind: "workflow", ID: def.ID, Reason: "state with empty id"}
		}
		if declared[s.ID] {
			return nil, &domain.DefinitionError{
				Kind: "workflow", ID: def.ID,
				Reason: fmt.Sprintf("duplicate state id %q", s.ID),
			}
		}
		declared[s.ID] = true
	}

	for i := range def.States {
		s := &def.States[i]
		if s.NextState != "" && !declared[s.NextState] {
			return nil, &domain.DefinitionError{
				Kind: "workflow", ID: def.ID,
				Reason: fmt.Sprintf("state %q: next state %q is not declared", s.ID, s.NextState),
			}
		}
	}

	cw := &compiledWorkflow{def: def, conds: make(map[int]*expr.Expr)}
	for i, t := range def.Transitions {
		if !declared[t.From] {
			return nil, &domain.DefinitionError{
				Kind: "workflow", ID: def.ID,
				Reason: fmt.Sprintf("transition %d: source %q is not declared", i, t.From),
			}
		}
		if !declared[t.To] {
			return nil, &domain.DefinitionError{
				Kind: "workflow", ID: def.ID,
				Reason: fmt.Sprintf("transition %d: destination %q is not declared", i, t.To),
			}
		}
		if t.Condition != "" {
			compiled, err := expr.Parse(t.Condition)
			if err != nil {
				return nil, &domain.DefinitionError{
					Kind: "workflow", ID: def.ID,
					Reason: fmt.Sprintf("transition %d: invalid condition: %v", i, err),
				}
			}
			cw.conds[i] = compiled
		}
	}
	return cw, nil
}

// Workflow returns a registered definition by id.
func (e *Engine) Workflow(id string) (*domain.WorkflowDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cw, ok := e.workflows[id]
	if !ok {
		return nil, false
	}
	return cw.def, true
}

// Workflows lists the registered definitions.
func (e *Engine) Workflows() []*domain.WorkflowDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	defs := make([]*domain.WorkflowDefinition, 0, len(e.workflows))
	for _, cw := range e.workflows {
		defs = append(defs, cw.def)
	}
	return defs
}

func (e *Engine) compiled(id string) (*compiledWorkflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cw, ok := e.workflows[id]
	return cw, ok
}

// StartWorkflow creates a fresh context for the user and executes the initial
// step so the first prompt is produced. A pre-existing active context for the
// same user is superseded: it is cancelled and persisted before the new one
// takes its place.
func (e *Engine) StartWorkflow(ctx context.Context, userID, workflowID string, initialData map[string]any) (*domain.StepResult, error) {
	cw, ok := e.compiled(workflowID)
	if !ok {
		return nil, fmt.Errorf("start workflow %q: %w", workflowID, domain.ErrWorkflowNotFound)
	}
	if !cw.def.Active {
		return nil, fmt.Errorf("start workflow %q: %w", workflowID, domain.ErrWorkflowInactive)
	}

	var result *domain.StepResult
	err := e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		store := e.sessions.Store()

		existing, err := store.Load(ctx, userID)
		if err != nil && err != domain.ErrContextNotFound {
			return fmt.Errorf("load existing context: %w", err)
		}
		if existing != nil && !existing.Status.IsTerminal() {
			existing.Terminate(domain.StatusCancelled, "superseded by new workflow")
			if err := store.Save(ctx, userID, existing); err != nil {
				return fmt.Errorf("cancel superseded context: %w", err)
			}
			e.metrics.ContextFinished()
			e.logger.Info("superseded active workflow",
				"user_id", userID, "workflow_id", existing.WorkflowID, "state", existing.CurrentState)
		}

		wctx := domain.NewContext(userID, workflowID, cw.def.InitialState)
		wctx.MergeData(initialData)

		// The gauge goes up before the first step runs: step decrements it
		// when the workflow terminates, which can happen within this step.
		e.metrics.ContextStarted()
		result, err = e.step(ctx, cw, wctx, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteStep advances the user's active workflow with one inbound message.
func (e *Engine) ExecuteStep(ctx context.Context, userID, input string) (*domain.StepResult, error) {
	var result *domain.StepResult
	err := e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		wctx, err := e.sessions.Store().Load(ctx, userID)
		if err != nil {
			return err
		}
		if wctx.Status != domain.StatusActive {
			if wctx.Status == domain.StatusPaused {
				return fmt.Errorf("workflow %q: %w", wctx.WorkflowID, domain.ErrContextPaused)
			}
			return fmt.Errorf("workflow %q: %w", wctx.WorkflowID, domain.ErrContextTerminal)
		}
		cw, ok := e.compiled(wctx.WorkflowID)
		if !ok {
			return fmt.Errorf("step workflow %q: %w", wctx.WorkflowID, domain.ErrWorkflowNotFound)
		}
		result, err = e.step(ctx, cw, wctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActiveContext returns the user's current context.
func (e *Engine) ActiveContext(ctx context.Context, userID string) (*domain.WorkflowContext, error) {
	return e.sessions.Load(ctx, userID)
}

// CancelWorkflow marks the user's context cancelled with a reason and
// persists it. Cancellation is cooperative: an in-flight step is not
// interrupted, but no further step will proceed.
func (e *Engine) CancelWorkflow(ctx context.Context, userID, reason string) error {
	return e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		wctx, err := e.sessions.Store().Load(ctx, userID)
		if err != nil {
			return err
		}
		if wctx.Status.IsTerminal() {
			return fmt.Errorf("cancel workflow %q: %w", wctx.WorkflowID, domain.ErrContextTerminal)
		}
		wctx.Terminate(domain.StatusCancelled, reason)
		if err := e.sessions.Store().Save(ctx, userID, wctx); err != nil {
			return fmt.Errorf("persist cancelled context: %w", err)
		}
		e.metrics.ContextFinished()
		e.logger.Info("workflow cancelled", "user_id", userID, "workflow_id", wctx.WorkflowID, "reason", reason)
		return nil
	})
}

// PauseWorkflow suspends an active context.
func (e *Engine) PauseWorkflow(ctx context.Context, userID string) error {
	return e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		wctx, err := e.sessions.Store().Load(ctx, userID)
		if err != nil {
			return err
		}
		if wctx.Status != domain.StatusActive {
			return fmt.Errorf("pause workflow %q: status %s", wctx.WorkflowID, wctx.Status)
		}
		wctx.Status = domain.StatusPaused
		wctx.UpdatedAt = time.Now()
		return e.sessions.Store().Save(ctx, userID, wctx)
	})
}

// ResumeWorkflow reactivates a paused context and returns the prompt of the
// current state so the conversation can pick up where it stopped.
func (e *Engine) ResumeWorkflow(ctx context.Context, userID string) (*domain.StepResult, error) {
	var result *domain.StepResult
	err := e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		wctx, err := e.sessions.Store().Load(ctx, userID)
		if err != nil {
			return err
		}
		if wctx.Status != domain.StatusPaused {
			return fmt.Errorf("resume workflow %q: %w", wctx.WorkflowID, domain.ErrNotPaused)
		}
		cw, ok := e.compiled(wctx.WorkflowID)
		if !ok {
			return fmt.Errorf("resume workflow %q: %w", wctx.WorkflowID, domain.ErrWorkflowNotFound)
		}

		wctx.Status = domain.StatusActive
		wctx.StateEnteredAt = time.Now()
		wctx.UpdatedAt = wctx.StateEnteredAt
		if err := e.sessions.Store().Save(ctx, userID, wctx); err != nil {
			return fmt.Errorf("persist resumed context: %w", err)
		}

		state := cw.def.StateByID(wctx.CurrentState)
		message := ""
		if state != nil {
			message = renderPrompt(state.Prompt, wctx.Data)
		}
		result = &domain.StepResult{
			Success: true,
			Message: message,
			StateID: wctx.CurrentState,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rollback pops the last n history entries and recomputes the current state
// from the new tail of history, or the initial state when history is emptied.
// It returns the prompt of the resulting state.
func (e *Engine) Rollback(ctx context.Context, userID string, n int) (*domain.StepResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("rollback: steps must be positive, got %d", n)
	}

	var result *domain.StepResult
	err := e.sessions.WithLock(ctx, userID, func(ctx context.Context) error {
		wctx, err := e.sessions.Store().Load(ctx, userID)
		if err != nil {
			return err
		}
		if wctx.Status.IsTerminal() {
			return fmt.Errorf("rollback workflow %q: %w", wctx.WorkflowID, domain.ErrContextTerminal)
		}
		cw, ok := e.compiled(wctx.WorkflowID)
		if !ok {
			return fmt.Errorf("rollback workflow %q: %w", wctx.WorkflowID, domain.ErrWorkflowNotFound)
		}

		if n > len(wctx.History) {
			n = len(wctx.History)
		}
		wctx.History = wctx.History[:len(wctx.History)-n]

		if len(wctx.History) > 0 {
			wctx.CurrentState = wctx.History[len(wctx.History)-1].StateID
		} else {
			wctx.CurrentState = cw.def.InitialState
		}
		wctx.Status = domain.StatusActive
		wctx.StateEnteredAt = time.Now()
		wctx.UpdatedAt = wctx.StateEnteredAt

		if err := e.sessions.Store().Save(ctx, userID, wctx); err != nil {
			return fmt.Errorf("persist rolled back context: %w", err)
		}

		state := cw.def.StateByID(wctx.CurrentState)
		message := ""
		if state != nil {
			message = renderPrompt(state.Prompt, wctx.Data)
		}
		result = &domain.StepResult{
			Success: true,
			Message: message,
			StateID: wctx.CurrentState,
		}
		e.logger.Info("workflow rolled back",
			"user_id", userID, "workflow_id", wctx.WorkflowID, "steps", n, "state", wctx.CurrentState)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Sessions exposes the session manager, mainly for the facade and tests.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}
