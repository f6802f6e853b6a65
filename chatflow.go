package chatflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/awoulbe/chatflow/internal/logging"
	"github.com/awoulbe/chatflow/internal/runtime"
	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/intent"
	"github.com/awoulbe/chatflow/pkg/observability"
	"github.com/awoulbe/chatflow/pkg/ports"
	"github.com/awoulbe/chatflow/pkg/registry"
	"github.com/awoulbe/chatflow/pkg/validation"
)

// Engine is the high-level entry point for the chatflow library.
// It wires the classifier, the validation engine and the workflow runtime
// behind a single message-oriented API.
type Engine struct {
	runtime    *runtime.Engine
	classifier *intent.Classifier
	validator  *validation.Engine

	handlers   *registry.HandlerRegistry
	validators *registry.ValidatorRegistry
	extractors *registry.ExtractorRegistry

	intents        []domain.IntentDefinition
	classifierOpts []intent.Option
	runtimeOpts    []runtime.Option
	validatorOpts  []validation.Option
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithIntents replaces the default intent catalog.
func WithIntents(defs []domain.IntentDefinition) Option {
	return func(e *Engine) {
		e.intents = defs
	}
}

// WithClassifierOptions forwards options to the intent classifier.
func WithClassifierOptions(opts ...intent.Option) Option {
	return func(e *Engine) {
		e.classifierOpts = append(e.classifierOpts, opts...)
	}
}

// WithValidationConfig sets the validation engine behavior.
func WithValidationConfig(cfg validation.Config) Option {
	return func(e *Engine) {
		e.validatorOpts = append(e.validatorOpts, validation.WithConfig(cfg))
	}
}

// WithLocker enables distributed locking for multi-instance deployments.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithLocker(l))
	}
}

// WithMetrics wires Prometheus instrumentation into every subsystem.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a chatflow Engine backed by the given context store.
func New(store ports.ContextStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("context store is required")
	}

	eng := &Engine{
		handlers:   registry.NewHandlerRegistry(),
		validators: registry.NewValidatorRegistry(),
		extractors: registry.NewExtractorRegistry(),
		intents:    intent.DefaultIntents(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	validatorOpts := append([]validation.Option{
		validation.WithResolver(eng.validators),
		validation.WithLogger(eng.logger),
	}, eng.validatorOpts...)
	eng.validator = validation.NewEngine(validatorOpts...)

	classifierOpts := append([]intent.Option{
		intent.WithExtractors(eng.extractors),
		intent.WithMetrics(eng.metrics),
		intent.WithLogger(eng.logger),
	}, eng.classifierOpts...)
	classifier, err := intent.NewClassifier(eng.intents, classifierOpts...)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}
	eng.classifier = classifier

	runtimeOpts := append([]runtime.Option{
		runtime.WithHandlers(eng.handlers),
		runtime.WithValidator(eng.validator),
		runtime.WithMetrics(eng.metrics),
		runtime.WithLogger(eng.logger),
	}, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(store, runtimeOpts...)

	return eng, nil
}

// Handlers returns the handler registry used by workflow states.
func (e *Engine) Handlers() *registry.HandlerRegistry { return e.handlers }

// Validators returns the custom validator registry.
func (e *Engine) Validators() *registry.ValidatorRegistry { return e.validators }

// Extractors returns the entity extractor registry.
func (e *Engine) Extractors() *registry.ExtractorRegistry { return e.extractors }

// Runtime exposes the underlying workflow engine for advanced callers.
func (e *Engine) Runtime() *runtime.Engine { return e.runtime }

// Classifier exposes the underlying intent classifier.
func (e *Engine) Classifier() *intent.Classifier { return e.classifier }

// RegisterWorkflow validates and registers a workflow definition.
func (e *Engine) RegisterWorkflow(def *domain.WorkflowDefinition) error {
	return e.runtime.RegisterWorkflow(def)
}

// Workflows lists the registered workflow definitions.
func (e *Engine) Workflows() []*domain.WorkflowDefinition {
	return e.runtime.Workflows()
}

// Classify resolves the intent of a raw message without touching any workflow.
func (e *Engine) Classify(ctx context.Context, message, userID string) *domain.Classification {
	return e.classifier.Classify(ctx, message, userID)
}

// StartWorkflow begins a workflow for the user, superseding any active one.
func (e *Engine) StartWorkflow(ctx context.Context, userID, workflowID string, initialData map[string]any) (*domain.StepResult, error) {
	return e.runtime.StartWorkflow(ctx, userID, workflowID, initialData)
}

// ExecuteStep feeds one message into the user's active workflow.
func (e *Engine) ExecuteStep(ctx context.Context, userID, input string) (*domain.StepResult, error) {
	return e.runtime.ExecuteStep(ctx, userID, input)
}

// CancelWorkflow terminates the user's active workflow, if any.
func (e *Engine) CancelWorkflow(ctx context.Context, userID, reason string) error {
	return e.runtime.CancelWorkflow(ctx, userID, reason)
}

// PauseWorkflow suspends the user's active workflow.
func (e *Engine) PauseWorkflow(ctx context.Context, userID string) error {
	return e.runtime.PauseWorkflow(ctx, userID)
}

// ResumeWorkflow reactivates a paused workflow and re-renders its prompt.
func (e *Engine) ResumeWorkflow(ctx context.Context, userID string) (*domain.StepResult, error) {
	return e.runtime.ResumeWorkflow(ctx, userID)
}

// Rollback rewinds the user's active workflow by n executed steps.
func (e *Engine) Rollback(ctx context.Context, userID string, n int) (*domain.StepResult, error) {
	return e.runtime.Rollback(ctx, userID, n)
}

// ActiveContext returns the user's current workflow context.
func (e *Engine) ActiveContext(ctx context.Context, userID string) (*domain.WorkflowContext, error) {
	return e.runtime.ActiveContext(ctx, userID)
}

// HandleMessage is the conversational entry point. When the user has an
// active workflow the message is executed as a step; otherwise the message
// is classified and the matching workflow is started. Messages that resolve
// to an intent without a workflow binding yield a nil result.
func (e *Engine) HandleMessage(ctx context.Context, userID, message string) (*domain.StepResult, *domain.Classification, error) {
	wctx, err := e.runtime.ActiveContext(ctx, userID)
	switch {
	case err == nil && wctx.Status == domain.StatusActive:
		res, stepErr := e.runtime.ExecuteStep(ctx, userID, message)
		return res, nil, stepErr
	case err != nil && !errors.Is(err, domain.ErrContextNotFound):
		return nil, nil, err
	}

	cls := e.classifier.Classify(ctx, message, userID)
	workflowID := cls.Primary.WorkflowID
	if workflowID == "" {
		return nil, cls, nil
	}

	data := make(map[string]any, len(cls.Entities))
	for _, ent := range cls.Entities {
		data[ent.Type] = ent.Value
	}
	res, err := e.runtime.StartWorkflow(ctx, userID, workflowID, data)
	if err != nil {
		return nil, cls, err
	}
	return res, cls, nil
}
