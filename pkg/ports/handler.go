package ports

import (
	"context"

	"github.com/awoulbe/chatflow/pkg/domain"
)

// Handler is a named, pluggable unit of business logic invoked by
// processing, output and ai_processing states, and by entry/exit hooks.
//
// A nil error means the step may proceed with the returned result. A non-nil
// error marks the step failed: the state does not advance and the error
// message is surfaced as the step error (never the raw internal text to the
// user).
type Handler interface {
	Execute(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
	return f(ctx, wctx, input)
}

// EntityExtractor produces typed entities from free text. Extractors are
// registered by entity type; a failing extractor is logged and skipped, it
// never aborts classification.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]domain.Entity, error)
}

// EntityExtractorFunc adapts a function to the EntityExtractor interface.
type EntityExtractorFunc func(ctx context.Context, text string) ([]domain.Entity, error)

// Extract implements EntityExtractor.
func (f EntityExtractorFunc) Extract(ctx context.Context, text string) ([]domain.Entity, error) {
	return f(ctx, text)
}
