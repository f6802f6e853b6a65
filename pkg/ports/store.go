package ports

import (
	"context"

	"github.com/awoulbe/chatflow/pkg/domain"
)

// ContextStore defines the persistence contract for workflow contexts. The
// store is the single source of truth for a user's active workflow; the
// engine persists after every step and treats save failures as fatal for
// that step.
type ContextStore interface {
	// Save persists the context for a user, replacing any previous snapshot.
	Save(ctx context.Context, userID string, wctx *domain.WorkflowContext) error

	// Load retrieves the context for a user.
	// Returns domain.ErrContextNotFound when the user has none.
	Load(ctx context.Context, userID string) (*domain.WorkflowContext, error)

	// Delete removes the context for a user.
	Delete(ctx context.Context, userID string) error

	// List returns the user ids with a stored context.
	List(ctx context.Context) ([]string, error)
}
