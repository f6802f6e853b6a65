// Package memory provides an in-memory ContextStore, used by tests and the
// CLI demo.
package memory

import (
	"context"
	"sync"

	"github.com/awoulbe/chatflow/pkg/domain"
)

// Store implements ports.ContextStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.WorkflowContext
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.WorkflowContext),
	}
}

// Save persists the context in memory. The snapshot is deep-copied so later
// mutations of the live context do not leak into the store.
func (s *Store) Save(ctx context.Context, userID string, wctx *domain.WorkflowContext) error {
	snapshot := wctx.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = snapshot
	return nil
}

// Load retrieves a copy of the stored context.
func (s *Store) Load(ctx context.Context, userID string) (*domain.WorkflowContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wctx, ok := s.data[userID]
	if !ok {
		return nil, domain.ErrContextNotFound
	}
	return wctx.Clone(), nil
}

// Delete removes the stored context.
func (s *Store) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

// List returns the users with a stored context.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.data))
	for id := range s.data {
		users = append(users, id)
	}
	return users, nil
}
