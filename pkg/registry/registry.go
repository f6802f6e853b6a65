// Package registry provides the named plugin registries of the chatflow core:
// handlers, custom validators and entity extractors. Registries are explicit
// objects constructed once at process start and injected into the engine and
// classifier; there is no module-level state.
package registry

import (
	"sync"

	"github.com/awoulbe/chatflow/pkg/ports"
	"github.com/awoulbe/chatflow/pkg/validation"
)

// HandlerRegistry manages the available workflow handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ports.Handler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ports.Handler)}
}

// Register adds a handler. An existing handler with the same name is
// overwritten.
func (r *HandlerRegistry) Register(name string, h ports.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Resolve looks a handler up by name.
func (r *HandlerRegistry) Resolve(name string) (ports.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered handler names.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// ValidatorRegistry manages custom validators. It implements
// validation.ValidatorResolver.
type ValidatorRegistry struct {
	mu         sync.RWMutex
	validators map[string]validation.CustomValidator
}

// NewValidatorRegistry creates an empty validator registry.
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{validators: make(map[string]validation.CustomValidator)}
}

// Register adds a custom validator under a name.
func (r *ValidatorRegistry) Register(name string, v validation.CustomValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = v
}

// ResolveValidator implements validation.ValidatorResolver.
func (r *ValidatorRegistry) ResolveValidator(name string) (validation.CustomValidator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	return v, ok
}

// RegisteredExtractor pairs an entity type with its extractor.
type RegisteredExtractor struct {
	Type      string
	Extractor ports.EntityExtractor
}

// ExtractorRegistry manages entity extractors keyed by entity type.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors map[string]ports.EntityExtractor
	order      []string
}

// NewExtractorRegistry creates an empty extractor registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{extractors: make(map[string]ports.EntityExtractor)}
}

// Register adds an extractor for an entity type. Registration order is
// preserved for deterministic extraction runs.
func (r *ExtractorRegistry) Register(entityType string, ex ports.EntityExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.extractors[entityType]; !exists {
		r.order = append(r.order, entityType)
	}
	r.extractors[entityType] = ex
}

// All returns the registered extractors in registration order.
func (r *ExtractorRegistry) All() []RegisteredExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredExtractor, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, RegisteredExtractor{Type: t, Extractor: r.extractors[t]})
	}
	return out
}
