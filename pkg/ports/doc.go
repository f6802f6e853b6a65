/*
Package ports defines the driven ports (interfaces) of the chatflow core.

These interfaces decouple the engine and classifier from external
implementations, allowing different context stores (memory, Redis), locking
strategies and plugin registries to be swapped without touching the core.

# Key Interfaces

  - ContextStore: persists the per-user workflow context.
  - DistributedLocker: serializes step execution across replicas.
  - Handler: named business logic invoked by processing/output states.
  - EntityExtractor: pluggable entity extraction for the classifier.
*/
package ports
