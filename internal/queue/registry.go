package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phrazzld/drift/internal/domain"
)

// Executor performs the actual side effect for one task type: an HTTP
// call, a data sync routine, a file transfer, a compute-heavy analysis, a
// backup. The engine depends only on this contract, never on transport
// details. Executors must not retry internally; retry policy belongs to
// the engine's scheduler.
// Version: 1.0
type Executor interface {
	Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

// ExecutorRegistry maps each task type to its executor. Registration is
// validated against the closed task type set, so an invalid tag fails at
// wiring time instead of surfacing later as a dispatch error.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[domain.TaskType]Executor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[domain.TaskType]Executor),
	}
}

// Register binds an executor to a task type. It rejects types outside the
// closed set, nil executors, and duplicate registrations.
func (r *ExecutorRegistry) Register(t domain.TaskType, ex Executor) error {
	if !t.IsValid() {
		return fmt.Errorf("%w: cannot register executor for %q", domain.ErrUnknownType, t)
	}
	if ex == nil {
		return fmt.Errorf("executor for %q is nil", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[t]; exists {
		return fmt.Errorf("executor for %q already registered", t)
	}
	r.executors[t] = ex
	return nil
}

// Resolve returns the executor for a task type. A type with no registered
// executor is a terminal failure: the caller drops the item and reports
// it, never silently ignores it.
func (r *ExecutorRegistry) Resolve(t domain.TaskType) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownType, t)
	}
	return ex, nil
}

// Types returns the task types with a registered executor.
func (r *ExecutorRegistry) Types() []domain.TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TaskType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	return out
}
