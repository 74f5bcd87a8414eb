package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// TaskInvoker executes a named remote operation with a document payload and
// returns its result synchronously. The calling phase does not proceed until
// the result is available; retries, if any, are the invoker's own concern.
type TaskInvoker interface {
	Invoke(ctx context.Context, name string, payload Document) (Document, error)
}

// HandlerFunc implements a single named operation.
type HandlerFunc func(ctx context.Context, payload Document) (Document, error)

// InvocationError reports a failed task invocation along with the operation
// that failed.
type InvocationError struct {
	Operation string
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Operation, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Registry is an in-process TaskInvoker that dispatches operations by name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds an operation name to a handler, replacing any previous
// binding.
func (r *Registry) Register(name string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Invoke dispatches the named operation. Unknown operations and handler
// failures are reported as InvocationError.
func (r *Registry) Invoke(ctx context.Context, name string, payload Document) (Document, error) {
	logger := zerolog.Ctx(ctx)

	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &InvocationError{
			Operation: name,
			Err:       fmt.Errorf("no handler registered"),
		}
	}

	logger.Info().
		Str("operation", name).
		Msg("Invoking task")

	result, err := handler(ctx, payload)
	if err != nil {
		return nil, &InvocationError{Operation: name, Err: err}
	}

	return result, nil
}
