// Package handler implements the immutable-after-construction mapping from
// job type to Handler.
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

// Outcome is the result of a single handler invocation.
type Outcome struct {
	Result  job.Result
	Err     error // nil on success
}

// Handler computes a job's result. Implementations must be safe to invoke
// concurrently from multiple workers.
type Handler interface {
	Handle(ctx context.Context, j *job.Job) (job.Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, j *job.Job) (job.Result, error)

func (f HandlerFunc) Handle(ctx context.Context, j *job.Job) (job.Result, error) {
	return f(ctx, j)
}

// Registry maps job_type -> Handler. Registration must happen before the
// supervisor starts dispatching; lookups are safe for concurrent use by
// every worker actor that shares the registry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for job_type. It returns an error if job_type is
// already registered.
func (r *Registry) Register(jobType string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[jobType]; ok {
		return fmt.Errorf("handler %q already registered", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Lookup returns the handler for job_type, if any.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}
