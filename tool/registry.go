package tool

import (
	"context"
	"sync"

	ai "github.com/spetersoncode/strand"
)

// registeredTool combines an executor with its registration options.
type registeredTool struct {
	handler       Handler
	description   string
	fireAndForget bool
}

// Option configures a tool registration.
type Option func(*registeredTool)

// WithDescription attaches a human-readable description to a registration.
func WithDescription(desc string) Option {
	return func(rt *registeredTool) {
		rt.description = desc
	}
}

// FireAndForget marks the tool as fire-and-forget: Execute starts the
// handler without awaiting it and immediately reports no result. Failures
// inside the handler are not observed by the registry.
func FireAndForget() Option {
	return func(rt *registeredTool) {
		rt.fireAndForget = true
	}
}

// Registry manages registered tools and their executors.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool executor under a name.
// Returns ErrToolAlreadyRegistered if the name is taken; unregister first
// to replace an executor.
func (r *Registry) Register(name string, handler Handler, opts ...Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return &ErrToolAlreadyRegistered{Name: name}
	}

	rt := registeredTool{handler: handler}
	for _, opt := range opts {
		opt(&rt)
	}
	r.tools[name] = rt
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, handler Handler, opts ...Option) {
	if err := r.Register(name, handler, opts...); err != nil {
		panic(err)
	}
}

// Unregister removes a tool from the registry.
// Returns true if the tool was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.tools[name]
	delete(r.tools, name)
	return existed
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Description returns the registered description for name, or "".
func (r *Registry) Description(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name].description
}

// Names returns the names of all registered tools, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the executor registered for the call's tool name.
//
// The second return value reports whether a result was produced: it is
// false when the name is unregistered or the tool is fire-and-forget.
// An unregistered name is not an error. For fire-and-forget tools the
// handler is started in its own goroutine and Execute returns immediately;
// a panicking handler must not crash the calling context, so the goroutine
// recovers.
func (r *Registry) Execute(ctx context.Context, call ai.ToolCallInfo) (string, bool, error) {
	r.mu.RLock()
	rt, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	if rt.fireAndForget {
		go func() {
			defer func() {
				_ = recover()
			}()
			_, _ = rt.handler(ctx, call)
		}()
		return "", false, nil
	}

	result, err := rt.handler(ctx, call)
	if err != nil {
		return "", false, &ErrToolExecution{Name: call.Name, Err: err}
	}
	return result, true, nil
}

// ExecuteOrDefault is like Execute but returns def when the tool is
// unregistered or produces no result.
func (r *Registry) ExecuteOrDefault(ctx context.Context, call ai.ToolCallInfo, def string) (string, error) {
	result, ok, err := r.Execute(ctx, call)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return result, nil
}
