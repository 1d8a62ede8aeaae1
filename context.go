package beacon

import (
	"context"
	"sync"
)

// TraceContext records which trace is "current" for one logical unit of
// work: one HTTP request, one queue-job execution. It is not a process
// global. Create one per unit of work (or bind one per worker) and clear it
// when the unit finishes, or context leaks into unrelated later work that
// reuses the same worker.
//
// State machine: empty --Set/Restore--> active --Clear--> empty. Set and
// Restore overwrite unconditionally; there is no nesting or stacking.
//
// ToMap/Restore form the hand-off protocol across asynchronous boundaries:
// serialize before queueing deferred work, restore inside the worker. Each
// hop is a plain capture/restore pair, so chaining to any depth works
// without reference to prior hops.
type TraceContext struct {
	// Guarded: a context can leak across goroutines by accident and locking
	// is cheaper than the resulting bug report. The type is still scoped
	// per logical unit of work, not a shared concurrency primitive.
	mu       sync.Mutex
	traceID  string
	stepID   string
	metadata map[string]any
}

// NewTraceContext creates an empty context.
func NewTraceContext() *TraceContext {
	return &TraceContext{}
}

// Set makes the given trace current, overwriting any existing context.
// Last write wins.
func (c *TraceContext) Set(traceID, stepID string, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traceID = traceID
	c.stepID = stepID
	c.metadata = copyMeta(metadata)
}

// TraceID returns the current trace identity, or "" when empty.
func (c *TraceContext) TraceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceID
}

// StepID returns the current step identity, or "" when none.
func (c *TraceContext) StepID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepID
}

// Metadata returns a copy of the current metadata.
func (c *TraceContext) Metadata() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMeta(c.metadata)
}

// HasActiveTrace reports whether a trace is current.
func (c *TraceContext) HasActiveTrace() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceID != ""
}

// ToMap serializes the context for hand-off across an asynchronous
// boundary. Empty optional fields are omitted; an empty context serializes
// to an empty map.
func (c *TraceContext) ToMap() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]any)
	if c.traceID == "" {
		return out
	}
	out["trace_id"] = c.traceID
	if c.stepID != "" {
		out["step_id"] = c.stepID
	}
	if len(c.metadata) > 0 {
		out["metadata"] = copyMeta(c.metadata)
	}
	return out
}

// Restore is the inverse of ToMap. Partial data is tolerated: a missing
// step_id or metadata restores as absent.
func (c *TraceContext) Restore(data map[string]any) {
	traceID, _ := data["trace_id"].(string)
	stepID, _ := data["step_id"].(string)
	metadata, _ := data["metadata"].(map[string]any)
	c.Set(traceID, stepID, metadata)
}

// Clear resets the context to empty. It must run when the unit of work that
// restored it finishes, success or failure; RunRestored does this for you.
func (c *TraceContext) Clear() {
	c.Set("", "", nil)
}

// RunRestored restores the serialized context, runs fn, and guarantees the
// context is cleared on every exit path, panics included. This is the
// scoped acquisition a queue worker wraps around each job so context never
// leaks to the next job on the same worker.
func (c *TraceContext) RunRestored(data map[string]any, fn func() error) error {
	c.Restore(data)
	defer c.Clear()
	return fn()
}

func copyMeta(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type traceContextKey struct{}

// NewContext returns a context.Context carrying the trace context, for
// in-process hand-off along a call path.
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// FromContext extracts the trace context, or nil when none is attached.
func FromContext(ctx context.Context) *TraceContext {
	if ctx == nil {
		return nil
	}
	tc, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return tc
}
