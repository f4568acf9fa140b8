package tools

import (
	"context"
)

// emitterKey uses an empty struct for a zero-allocation context key.
type emitterKey struct{}

// Emitter receives tool lifecycle and data events during a streaming
// generation. The interface is minimal so tools stay decoupled from the
// SSE layer; presentation belongs to the web handlers.
//
// Usage:
//  1. The handler creates an emitter bound to the event writer.
//  2. The handler stores it in the request context via ContextWithEmitter.
//  3. Tools retrieve it with EmitterFromContext during execution.
type Emitter interface {
	// OnToolStart signals that a tool has started execution.
	OnToolStart(name string)

	// OnToolComplete signals that a tool completed successfully.
	OnToolComplete(name string)

	// OnToolError signals that a tool execution failed.
	OnToolError(name string)

	// OnData publishes a transient data event (document kind, title,
	// suggestion, ...) onto the active stream.
	OnData(kind string, payload any)
}

// EmitterFromContext retrieves the Emitter from context.
// Returns nil if not set, allowing graceful degradation: tools run fine
// without a stream attached, they just emit nothing.
func EmitterFromContext(ctx context.Context) Emitter {
	emitter, _ := ctx.Value(emitterKey{}).(Emitter)
	return emitter
}

// ContextWithEmitter stores the Emitter in context for per-request binding.
func ContextWithEmitter(ctx context.Context, emitter Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}
