package tools

import "context"

// WithEvents wraps a typed tool handler to emit lifecycle events.
//
// The wrapper:
//  1. Retrieves the emitter from context (may be nil for non-streaming calls)
//  2. Emits OnToolStart before execution
//  3. Calls the original handler
//  4. Emits OnToolComplete or OnToolError after execution
//
// With no emitter in context the wrapper passes straight through, so
// non-streaming code paths degrade gracefully.
func WithEvents[In, Out any](name string, fn func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, input In) (Out, error) {
		emitter := EmitterFromContext(ctx)

		if emitter != nil {
			emitter.OnToolStart(name)
		}

		result, err := fn(ctx, input)

		if emitter != nil {
			if err != nil {
				emitter.OnToolError(name)
			} else {
				emitter.OnToolComplete(name)
			}
		}

		return result, err
	}
}

// emitData publishes a data event if an emitter is attached to the context.
func emitData(ctx context.Context, kind string, payload any) {
	if emitter := EmitterFromContext(ctx); emitter != nil {
		emitter.OnData(kind, payload)
	}
}
