package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a framework-agnostic tool descriptor. It carries metadata plus a
// type-erased execution function, so heterogeneous tools can live in one
// registry while handlers stay compile-time typed through NewTool.
//
// Execution logic takes a plain context.Context; Genkit integration happens
// separately in kit.go so this type stays testable without a model runtime.
type Tool struct {
	name        string
	description string

	// handler is the type-erased execution function. Input arrives either
	// as the concrete In type or as map[string]any decoded from the model's
	// tool-call arguments.
	handler func(context.Context, any) (any, error)
}

// Name returns the tool's unique identifier.
func (t *Tool) Name() string {
	return t.name
}

// Description returns the tool's functionality description.
// The model uses this to decide when to call the tool.
func (t *Tool) Description() string {
	return t.description
}

// Execute runs the tool with the given input.
func (t *Tool) Execute(ctx context.Context, input any) (any, error) {
	return t.handler(ctx, input)
}

// NewTool creates a tool with type-safe input and output handling.
//
// Type safety is guaranteed at compile time via generics [In, Out]; type
// erasure is performed internally to allow heterogeneous storage. Inputs
// arriving as map[string]any (the model's decoded JSON arguments) are
// converted through a JSON round trip.
func NewTool[In, Out any](
	name string,
	description string,
	handler func(context.Context, In) (Out, error),
) *Tool {
	var zeroIn In

	erased := func(ctx context.Context, input any) (any, error) {
		if typed, ok := input.(In); ok {
			return handler(ctx, typed)
		}

		jsonBytes, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}

		var typed In
		if err := json.Unmarshal(jsonBytes, &typed); err != nil {
			return nil, fmt.Errorf("invalid input type: expected %T, got %T (unmarshal error: %w)", zeroIn, input, err)
		}
		return handler(ctx, typed)
	}

	return &Tool{
		name:        name,
		description: description,
		handler:     erased,
	}
}
