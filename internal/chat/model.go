package chat

import (
	"context"

	"github.com/firebase/genkit/go/ai"

	"github.com/agentdeck/agentdeck/internal/tools"
	"github.com/agentdeck/agentdeck/internal/usage"
)

// ModelRequest is one model call within the step loop.
type ModelRequest struct {
	// Model is the provider-qualified model name.
	Model string

	// System is the system prompt for this generation.
	System string

	// Messages is the conversation so far, including tool responses from
	// earlier steps.
	Messages []*ai.Message

	// Tools declares the tools the model may request. Nil means the model
	// runs without tools.
	Tools []*tools.Tool
}

// Delta is one streamed content fragment. Exactly one field is set.
type Delta struct {
	Text      string
	Reasoning string
}

// ToolCall is a tool request returned by the model.
type ToolCall struct {
	// Ref correlates the call with its response across messages.
	Ref string

	Name  string
	Input any
}

// ModelResult is the outcome of one model call.
type ModelResult struct {
	// Message is the complete model turn, appended to history before the
	// next step.
	Message *ai.Message

	// ToolCalls are the tool requests in this turn, in emission order.
	// Empty means the turn is final.
	ToolCalls []ToolCall

	// Usage is the provider-reported token usage for this call.
	Usage usage.Raw
}

// ModelStreamer runs a single streaming model call, invoking cb for every
// content fragment in emission order. The production implementation lives
// in internal/model on top of Genkit; tests use a scripted streamer.
type ModelStreamer interface {
	Stream(ctx context.Context, req *ModelRequest, cb func(context.Context, Delta) error) (*ModelResult, error)
}
