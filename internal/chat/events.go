// Package chat implements the chat stream orchestration core: it drives
// the model step loop, executes tools, and writes the ordered event stream
// the client renders.
package chat

import "context"

// EventWriter consumes the ordered event stream of one generation.
// The SSE writer implements it in production; the stream manager wraps it
// to buffer frames for resumption.
type EventWriter interface {
	WriteEvent(ctx context.Context, event string, data any) error
}

// Event names written during a generation, in the order the model emits
// the underlying content. Relative order of deltas and tool events is
// never changed by the orchestrator.
const (
	EventTextDelta      = "text-delta"
	EventReasoningDelta = "reasoning-delta"
	EventToolCall       = "tool-call"
	EventToolResult     = "tool-result"
	EventUsage          = "data-usage"
	EventError          = "error"
	EventFinish         = "finish"
)

// TextDelta is the payload for text-delta and reasoning-delta events.
type TextDelta struct {
	Delta string `json:"delta"`
}

// ToolCallEvent is the payload for tool-call events.
type ToolCallEvent struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Input      any    `json:"input"`
}

// ToolResultEvent is the payload for tool-result events.
type ToolResultEvent struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Output     any    `json:"output"`
}

// ErrorEvent is the payload for error events. The message is generic on
// purpose: provider errors can carry key material or internal hostnames,
// so details go to the log, not the client.
type ErrorEvent struct {
	Message string `json:"message"`
}

// genericErrorMessage is what clients see when a generation fails.
const genericErrorMessage = "An error occurred while processing your request. Please try again."
