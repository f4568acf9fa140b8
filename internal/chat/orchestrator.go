package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/agentdeck/agentdeck/internal/agents"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/prompts"
	"github.com/agentdeck/agentdeck/internal/tools"
	"github.com/agentdeck/agentdeck/internal/usage"
)

var (
	// ErrUnknownModel indicates a chat model selector with no mapping.
	ErrUnknownModel = errors.New("unknown chat model")

	// ErrGeneration wraps model failures surfaced to the caller after the
	// generic error event has been written.
	ErrGeneration = errors.New("generation failed")
)

// Config holds the orchestrator dependencies.
type Config struct {
	Streamer   ModelStreamer
	Registry   *agents.Registry
	Normalizer *usage.Normalizer
	Logger     log.Logger

	// MaxToolSteps caps tool-execution rounds per generation.
	MaxToolSteps int

	// Models maps chat model selectors (what the client sends) to
	// provider-qualified model names.
	Models map[string]string

	// Limiter throttles model calls. Nil disables throttling.
	Limiter *rate.Limiter
}

func (c *Config) validate() error {
	if c.Streamer == nil {
		return fmt.Errorf("streamer is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Normalizer == nil {
		return fmt.Errorf("normalizer is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.MaxToolSteps < 1 {
		return fmt.Errorf("max tool steps must be at least 1, got %d", c.MaxToolSteps)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model mapping is required")
	}
	return nil
}

// Hooks are persistence callbacks invoked after the stream has been
// delivered. SaveMessages failure propagates to the caller; UpdateLastUsage
// failure is logged and swallowed because a lost usage snapshot must not
// fail an otherwise delivered generation.
type Hooks struct {
	SaveMessages    func(ctx context.Context, messages []*ai.Message) error
	UpdateLastUsage func(ctx context.Context, summary usage.Summary) error
}

// RunRequest describes one generation.
type RunRequest struct {
	AgentType string
	ModelID   string // chat model selector, e.g. "chat-model"
	History   []*ai.Message
	Hints     prompts.Hints
	Writer    EventWriter
	Hooks     Hooks
}

// RunResult summarizes a completed generation.
type RunResult struct {
	// Text is the concatenated assistant text across all steps.
	Text string

	// Messages are the model and tool turns produced by this generation,
	// in order, excluding the caller-provided history.
	Messages []*ai.Message

	// ToolSteps is the number of executed tool rounds.
	ToolSteps int

	// Usage is the normalized usage summary, aggregated across steps.
	Usage usage.Summary
}

// Orchestrator drives the model step loop for one chat generation.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Run executes one generation against req.Writer.
//
// The loop calls the model, streams deltas (text word-smoothed, reasoning
// as-is), executes requested tools up to the step budget, and feeds tool
// results back. Events are written strictly in model emission order.
// On model failure a generic error event terminates the stream and the
// wrapped error is returned. After delivery, usage is normalized and
// emitted, then the persistence hooks run.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	modelName, ok := o.cfg.Models[req.ModelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.ModelID)
	}

	activeTools, err := o.cfg.Registry.ActiveTools(req.AgentType, req.ModelID)
	if err != nil {
		return nil, fmt.Errorf("resolving tools for agent %q: %w", req.AgentType, err)
	}

	toolsByName := make(map[string]*tools.Tool, len(activeTools))
	for _, tool := range activeTools {
		toolsByName[tool.Name()] = tool
	}

	system := prompts.System(req.ModelID, req.Hints)
	messages := append([]*ai.Message{}, req.History...)

	var (
		text      strings.Builder
		produced  []*ai.Message
		totals    usage.Raw
		toolSteps int
	)

	textSmoother := newSmoother(req.Writer, EventTextDelta)
	onDelta := func(ctx context.Context, delta Delta) error {
		if delta.Reasoning != "" {
			// Flush buffered text first so ordering survives smoothing.
			if err := textSmoother.Flush(ctx); err != nil {
				return err
			}
			return req.Writer.WriteEvent(ctx, EventReasoningDelta, TextDelta{Delta: delta.Reasoning})
		}
		text.WriteString(delta.Text)
		return textSmoother.Write(ctx, delta.Text)
	}

	for {
		if o.cfg.Limiter != nil {
			if err := o.cfg.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for model rate limit: %w", err)
			}
		}

		result, err := o.cfg.Streamer.Stream(ctx, &ModelRequest{
			Model:    modelName,
			System:   system,
			Messages: messages,
			Tools:    activeTools,
		}, onDelta)
		if err != nil {
			o.cfg.Logger.Error("model call failed", "model", modelName, "error", err)
			o.writeErrorEvent(ctx, req.Writer)
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}

		if err := textSmoother.Flush(ctx); err != nil {
			return nil, fmt.Errorf("flushing text stream: %w", err)
		}

		if result.Message != nil {
			messages = append(messages, result.Message)
			produced = append(produced, result.Message)
		}
		totals.InputTokens += result.Usage.InputTokens
		totals.OutputTokens += result.Usage.OutputTokens
		totals.ReasoningTokens += result.Usage.ReasoningTokens
		totals.TotalTokens += result.Usage.TotalTokens

		if len(result.ToolCalls) == 0 {
			break
		}
		if toolSteps >= o.cfg.MaxToolSteps {
			o.cfg.Logger.Warn("tool step budget exhausted, stopping",
				"max_steps", o.cfg.MaxToolSteps, "pending_calls", len(result.ToolCalls))
			break
		}
		toolSteps++

		toolMessage, err := o.executeToolCalls(ctx, req.Writer, toolsByName, result.ToolCalls)
		if err != nil {
			return nil, err
		}
		messages = append(messages, toolMessage)
		produced = append(produced, toolMessage)
	}

	summary := o.cfg.Normalizer.Normalize(ctx, totals, req.ModelID)
	if err := req.Writer.WriteEvent(ctx, EventUsage, summary); err != nil {
		return nil, fmt.Errorf("writing usage event: %w", err)
	}

	if req.Hooks.SaveMessages != nil {
		if err := req.Hooks.SaveMessages(ctx, produced); err != nil {
			// The stream content was already delivered intact; this failure
			// belongs to the caller's delivery layer, not the event stream.
			o.cfg.Logger.Error("message persistence failed", "error", err)
			return nil, fmt.Errorf("saving messages: %w", err)
		}
	}
	if req.Hooks.UpdateLastUsage != nil {
		if err := req.Hooks.UpdateLastUsage(ctx, summary); err != nil {
			// A lost usage snapshot is not worth failing a delivered stream.
			o.cfg.Logger.Warn("unable to persist last usage", "error", err)
		}
	}

	if err := req.Writer.WriteEvent(ctx, EventFinish, struct{}{}); err != nil {
		return nil, fmt.Errorf("writing finish event: %w", err)
	}

	return &RunResult{
		Text:      text.String(),
		Messages:  produced,
		ToolSteps: toolSteps,
		Usage:     summary,
	}, nil
}

// executeToolCalls runs one tool round in emission order and returns the
// tool-response message to feed back to the model. Tool failures never
// abort the round: they come back as structured results the model reads.
func (o *Orchestrator) executeToolCalls(
	ctx context.Context,
	writer EventWriter,
	toolsByName map[string]*tools.Tool,
	calls []ToolCall,
) (*ai.Message, error) {
	parts := make([]*ai.Part, 0, len(calls))

	for _, call := range calls {
		if err := writer.WriteEvent(ctx, EventToolCall, ToolCallEvent{
			ToolCallID: call.Ref,
			ToolName:   call.Name,
			Input:      call.Input,
		}); err != nil {
			return nil, fmt.Errorf("writing tool-call event: %w", err)
		}

		output := o.runTool(ctx, toolsByName, call)

		if err := writer.WriteEvent(ctx, EventToolResult, ToolResultEvent{
			ToolCallID: call.Ref,
			ToolName:   call.Name,
			Output:     output,
		}); err != nil {
			return nil, fmt.Errorf("writing tool-result event: %w", err)
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Ref:    call.Ref,
			Name:   call.Name,
			Output: output,
		}))
	}

	return &ai.Message{Role: ai.RoleTool, Content: parts}, nil
}

// runTool executes a single call, converting every failure mode into a
// structured tool result.
func (o *Orchestrator) runTool(ctx context.Context, toolsByName map[string]*tools.Tool, call ToolCall) any {
	tool, ok := toolsByName[call.Name]
	if !ok {
		o.cfg.Logger.Warn("model requested unknown tool", "tool", call.Name)
		return tools.Failure(tools.ErrTypeNotFound, "tool %q is not available", call.Name)
	}

	output, err := tool.Execute(ctx, call.Input)
	if err != nil {
		o.cfg.Logger.Error("tool execution failed", "tool", call.Name, "error", err)
		return tools.Failure(tools.ErrTypeInvalidArguments, "tool %s failed: %v", call.Name, err)
	}
	return output
}

// writeErrorEvent emits the generic terminal error event, ignoring write
// failures: the connection is often already gone when we get here.
func (o *Orchestrator) writeErrorEvent(ctx context.Context, writer EventWriter) {
	if err := writer.WriteEvent(ctx, EventError, ErrorEvent{Message: genericErrorMessage}); err != nil {
		o.cfg.Logger.Debug("unable to write error event", "error", err)
	}
}
