package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/agents"
	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/tools"
	"github.com/agentdeck/agentdeck/internal/usage"
)

// recordedEvent is one event captured by the recording writer.
type recordedEvent struct {
	Event string
	Data  any
}

type recordingWriter struct {
	events []recordedEvent
}

func (w *recordingWriter) WriteEvent(_ context.Context, event string, data any) error {
	w.events = append(w.events, recordedEvent{Event: event, Data: data})
	return nil
}

func (w *recordingWriter) byName(name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range w.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (w *recordingWriter) text() string {
	var b strings.Builder
	for _, e := range w.byName(chat.EventTextDelta) {
		b.WriteString(e.Data.(chat.TextDelta).Delta)
	}
	return b.String()
}

// scriptedTurn is one model call in a scripted generation.
type scriptedTurn struct {
	deltas    []chat.Delta
	toolCalls []chat.ToolCall
	usage     usage.Raw
	err       error
}

// scriptedStreamer replays turns in order. When turns run out it repeats
// the last one, which lets tests simulate a model that never stops
// requesting tools.
type scriptedStreamer struct {
	turns    []scriptedTurn
	calls    int
	requests []*chat.ModelRequest
}

func (s *scriptedStreamer) Stream(ctx context.Context, req *chat.ModelRequest, cb func(context.Context, chat.Delta) error) (*chat.ModelResult, error) {
	s.requests = append(s.requests, req)
	idx := s.calls
	if idx >= len(s.turns) {
		idx = len(s.turns) - 1
	}
	s.calls++
	turn := s.turns[idx]

	if turn.err != nil {
		return nil, turn.err
	}
	for _, d := range turn.deltas {
		if err := cb(ctx, d); err != nil {
			return nil, err
		}
	}

	var parts []*ai.Part
	for _, d := range turn.deltas {
		if d.Text != "" {
			parts = append(parts, ai.NewTextPart(d.Text))
		}
	}
	return &chat.ModelResult{
		Message:   &ai.Message{Role: ai.RoleModel, Content: parts},
		ToolCalls: turn.toolCalls,
		Usage:     turn.usage,
	}, nil
}

func testRegistry(t *testing.T) *agents.Registry {
	t.Helper()
	kit, err := tools.NewKit(tools.KitConfig{
		DocumentStore: stubDocStore{},
		Drafter:       stubDrafter{},
		Logger:        log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewKit() error: %v", err)
	}
	registry, err := agents.NewRegistry(kit)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return registry
}

type stubDocStore struct{}

func (stubDocStore) SaveDocument(context.Context, tools.Document) error { return nil }
func (stubDocStore) GetDocument(context.Context, uuid.UUID) (tools.Document, error) {
	return tools.Document{}, tools.ErrDocumentNotFound
}
func (stubDocStore) SaveSuggestions(context.Context, []tools.Suggestion) error { return nil }

type stubDrafter struct{}

func (stubDrafter) DraftDocument(context.Context, string, string) (string, error)  { return "", nil }
func (stubDrafter) ReviseDocument(context.Context, string, string) (string, error) { return "", nil }
func (stubDrafter) SuggestEdits(context.Context, string) ([]tools.SuggestionDraft, error) {
	return nil, nil
}

func testNormalizer(t *testing.T) *usage.Normalizer {
	t.Helper()
	n, err := usage.NewNormalizer(nil, "", time.Hour, log.NewNop())
	if err != nil {
		t.Fatalf("NewNormalizer() error: %v", err)
	}
	return n
}

func newOrchestrator(t *testing.T, streamer chat.ModelStreamer) *chat.Orchestrator {
	t.Helper()
	orch, err := chat.New(chat.Config{
		Streamer:     streamer,
		Registry:     testRegistry(t),
		Normalizer:   testNormalizer(t),
		Logger:       log.NewNop(),
		MaxToolSteps: 5,
		Models: map[string]string{
			"chat-model":           "googleai/gemini-2.5-flash",
			"chat-model-reasoning": "googleai/gemini-2.5-pro",
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return orch
}

func userTurn(text string) []*ai.Message {
	return []*ai.Message{ai.NewUserMessage(ai.NewTextPart(text))}
}

func TestRunPlainTextGeneration(t *testing.T) {
	t.Parallel()

	streamer := &scriptedStreamer{turns: []scriptedTurn{{
		deltas: []chat.Delta{{Text: "Hello "}, {Text: "there!"}},
		usage:  usage.Raw{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	result, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeChatGeneral,
		ModelID:   "chat-model",
		History:   userTurn("hi"),
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.Text != "Hello there!" {
		t.Errorf("result text = %q", result.Text)
	}
	if writer.text() != "Hello there!" {
		t.Errorf("streamed text = %q", writer.text())
	}
	if result.ToolSteps != 0 {
		t.Errorf("tool steps = %d, want 0", result.ToolSteps)
	}
	if len(writer.byName(chat.EventFinish)) != 1 {
		t.Error("missing finish event")
	}
	if len(writer.byName(chat.EventError)) != 0 {
		t.Error("unexpected error event")
	}
}

func TestRunEmitsUsageEvent(t *testing.T) {
	t.Parallel()

	streamer := &scriptedStreamer{turns: []scriptedTurn{
		{
			toolCalls: []chat.ToolCall{{Ref: "1", Name: tools.CalculatorName, Input: map[string]any{"expression": "1+1"}}},
			usage:     usage.Raw{InputTokens: 10, OutputTokens: 2, TotalTokens: 12},
		},
		{
			deltas: []chat.Delta{{Text: "2"}},
			usage:  usage.Raw{InputTokens: 20, OutputTokens: 3, TotalTokens: 23},
		},
	}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	result, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeMultiTools,
		ModelID:   "chat-model",
		History:   userTurn("1+1?"),
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	usageEvents := writer.byName(chat.EventUsage)
	if len(usageEvents) != 1 {
		t.Fatalf("usage events = %d, want 1", len(usageEvents))
	}
	summary := usageEvents[0].Data.(usage.Summary)
	if summary.InputTokens != 30 || summary.OutputTokens != 5 || summary.TotalTokens != 35 {
		t.Errorf("aggregated usage = %+v", summary.Raw)
	}
	if summary.ModelID != "chat-model" {
		t.Errorf("usage model id = %q", summary.ModelID)
	}
	if result.Usage.TotalTokens != 35 {
		t.Errorf("result usage = %+v", result.Usage)
	}
}

func TestRunToolStepBudget(t *testing.T) {
	t.Parallel()

	// One turn that always requests another tool call: without the budget
	// this generation would never converge.
	streamer := &scriptedStreamer{turns: []scriptedTurn{{
		toolCalls: []chat.ToolCall{{Ref: "r", Name: tools.CalculatorName, Input: map[string]any{"expression": "1+1"}}},
	}}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	result, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeMultiTools,
		ModelID:   "chat-model",
		History:   userTurn("loop"),
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.ToolSteps != 5 {
		t.Errorf("tool steps = %d, want 5", result.ToolSteps)
	}
	if got := len(writer.byName(chat.EventToolCall)); got != 5 {
		t.Errorf("tool-call events = %d, want 5 (6th call never executed)", got)
	}
	if streamer.calls != 6 {
		t.Errorf("model calls = %d, want 6 (5 tool rounds + terminal turn)", streamer.calls)
	}
	if len(writer.byName(chat.EventFinish)) != 1 {
		t.Error("stream did not terminate with finish event")
	}
}

func TestRunEndToEndCalculator(t *testing.T) {
	t.Parallel()

	streamer := &scriptedStreamer{turns: []scriptedTurn{
		{
			toolCalls: []chat.ToolCall{{
				Ref:   "call-1",
				Name:  tools.CalculatorName,
				Input: map[string]any{"expression": "2^3 + 4"},
			}},
			usage: usage.Raw{InputTokens: 50, OutputTokens: 8, TotalTokens: 58},
		},
		{
			deltas: []chat.Delta{{Text: "2^3 + 4 "}, {Text: "equals "}, {Text: "12."}},
			usage:  usage.Raw{InputTokens: 70, OutputTokens: 10, TotalTokens: 80},
		},
	}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	result, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeMultiTools,
		ModelID:   "chat-model",
		History:   userTurn("What is 2^3 + 4?"),
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	toolResults := writer.byName(chat.EventToolResult)
	if len(toolResults) != 1 {
		t.Fatalf("tool-result events = %d, want 1", len(toolResults))
	}
	output := toolResults[0].Data.(chat.ToolResultEvent).Output.(tools.Result)
	if output.Status != tools.StatusSuccess {
		t.Fatalf("calculator result = %+v", output)
	}
	if got := output.Data.(tools.CalculatorOutput).Result; got != 12 {
		t.Errorf("calculator value = %v, want 12", got)
	}

	if !strings.Contains(result.Text, "12") {
		t.Errorf("final text = %q, want mention of 12", result.Text)
	}

	// Event order: tool-call before tool-result before the answer text.
	var order []string
	for _, e := range writer.events {
		order = append(order, e.Event)
	}
	callIdx, resultIdx, textIdx := -1, -1, -1
	for i, name := range order {
		switch name {
		case chat.EventToolCall:
			callIdx = i
		case chat.EventToolResult:
			resultIdx = i
		case chat.EventTextDelta:
			if textIdx == -1 {
				textIdx = i
			}
		}
	}
	if !(callIdx < resultIdx && resultIdx < textIdx) {
		t.Errorf("event order wrong: %v", order)
	}
}

func TestRunReasoningModelGetsNoTools(t *testing.T) {
	t.Parallel()

	streamer := &scriptedStreamer{turns: []scriptedTurn{{
		deltas: []chat.Delta{{Reasoning: "thinking... "}, {Text: "answer"}},
	}}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	_, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeMultiTools,
		ModelID:   "chat-model-reasoning",
		History:   userTurn("why?"),
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(streamer.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(streamer.requests))
	}
	if got := len(streamer.requests[0].Tools); got != 0 {
		t.Errorf("reasoning model received %d tools, want 0", got)
	}
	if len(writer.byName(chat.EventReasoningDelta)) == 0 {
		t.Error("reasoning deltas not forwarded")
	}
}

func TestRunUnknownAgentTypeFails(t *testing.T) {
	t.Parallel()

	orch := newOrchestrator(t, &scriptedStreamer{turns: []scriptedTurn{{}}})

	_, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: "super-agent",
		ModelID:   "chat-model",
		History:   userTurn("hi"),
		Writer:    &recordingWriter{},
	})
	if !errors.Is(err, agents.ErrUnknownAgentType) {
		t.Errorf("Run() error = %v, want ErrUnknownAgentType", err)
	}
}

func TestRunUnknownModelFails(t *testing.T) {
	t.Parallel()

	orch := newOrchestrator(t, &scriptedStreamer{turns: []scriptedTurn{{}}})

	_, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeChatGeneral,
		ModelID:   "gpt-9",
		History:   userTurn("hi"),
		Writer:    &recordingWriter{},
	})
	if !errors.Is(err, chat.ErrUnknownModel) {
		t.Errorf("Run() error = %v, want ErrUnknownModel", err)
	}
}

func TestRunModelFailureEmitsGenericError(t *testing.T) {
	t.Parallel()

	streamer := &scriptedStreamer{turns: []scriptedTurn{{
		err: fmt.Errorf("provider exploded: secret-key-abc123"),
	}}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	_, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeChatGeneral,
		ModelID:   "chat-model",
		History:   userTurn("hi"),
		Writer:    writer,
	})
	if !errors.Is(err, chat.ErrGeneration) {
		t.Fatalf("Run() error = %v, want ErrGeneration", err)
	}

	errEvents := writer.byName(chat.EventError)
	if len(errEvents) != 1 {
		t.Fatalf("error events = %d, want 1", len(errEvents))
	}
	msg := errEvents[0].Data.(chat.ErrorEvent).Message
	if strings.Contains(msg, "secret-key") {
		t.Errorf("error event leaks provider detail: %q", msg)
	}
	if len(writer.byName(chat.EventFinish)) != 0 {
		t.Error("failed generation must not emit finish")
	}
}

func TestRunPersistenceHookAsymmetry(t *testing.T) {
	t.Parallel()

	t.Run("save messages failure propagates", func(t *testing.T) {
		t.Parallel()

		streamer := &scriptedStreamer{turns: []scriptedTurn{{deltas: []chat.Delta{{Text: "ok"}}}}}
		orch := newOrchestrator(t, streamer)
		writer := &recordingWriter{}

		_, err := orch.Run(context.Background(), chat.RunRequest{
			AgentType: agents.TypeChatGeneral,
			ModelID:   "chat-model",
			History:   userTurn("hi"),
			Writer:    writer,
			Hooks: chat.Hooks{
				SaveMessages: func(context.Context, []*ai.Message) error {
					return fmt.Errorf("db down")
				},
			},
		})
		if err == nil {
			t.Fatal("expected error from failed message persistence")
		}
		// The stream was already delivered; the failure surfaces only to
		// the caller, never as an event on the flushed stream.
		if len(writer.byName(chat.EventError)) != 0 {
			t.Error("persistence failure must not write an error event")
		}
		if len(writer.byName(chat.EventFinish)) != 0 {
			t.Error("finish must not follow a persistence failure")
		}
	})

	t.Run("usage persistence failure is swallowed", func(t *testing.T) {
		t.Parallel()

		streamer := &scriptedStreamer{turns: []scriptedTurn{{deltas: []chat.Delta{{Text: "ok"}}}}}
		orch := newOrchestrator(t, streamer)
		writer := &recordingWriter{}

		saved := false
		result, err := orch.Run(context.Background(), chat.RunRequest{
			AgentType: agents.TypeChatGeneral,
			ModelID:   "chat-model",
			History:   userTurn("hi"),
			Writer:    writer,
			Hooks: chat.Hooks{
				SaveMessages: func(context.Context, []*ai.Message) error {
					saved = true
					return nil
				},
				UpdateLastUsage: func(context.Context, usage.Summary) error {
					return fmt.Errorf("usage table locked")
				},
			},
		})
		if err != nil {
			t.Fatalf("Run() error = %v, want nil despite usage persistence failure", err)
		}
		if !saved {
			t.Error("messages were not saved")
		}
		if result.Text != "ok" {
			t.Errorf("result text = %q", result.Text)
		}
		if len(writer.byName(chat.EventFinish)) != 1 {
			t.Error("finish event missing")
		}
	})
}

func TestRunUnknownToolReturnsStructuredFailure(t *testing.T) {
	t.Parallel()

	streamer := &scriptedStreamer{turns: []scriptedTurn{
		{toolCalls: []chat.ToolCall{{Ref: "x", Name: "teleport", Input: map[string]any{}}}},
		{deltas: []chat.Delta{{Text: "done"}}},
	}}
	orch := newOrchestrator(t, streamer)
	writer := &recordingWriter{}

	_, err := orch.Run(context.Background(), chat.RunRequest{
		AgentType: agents.TypeMultiTools,
		ModelID:   "chat-model",
		History:   userTurn("go"),
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	results := writer.byName(chat.EventToolResult)
	if len(results) != 1 {
		t.Fatalf("tool-result events = %d, want 1", len(results))
	}
	output := results[0].Data.(chat.ToolResultEvent).Output.(tools.Result)
	if output.Status != tools.StatusError || output.Error.ErrorType != tools.ErrTypeNotFound {
		t.Errorf("unknown tool output = %+v, want NotFound failure", output)
	}
}
