package handlers

import (
	"context"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/log"
)

// streamEmitter forwards tool data events onto the generation stream so
// document progress (data-kind, data-title, data-suggestion, ...) reaches
// the client between the surrounding tool-call and tool-result events.
// Tools run on the request goroutine, so writes here interleave safely
// with the orchestrator's own events.
type streamEmitter struct {
	ctx    context.Context
	writer chat.EventWriter
	logger log.Logger
}

// Tool lifecycle already reaches the client as the orchestrator's
// tool-call and tool-result events; re-emitting it here would duplicate
// frames on the stream.
func (e *streamEmitter) OnToolStart(string)    {}
func (e *streamEmitter) OnToolComplete(string) {}
func (e *streamEmitter) OnToolError(string)    {}

func (e *streamEmitter) OnData(kind string, payload any) {
	if err := e.writer.WriteEvent(e.ctx, kind, payload); err != nil {
		e.logger.Debug("unable to write tool data event", "event", kind, "error", err)
	}
}
