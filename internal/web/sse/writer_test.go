package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/chat"
)

func TestWriterFramesJSONEvents(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}

	ctx := context.Background()
	if err := w.WriteEvent(ctx, chat.EventTextDelta, chat.TextDelta{Delta: "hello "}); err != nil {
		t.Fatalf("WriteEvent() error: %v", err)
	}
	if err := w.WriteEvent(ctx, chat.EventFinish, struct{}{}); err != nil {
		t.Fatalf("WriteEvent() error: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	body := rec.Body.String()
	want := "event: text-delta\ndata: {\"delta\":\"hello \"}\n\nevent: finish\ndata: {}\n\n"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
	if !rec.Flushed {
		t.Error("writer must flush after each event")
	}
}

func TestWriterStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.WriteEvent(ctx, chat.EventTextDelta, chat.TextDelta{Delta: "x"}); err == nil {
		t.Error("WriteEvent() must fail after cancellation")
	}
	if strings.Contains(rec.Body.String(), "data:") {
		t.Error("no event should be written after cancellation")
	}
}
