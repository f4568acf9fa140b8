// Package sse frames generation events as Server-Sent Events with JSON
// payloads.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer streams JSON events over an http.ResponseWriter. It implements
// the orchestrator's EventWriter. Safe for concurrent use: the stream
// manager may replay into the same connection a live generation writes to.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets SSE headers and wraps w. Fails when the underlying
// writer cannot flush, which SSE requires.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent sends one named event with data encoded as a single JSON
// line, then flushes so the client sees it immediately.
func (w *Writer) WriteEvent(ctx context.Context, event string, data any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("writing event %q: %w", event, ctx.Err())
	default:
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding event %q: %w", event, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("writing event %q: %w", event, err)
	}
	w.flusher.Flush()
	return nil
}
