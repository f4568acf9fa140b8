package chat

import (
	"context"
	"strings"
	"testing"
)

type captureWriter struct {
	deltas []string
}

func (w *captureWriter) WriteEvent(_ context.Context, _ string, data any) error {
	w.deltas = append(w.deltas, data.(TextDelta).Delta)
	return nil
}

func TestSmootherEmitsWholeWords(t *testing.T) {
	t.Parallel()

	w := &captureWriter{}
	s := newSmoother(w, EventTextDelta)
	ctx := context.Background()

	// Provider splits mid-word; the smoother re-emits on word boundaries.
	for _, chunk := range []string{"Hel", "lo wor", "ld, nice ", "day"} {
		if err := s.Write(ctx, chunk); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	joined := strings.Join(w.deltas, "")
	if joined != "Hello world, nice day" {
		t.Fatalf("reassembled text = %q", joined)
	}
	for i, d := range w.deltas[:len(w.deltas)-1] {
		if !strings.HasSuffix(d, " ") && !strings.HasSuffix(d, "\n") {
			t.Errorf("delta[%d] = %q does not end on a word boundary", i, d)
		}
	}
}

func TestSmootherFlushEmitsPartialWord(t *testing.T) {
	t.Parallel()

	w := &captureWriter{}
	s := newSmoother(w, EventTextDelta)
	ctx := context.Background()

	if err := s.Write(ctx, "partial"); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if len(w.deltas) != 0 {
		t.Fatalf("partial word emitted early: %v", w.deltas)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if len(w.deltas) != 1 || w.deltas[0] != "partial" {
		t.Fatalf("deltas = %v, want [partial]", w.deltas)
	}
}

func TestSmootherEmptyFlushWritesNothing(t *testing.T) {
	t.Parallel()

	w := &captureWriter{}
	s := newSmoother(w, EventTextDelta)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if len(w.deltas) != 0 {
		t.Fatalf("empty flush emitted %v", w.deltas)
	}
}
