package model

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/agentdeck/agentdeck/internal/chat"
)

func TestForwardChunkSplitsTextAndReasoning(t *testing.T) {
	t.Parallel()

	chunk := &ai.ModelResponseChunk{Content: []*ai.Part{
		{Kind: ai.PartReasoning, Text: "thinking"},
		ai.NewTextPart("hello"),
		ai.NewTextPart(""),
	}}

	var got []chat.Delta
	err := forwardChunk(context.Background(), chunk, func(_ context.Context, d chat.Delta) error {
		got = append(got, d)
		return nil
	})
	if err != nil {
		t.Fatalf("forwardChunk() error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("deltas = %d, want 2 (empty part skipped)", len(got))
	}
	if got[0].Reasoning != "thinking" || got[0].Text != "" {
		t.Errorf("delta[0] = %+v, want reasoning first", got[0])
	}
	if got[1].Text != "hello" {
		t.Errorf("delta[1] = %+v", got[1])
	}
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```json\n[1,2]\n```", "[1,2]"},
		{"```\n[1]\n```", "[1]"},
		{"  ```json\n{}\n```  ", "{}"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
