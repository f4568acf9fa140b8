package chat

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// smoother rechunks streamed text on word boundaries. Providers emit
// deltas of arbitrary size; re-emitting whole words with their trailing
// whitespace gives the client a steady typing cadence regardless of how
// the provider happened to split the stream.
//
// Only text deltas are smoothed. Reasoning deltas bypass the smoother so
// their relative order with text is preserved by flushing first.
type smoother struct {
	writer EventWriter
	event  string
	buf    strings.Builder
}

func newSmoother(writer EventWriter, event string) *smoother {
	return &smoother{writer: writer, event: event}
}

// Write appends text and emits every completed word (a non-space run plus
// its trailing whitespace). The trailing partial word stays buffered.
func (s *smoother) Write(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.buf.WriteString(text)

	pending := s.buf.String()
	emit, rest := splitCompleteWords(pending)
	if emit == "" {
		return nil
	}

	s.buf.Reset()
	s.buf.WriteString(rest)
	return s.writer.WriteEvent(ctx, s.event, TextDelta{Delta: emit})
}

// Flush emits any buffered partial word.
func (s *smoother) Flush(ctx context.Context) error {
	if s.buf.Len() == 0 {
		return nil
	}
	delta := s.buf.String()
	s.buf.Reset()
	return s.writer.WriteEvent(ctx, s.event, TextDelta{Delta: delta})
}

// splitCompleteWords splits text into the longest prefix ending in
// whitespace and the remaining partial word.
func splitCompleteWords(text string) (emit, rest string) {
	cut := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			cut = i
		}
	}
	if cut == -1 {
		return "", text
	}
	// Include the whitespace rune itself.
	_, size := utf8.DecodeRuneInString(text[cut:])
	return text[:cut+size], text[cut+size:]
}
