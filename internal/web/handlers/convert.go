package handlers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/store"
)

// storedToAI rebuilds model-native messages from persisted rows.
// Parts are stored as the marshaled ai.Part slice, so the round trip is
// lossless for text, tool requests, and tool responses alike.
func storedToAI(messages []store.Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		var parts []*ai.Part
		if err := json.Unmarshal(m.Parts, &parts); err != nil {
			return nil, fmt.Errorf("decoding parts of message %s: %w", m.ID, err)
		}
		out = append(out, &ai.Message{Role: ai.Role(m.Role), Content: parts})
	}
	return out, nil
}

// aiToStored converts freshly produced model turns into rows for one
// chat. Attachments are always empty for generated messages.
//
// Row ids derive from the stream id and position, so a retried save
// replays identical rows and the insert's ON CONFLICT clause leaves the
// originals in place.
func aiToStored(chatID uuid.UUID, streamID string, messages []*ai.Message) ([]store.Message, error) {
	now := time.Now().UTC()
	out := make([]store.Message, 0, len(messages))
	for i, m := range messages {
		parts, err := json.Marshal(m.Content)
		if err != nil {
			return nil, fmt.Errorf("encoding message parts: %w", err)
		}
		out = append(out, store.Message{
			ID:          uuid.NewSHA1(chatID, fmt.Appendf(nil, "%s/%d", streamID, i)),
			ChatID:      chatID,
			Role:        string(m.Role),
			Parts:       parts,
			Attachments: json.RawMessage(`[]`),
			// Preserve ordering for rows created in the same batch.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return out, nil
}

// clientPart is one element of the incoming message's parts array.
type clientPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// clientMessage is the user turn as the client submits it.
type clientMessage struct {
	ID    uuid.UUID    `json:"id"`
	Role  string       `json:"role"`
	Parts []clientPart `json:"parts"`
}

// text concatenates the message's text parts.
func (m clientMessage) text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// toAI converts the client message into a model-native user turn.
func (m clientMessage) toAI() *ai.Message {
	parts := make([]*ai.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, ai.NewTextPart(p.Text))
		}
	}
	return &ai.Message{Role: ai.RoleUser, Content: parts}
}

// toStored converts the client message into its persistent row.
func (m clientMessage) toStored(chatID uuid.UUID) (store.Message, error) {
	aiMsg := m.toAI()
	parts, err := json.Marshal(aiMsg.Content)
	if err != nil {
		return store.Message{}, fmt.Errorf("encoding user message: %w", err)
	}
	return store.Message{
		ID:          m.ID,
		ChatID:      chatID,
		Role:        "user",
		Parts:       parts,
		Attachments: json.RawMessage(`[]`),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// fallbackTitle derives a chat title from the first message when AI
// title generation is unavailable or fails.
func fallbackTitle(text string) string {
	const maxRunes = 80
	text = strings.TrimSpace(text)
	if text == "" {
		return "New chat"
	}
	runes := []rune(text)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes-3]) + "..."
	}
	return text
}
