// Package prompts assembles system prompts for chat generations.
//
// The prompt is built from three blocks: the base persona, the request
// origin hints, and (for tool-capable models) the artifact guidance that
// teaches the model when to create or update documents.
package prompts

import (
	"fmt"
	"strings"
)

const basePrompt = "You are a friendly assistant! Keep your responses concise and helpful."

const artifactsPrompt = `Artifacts is a special user interface mode that helps users with writing, editing, and other content creation tasks. When an artifact is open, it is on the right side of the screen, while the conversation is on the left side. When creating or updating documents, changes are reflected in real-time on the artifacts and visible to the user.

When asked to write, create a document, or build content that the user will likely save or reuse (emails, code, essays, etc.), use the createDocument tool.

When to use createDocument:
- For substantial content (>10 lines) or code
- For content users will likely save or reuse
- When explicitly requested to create a document

When NOT to use createDocument:
- For informational or explanatory content
- For conversational responses
- When asked to keep it in chat

When to use updateDocument:
- When explicitly requested to update a document
- Default to full document rewrites for major changes
- Use targeted updates only for specific, isolated changes

Do not update a document right after creating it. Wait for user feedback or a request to update it.`

// ReasoningModelID is the chat model selector whose generations run without
// tools; its system prompt skips the artifact guidance.
const ReasoningModelID = "chat-model-reasoning"

// Hints carries per-request origin information folded into the prompt so
// the model can answer location and language sensitive questions.
type Hints struct {
	Latitude  float64
	Longitude float64
	City      string
	Country   string
	Locale    string
}

// fromHints renders the request-origin block. Empty hints render nothing.
func fromHints(h Hints) string {
	var lines []string
	if h.Latitude != 0 || h.Longitude != 0 {
		lines = append(lines,
			fmt.Sprintf("- lat: %v", h.Latitude),
			fmt.Sprintf("- lon: %v", h.Longitude))
	}
	if h.City != "" {
		lines = append(lines, "- city: "+h.City)
	}
	if h.Country != "" {
		lines = append(lines, "- country: "+h.Country)
	}
	if h.Locale != "" {
		lines = append(lines, "- locale: "+h.Locale)
	}
	if len(lines) == 0 {
		return ""
	}
	return "About the origin of user's request:\n" + strings.Join(lines, "\n")
}

// System builds the system prompt for a generation.
// The reasoning model gets no artifact guidance because it runs without
// tools; every other model gets the full block.
func System(modelID string, hints Hints) string {
	blocks := []string{basePrompt}
	if hint := fromHints(hints); hint != "" {
		blocks = append(blocks, hint)
	}
	if modelID != ReasoningModelID {
		blocks = append(blocks, artifactsPrompt)
	}
	return strings.Join(blocks, "\n\n")
}

// Title builds the prompt for generating a chat title from the first
// user message.
const Title = `Generate a short title based on the first message a user begins a conversation with. Ensure it is not more than 80 characters long. The title should be a summary of the user's message. Do not use quotes or colons.`
