package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/prompts"
	"github.com/agentdeck/agentdeck/internal/tools"
)

// Drafting prompts by document kind.
const (
	textDraftPrompt = "Write about the given topic. Markdown is supported. Use headings wherever appropriate."

	codeDraftPrompt = `You are a code generator that creates self-contained, executable code snippets. Prefer small, complete programs with a short comment where the logic is not obvious. Return only the code, no surrounding prose.`

	sheetDraftPrompt = `You are a spreadsheet creation assistant. Create a spreadsheet in CSV format based on the given topic. The spreadsheet should contain meaningful column headers and realistic rows. Return only the CSV, no surrounding prose.`

	revisePrompt = "Improve the following contents of the document based on the given description. Return the full updated document, nothing else."

	suggestPrompt = `You are a writing assistant. Read the document and propose improvements. Respond with a JSON array, each element an object with keys "originalText" (an exact excerpt from the document), "suggestedText" (the improved replacement), and "description" (why the change helps). Propose at most 5 suggestions. Return only the JSON array.`
)

const (
	draftTimeout = 60 * time.Second

	// maxSuggestResponseBytes bounds the suggestion payload we parse.
	maxSuggestResponseBytes = 64 * 1024

	titleTimeout       = 5 * time.Second
	titleInputMaxRunes = 500
	titleMaxRunes      = 80
)

// Drafter generates document content for the document tools. It is the
// production implementation of the tools package's Drafter interface.
type Drafter struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger
}

// NewDrafter creates a Drafter. modelName is provider-qualified.
func NewDrafter(g *genkit.Genkit, modelName string, logger log.Logger) (*Drafter, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Drafter{g: g, modelName: modelName, logger: logger}, nil
}

// DraftDocument produces initial content for a new document.
func (d *Drafter) DraftDocument(ctx context.Context, title, kind string) (string, error) {
	system := textDraftPrompt
	switch kind {
	case "code":
		system = codeDraftPrompt
	case "sheet":
		system = sheetDraftPrompt
	}
	return d.generate(ctx, system, title)
}

// ReviseDocument rewrites content according to the change description.
func (d *Drafter) ReviseDocument(ctx context.Context, content, description string) (string, error) {
	prompt := fmt.Sprintf("Description of the change:\n%s\n\nCurrent document:\n%s", description, content)
	return d.generate(ctx, revisePrompt, prompt)
}

// SuggestEdits asks the model for targeted improvements to content.
func (d *Drafter) SuggestEdits(ctx context.Context, content string) ([]tools.SuggestionDraft, error) {
	text, err := d.generate(ctx, suggestPrompt, content)
	if err != nil {
		return nil, err
	}
	if len(text) > maxSuggestResponseBytes {
		return nil, fmt.Errorf("suggestion response too large: %d bytes", len(text))
	}

	text = stripCodeFences(text)
	var drafts []tools.SuggestionDraft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, fmt.Errorf("parsing suggestions: %w", err)
	}

	// Keep only suggestions that actually anchor to the document.
	valid := drafts[:0]
	for _, s := range drafts {
		if s.OriginalText == "" || s.SuggestedText == "" {
			continue
		}
		valid = append(valid, s)
	}
	return valid, nil
}

// GenerateTitle produces a chat title from the first user message.
// Best effort: failures log and return empty, the caller falls back to a
// truncated message.
func (d *Drafter) GenerateTitle(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	runes := []rune(userMessage)
	if len(runes) > titleInputMaxRunes {
		userMessage = string(runes[:titleInputMaxRunes]) + "..."
	}

	title, err := d.generate(ctx, prompts.Title, userMessage)
	if err != nil {
		d.logger.Debug("title generation failed", "error", err)
		return ""
	}

	title = strings.TrimSpace(title)
	if titleRunes := []rune(title); len(titleRunes) > titleMaxRunes {
		title = string(titleRunes[:titleMaxRunes-3]) + "..."
	}
	return title
}

func (d *Drafter) generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, draftTimeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, d.g,
		ai.WithModelName(d.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return resp.Text(), nil
}

// stripCodeFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
