package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/log"
)

// Tool names for the document tools.
const (
	CreateDocumentName     = "createDocument"
	UpdateDocumentName     = "updateDocument"
	RequestSuggestionsName = "requestSuggestions"
)

// Document kinds the artifact surface can render.
var documentKinds = []string{"text", "code", "sheet"}

// ErrDocumentNotFound is returned (wrapped) by DocumentStore implementations
// when a document id has no row.
var ErrDocumentNotFound = errors.New("document not found")

// Document is the tool layer's view of a stored document.
type Document struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Kind      string
	Content   string
	CreatedAt time.Time
}

// SuggestionDraft is one proposed edit produced by the Drafter.
type SuggestionDraft struct {
	OriginalText  string `json:"originalText"`
	SuggestedText string `json:"suggestedText"`
	Description   string `json:"description"`
}

// Suggestion is a persisted editing suggestion for a document.
type Suggestion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	UserID        uuid.UUID
	OriginalText  string
	SuggestedText string
	Description   string
	CreatedAt     time.Time
}

// DocumentStore is the persistence surface the document tools consume.
// Interfaces are defined by the consumer; internal/store provides the
// pgx-backed implementation.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	SaveSuggestions(ctx context.Context, suggestions []Suggestion) error
}

// Drafter produces document content and edit suggestions. The production
// implementation generates with the artifact model; tests use a fake.
type Drafter interface {
	// DraftDocument writes initial content for a new document.
	DraftDocument(ctx context.Context, title, kind string) (string, error)

	// ReviseDocument rewrites existing content per the given description.
	ReviseDocument(ctx context.Context, content, description string) (string, error)

	// SuggestEdits proposes improvements for existing content.
	SuggestEdits(ctx context.Context, content string) ([]SuggestionDraft, error)
}

// CreateDocumentInput defines input for the createDocument tool.
type CreateDocumentInput struct {
	Title string `json:"title" jsonschema_description:"Title of the document to create"`
	Kind  string `json:"kind" jsonschema_description:"Kind of document: text, code, or sheet"`
}

// UpdateDocumentInput defines input for the updateDocument tool.
type UpdateDocumentInput struct {
	ID          string `json:"id" jsonschema_description:"ID of the document to update"`
	Description string `json:"description" jsonschema_description:"Description of the changes to make"`
}

// RequestSuggestionsInput defines input for the requestSuggestions tool.
type RequestSuggestionsInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"ID of the document to request suggestions for"`
}

// Documents holds dependencies for the document tool handlers.
type Documents struct {
	store   DocumentStore
	drafter Drafter
	logger  log.Logger
}

// NewDocuments creates the document toolset.
func NewDocuments(store DocumentStore, drafter Drafter, logger log.Logger) (*Documents, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if drafter == nil {
		return nil, fmt.Errorf("drafter is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Documents{store: store, drafter: drafter, logger: logger}, nil
}

// Tools returns the document tool descriptors.
func (d *Documents) Tools() []*Tool {
	return []*Tool{
		NewTool(CreateDocumentName,
			"Create a document for writing or content creation activities. "+
				"The document content is generated based on the title and kind and shown to the user alongside the conversation.",
			WithEvents(CreateDocumentName, d.Create)),
		NewTool(UpdateDocumentName,
			"Update an existing document with the described changes. "+
				"Provide the document id and a description of what to change.",
			WithEvents(UpdateDocumentName, d.Update)),
		NewTool(RequestSuggestionsName,
			"Request editing suggestions for an existing document. "+
				"Provide the document id; suggestions appear alongside the document.",
			WithEvents(RequestSuggestionsName, d.RequestSuggestions)),
	}
}

// Create generates a new document and streams its identity to the client.
func (d *Documents) Create(ctx context.Context, input CreateDocumentInput) (Result, error) {
	if input.Title == "" {
		return Failure(ErrTypeInvalidArguments, "title must not be empty"), nil
	}
	if !slices.Contains(documentKinds, input.Kind) {
		return Failure(ErrTypeInvalidArguments,
			"unknown document kind %q, must be one of %v", input.Kind, documentKinds), nil
	}

	userID, err := actingUser(ctx)
	if err != nil {
		return Result{}, err
	}

	id := uuid.New()
	emitData(ctx, "data-kind", input.Kind)
	emitData(ctx, "data-id", id.String())
	emitData(ctx, "data-title", input.Title)
	emitData(ctx, "data-clear", nil)

	content, err := d.drafter.DraftDocument(ctx, input.Title, input.Kind)
	if err != nil {
		d.logger.Error("document draft failed", "title", input.Title, "error", err)
		return Failure(ErrTypeUpstream, "failed to draft document: %v", err), nil
	}

	doc := Document{
		ID:        id,
		UserID:    userID,
		Title:     input.Title,
		Kind:      input.Kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := d.store.SaveDocument(ctx, doc); err != nil {
		d.logger.Error("document save failed", "document_id", id, "error", err)
		return Failure(ErrTypeUpstream, "failed to save document: %v", err), nil
	}

	emitData(ctx, "data-finish", nil)
	d.logger.Info("document created", "document_id", id, "kind", input.Kind)

	return Success(map[string]any{
		"id":      id.String(),
		"title":   input.Title,
		"kind":    input.Kind,
		"content": "A document was created and is now visible to the user.",
	}), nil
}

// Update revises an existing document. The new content is stored as a new
// version row keyed by the same document id.
func (d *Documents) Update(ctx context.Context, input UpdateDocumentInput) (Result, error) {
	docID, err := uuid.Parse(input.ID)
	if err != nil {
		return Failure(ErrTypeInvalidArguments, "invalid document id %q", input.ID), nil
	}

	doc, err := d.store.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return Failure(ErrTypeNotFound, "document %s not found", input.ID), nil
		}
		return Result{}, fmt.Errorf("loading document %s: %w", input.ID, err)
	}

	emitData(ctx, "data-clear", nil)

	content, err := d.drafter.ReviseDocument(ctx, doc.Content, input.Description)
	if err != nil {
		d.logger.Error("document revision failed", "document_id", docID, "error", err)
		return Failure(ErrTypeUpstream, "failed to revise document: %v", err), nil
	}

	doc.Content = content
	doc.CreatedAt = time.Now()
	if err := d.store.SaveDocument(ctx, doc); err != nil {
		d.logger.Error("document save failed", "document_id", docID, "error", err)
		return Failure(ErrTypeUpstream, "failed to save document: %v", err), nil
	}

	emitData(ctx, "data-finish", nil)
	d.logger.Info("document updated", "document_id", docID)

	return Success(map[string]any{
		"id":      doc.ID.String(),
		"title":   doc.Title,
		"kind":    doc.Kind,
		"content": "The document has been updated successfully.",
	}), nil
}

// RequestSuggestions proposes edits for a document and persists them.
func (d *Documents) RequestSuggestions(ctx context.Context, input RequestSuggestionsInput) (Result, error) {
	docID, err := uuid.Parse(input.DocumentID)
	if err != nil {
		return Failure(ErrTypeInvalidArguments, "invalid document id %q", input.DocumentID), nil
	}

	doc, err := d.store.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return Failure(ErrTypeNotFound, "document %s not found", input.DocumentID), nil
		}
		return Result{}, fmt.Errorf("loading document %s: %w", input.DocumentID, err)
	}

	userID, err := actingUser(ctx)
	if err != nil {
		return Result{}, err
	}

	drafts, err := d.drafter.SuggestEdits(ctx, doc.Content)
	if err != nil {
		d.logger.Error("suggestion generation failed", "document_id", docID, "error", err)
		return Failure(ErrTypeUpstream, "failed to generate suggestions: %v", err), nil
	}

	suggestions := make([]Suggestion, 0, len(drafts))
	for _, draft := range drafts {
		suggestion := Suggestion{
			ID:            uuid.New(),
			DocumentID:    docID,
			UserID:        userID,
			OriginalText:  draft.OriginalText,
			SuggestedText: draft.SuggestedText,
			Description:   draft.Description,
			CreatedAt:     time.Now(),
		}
		suggestions = append(suggestions, suggestion)
		emitData(ctx, "data-suggestion", draft)
	}

	if err := d.store.SaveSuggestions(ctx, suggestions); err != nil {
		d.logger.Error("suggestion save failed", "document_id", docID, "error", err)
		return Failure(ErrTypeUpstream, "failed to save suggestions: %v", err), nil
	}

	d.logger.Info("suggestions created", "document_id", docID, "count", len(suggestions))

	return Success(map[string]any{
		"id":      docID.String(),
		"title":   doc.Title,
		"kind":    doc.Kind,
		"message": "Suggestions have been added to the document.",
	}), nil
}

// actingUser resolves the user id bound to the request context.
func actingUser(ctx context.Context) (uuid.UUID, error) {
	raw := UserFromContext(ctx)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("no user bound to context")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id in context: %w", err)
	}
	return userID, nil
}
