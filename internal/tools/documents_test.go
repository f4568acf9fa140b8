package tools_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/tools"
)

// fakeDocumentStore is an in-memory DocumentStore.
type fakeDocumentStore struct {
	docs        map[uuid.UUID]tools.Document
	suggestions []tools.Suggestion
	saveErr     error
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[uuid.UUID]tools.Document)}
}

func (s *fakeDocumentStore) SaveDocument(_ context.Context, doc tools.Document) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeDocumentStore) GetDocument(_ context.Context, id uuid.UUID) (tools.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return tools.Document{}, fmt.Errorf("document %s: %w", id, tools.ErrDocumentNotFound)
	}
	return doc, nil
}

func (s *fakeDocumentStore) SaveSuggestions(_ context.Context, suggestions []tools.Suggestion) error {
	s.suggestions = append(s.suggestions, suggestions...)
	return nil
}

// fakeDrafter produces deterministic content.
type fakeDrafter struct{}

func (fakeDrafter) DraftDocument(_ context.Context, title, kind string) (string, error) {
	return "draft of " + title + " (" + kind + ")", nil
}

func (fakeDrafter) ReviseDocument(_ context.Context, content, description string) (string, error) {
	return content + " revised: " + description, nil
}

func (fakeDrafter) SuggestEdits(_ context.Context, content string) ([]tools.SuggestionDraft, error) {
	return []tools.SuggestionDraft{
		{OriginalText: content, SuggestedText: content + "!", Description: "add emphasis"},
		{OriginalText: content, SuggestedText: "shorter", Description: "tighten"},
	}, nil
}

// recordingEmitter captures emitted events in order.
type recordingEmitter struct {
	events []string
}

func (e *recordingEmitter) OnToolStart(name string)    { e.events = append(e.events, "start:"+name) }
func (e *recordingEmitter) OnToolComplete(name string) { e.events = append(e.events, "complete:"+name) }
func (e *recordingEmitter) OnToolError(name string)    { e.events = append(e.events, "error:"+name) }
func (e *recordingEmitter) OnData(kind string, _ any)  { e.events = append(e.events, "data:"+kind) }

func newDocuments(t *testing.T, store tools.DocumentStore) *tools.Documents {
	t.Helper()
	docs, err := tools.NewDocuments(store, fakeDrafter{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewDocuments() error: %v", err)
	}
	return docs
}

func userContext(t *testing.T) (context.Context, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	return tools.ContextWithUser(context.Background(), userID.String()), userID
}

func TestCreateDocument(t *testing.T) {
	t.Parallel()

	store := newFakeDocumentStore()
	docs := newDocuments(t, store)
	emitter := &recordingEmitter{}

	ctx, userID := userContext(t)
	ctx = tools.ContextWithEmitter(ctx, emitter)

	result, err := docs.Create(ctx, tools.CreateDocumentInput{Title: "Trip notes", Kind: "text"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if result.Status != tools.StatusSuccess {
		t.Fatalf("status = %q (error: %v), want success", result.Status, result.Error)
	}

	if len(store.docs) != 1 {
		t.Fatalf("stored docs = %d, want 1", len(store.docs))
	}
	for _, doc := range store.docs {
		if doc.Title != "Trip notes" || doc.Kind != "text" {
			t.Errorf("stored doc = %+v", doc)
		}
		if doc.UserID != userID {
			t.Errorf("doc user = %s, want %s", doc.UserID, userID)
		}
		if doc.Content == "" {
			t.Error("drafted content is empty")
		}
	}

	want := []string{"data:data-kind", "data:data-id", "data:data-title", "data:data-clear", "data:data-finish"}
	if len(emitter.events) != len(want) {
		t.Fatalf("events = %v, want %v", emitter.events, want)
	}
	for i, e := range want {
		if emitter.events[i] != e {
			t.Errorf("event[%d] = %q, want %q", i, emitter.events[i], e)
		}
	}
}

func TestCreateDocumentRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	docs := newDocuments(t, newFakeDocumentStore())
	ctx, _ := userContext(t)

	result, err := docs.Create(ctx, tools.CreateDocumentInput{Title: "x", Kind: "video"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if result.Status != tools.StatusError || result.Error.ErrorType != tools.ErrTypeInvalidArguments {
		t.Errorf("expected InvalidArguments failure, got %+v", result)
	}
}

func TestUpdateDocument(t *testing.T) {
	t.Parallel()

	store := newFakeDocumentStore()
	docs := newDocuments(t, store)
	ctx, userID := userContext(t)

	existing := tools.Document{
		ID:      uuid.New(),
		UserID:  userID,
		Title:   "Draft",
		Kind:    "text",
		Content: "original",
	}
	store.docs[existing.ID] = existing

	result, err := docs.Update(ctx, tools.UpdateDocumentInput{
		ID:          existing.ID.String(),
		Description: "make it better",
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if result.Status != tools.StatusSuccess {
		t.Fatalf("status = %q (error: %v), want success", result.Status, result.Error)
	}

	updated := store.docs[existing.ID]
	if updated.Content != "original revised: make it better" {
		t.Errorf("updated content = %q", updated.Content)
	}
}

func TestUpdateDocumentNotFound(t *testing.T) {
	t.Parallel()

	docs := newDocuments(t, newFakeDocumentStore())
	ctx, _ := userContext(t)

	result, err := docs.Update(ctx, tools.UpdateDocumentInput{ID: uuid.NewString(), Description: "x"})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if result.Status != tools.StatusError || result.Error.ErrorType != tools.ErrTypeNotFound {
		t.Errorf("expected NotFound failure, got %+v", result)
	}
}

func TestRequestSuggestions(t *testing.T) {
	t.Parallel()

	store := newFakeDocumentStore()
	docs := newDocuments(t, store)
	emitter := &recordingEmitter{}

	ctx, userID := userContext(t)
	ctx = tools.ContextWithEmitter(ctx, emitter)

	existing := tools.Document{ID: uuid.New(), UserID: userID, Title: "Doc", Kind: "text", Content: "abc"}
	store.docs[existing.ID] = existing

	result, err := docs.RequestSuggestions(ctx, tools.RequestSuggestionsInput{DocumentID: existing.ID.String()})
	if err != nil {
		t.Fatalf("RequestSuggestions() error: %v", err)
	}
	if result.Status != tools.StatusSuccess {
		t.Fatalf("status = %q (error: %v), want success", result.Status, result.Error)
	}

	if len(store.suggestions) != 2 {
		t.Fatalf("stored suggestions = %d, want 2", len(store.suggestions))
	}
	for _, s := range store.suggestions {
		if s.DocumentID != existing.ID {
			t.Errorf("suggestion document = %s, want %s", s.DocumentID, existing.ID)
		}
		if s.UserID != userID {
			t.Errorf("suggestion user = %s, want %s", s.UserID, userID)
		}
	}

	dataEvents := 0
	for _, e := range emitter.events {
		if e == "data:data-suggestion" {
			dataEvents++
		}
	}
	if dataEvents != 2 {
		t.Errorf("data-suggestion events = %d, want 2", dataEvents)
	}
}

func TestCreateDocumentRequiresUser(t *testing.T) {
	t.Parallel()

	docs := newDocuments(t, newFakeDocumentStore())

	_, err := docs.Create(context.Background(), tools.CreateDocumentInput{Title: "x", Kind: "text"})
	if err == nil {
		t.Fatal("expected error for missing user in context")
	}
}
