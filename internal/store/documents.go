package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agentdeck/agentdeck/internal/tools"
)

// SaveDocument inserts a document or overwrites its content. Updating a
// document rewrites the stored content in place.
func (s *Store) SaveDocument(ctx context.Context, doc tools.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, title, kind, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content`,
		pgUUID(doc.ID), pgUUID(doc.UserID), doc.Title, doc.Kind, doc.Content, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument loads a document by id.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (tools.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, kind, content, created_at
		FROM documents WHERE id = $1`, pgUUID(id))

	var doc tools.Document
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Kind, &doc.Content, &doc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tools.Document{}, tools.ErrDocumentNotFound
		}
		return tools.Document{}, fmt.Errorf("loading document: %w", err)
	}
	return doc, nil
}

// ListDocumentsByUser returns a user's documents, newest first.
func (s *Store) ListDocumentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]tools.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, kind, content, created_at
		FROM documents WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, pgUUID(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []tools.Document
	for rows.Next() {
		var doc tools.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Kind, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SaveSuggestions appends a batch of edit suggestions in one transaction.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []tools.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting suggestion transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sg := range suggestions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO suggestions
				(id, document_id, user_id, original_text, suggested_text, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			pgUUID(sg.ID), pgUUID(sg.DocumentID), pgUUID(sg.UserID),
			sg.OriginalText, sg.SuggestedText, sg.Description, sg.CreatedAt); err != nil {
			return fmt.Errorf("inserting suggestion %s: %w", sg.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetSuggestionsByDocument returns the suggestions recorded for a document.
func (s *Store) GetSuggestionsByDocument(ctx context.Context, documentID uuid.UUID) ([]tools.Suggestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, user_id, original_text, suggested_text, description, created_at
		FROM suggestions WHERE document_id = $1
		ORDER BY created_at ASC`, pgUUID(documentID))
	if err != nil {
		return nil, fmt.Errorf("loading suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []tools.Suggestion
	for rows.Next() {
		var sg tools.Suggestion
		if err := rows.Scan(&sg.ID, &sg.DocumentID, &sg.UserID,
			&sg.OriginalText, &sg.SuggestedText, &sg.Description, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}
