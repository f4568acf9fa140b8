package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateTodo inserts a todo item.
func (s *Store) CreateTodo(ctx context.Context, todo Todo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO todos (id, user_id, title, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pgUUID(todo.ID), pgUUID(todo.UserID), todo.Title, todo.Completed, todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating todo: %w", err)
	}
	return nil
}

// ListTodosByUser returns a user's todos, newest first.
func (s *Store) ListTodosByUser(ctx context.Context, userID uuid.UUID) ([]Todo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, completed, created_at, updated_at
		FROM todos WHERE user_id = $1
		ORDER BY created_at DESC`, pgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		var t Todo
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// SetTodoCompleted toggles a todo owned by userID.
func (s *Store) SetTodoCompleted(ctx context.Context, userID, todoID uuid.UUID, completed bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE todos SET completed = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2`,
		pgUUID(todoID), pgUUID(userID), completed, time.Now())
	if err != nil {
		return fmt.Errorf("updating todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: todo %s", ErrNotFound, todoID)
	}
	return nil
}

// DeleteTodo removes a todo owned by userID.
func (s *Store) DeleteTodo(ctx context.Context, userID, todoID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`, pgUUID(todoID), pgUUID(userID))
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: todo %s", ErrNotFound, todoID)
	}
	return nil
}

// SaveFileMeta records metadata for an uploaded file.
func (s *Store) SaveFileMeta(ctx context.Context, file StoredFile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, user_id, name, content_type, size, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pgUUID(file.ID), pgUUID(file.UserID), file.Name, file.ContentType, file.Size, file.URL, file.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving file metadata: %w", err)
	}
	return nil
}

// ListFilesByUser returns a user's stored files, newest first.
func (s *Store) ListFilesByUser(ctx context.Context, userID uuid.UUID) ([]StoredFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, content_type, size, url, created_at
		FROM files WHERE user_id = $1
		ORDER BY created_at DESC`, pgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []StoredFile
	for rows.Next() {
		var f StoredFile
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.ContentType, &f.Size, &f.URL, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a stored file record owned by userID.
func (s *Store) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM files WHERE id = $1 AND user_id = $2`, pgUUID(fileID), pgUUID(userID))
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	return nil
}

// GetMessage loads a single message by id.
func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM messages WHERE id = $1`, pgUUID(id))

	var m Message
	if err := row.Scan(&m.ID, &m.ChatID, &m.Role, &m.Parts, &m.Attachments, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading message: %w", err)
	}
	return &m, nil
}
