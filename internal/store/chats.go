package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agentdeck/agentdeck/internal/usage"
)

// SaveChat inserts a new chat.
func (s *Store) SaveChat(ctx context.Context, chat Chat) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chats (id, user_id, title, visibility, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		pgUUID(chat.ID), pgUUID(chat.UserID), chat.Title, chat.Visibility, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving chat: %w", err)
	}
	return nil
}

// GetChat loads a chat by id.
func (s *Store) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, visibility, last_usage, created_at
		FROM chats WHERE id = $1`, pgUUID(id))

	var c Chat
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.LastUsage, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: chat %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading chat: %w", err)
	}
	return &c, nil
}

// ListChatsByUser returns a user's chats, newest first.
func (s *Store) ListChatsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Chat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, visibility, last_usage, created_at
		FROM chats WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, pgUUID(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.LastUsage, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// UpdateChatVisibility flips a chat between private and public.
func (s *Store) UpdateChatVisibility(ctx context.Context, id uuid.UUID, visibility string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET visibility = $2 WHERE id = $1`, pgUUID(id), visibility)
	if err != nil {
		return fmt.Errorf("updating visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: chat %s", ErrNotFound, id)
	}
	return nil
}

// UpdateChatLastUsage overwrites the chat's latest usage snapshot.
// Only the most recent generation's summary is kept.
func (s *Store) UpdateChatLastUsage(ctx context.Context, id uuid.UUID, summary usage.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding usage summary: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE chats SET last_usage = $2 WHERE id = $1`, pgUUID(id), payload); err != nil {
		return fmt.Errorf("updating last usage: %w", err)
	}
	return nil
}

// DeleteChat removes a chat and its dependent rows in one transaction.
func (s *Store) DeleteChat(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range []string{
		`DELETE FROM votes WHERE chat_id = $1`,
		`DELETE FROM messages WHERE chat_id = $1`,
		`DELETE FROM streams WHERE chat_id = $1`,
		`DELETE FROM chats WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, pgUUID(id)); err != nil {
			return fmt.Errorf("deleting chat %s: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveMessages appends messages in one transaction. Message ids are
// client-generated; replays of the same batch are no-ops via
// ON CONFLICT DO NOTHING, so a retrying caller cannot double-append.
func (s *Store) SaveMessages(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting message transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range messages {
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (id, chat_id, role, parts, attachments, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			pgUUID(m.ID), pgUUID(m.ChatID), m.Role, m.Parts, m.Attachments, m.CreatedAt); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetMessagesByChat returns a chat's messages in chronological order.
func (s *Store) GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM messages WHERE chat_id = $1
		ORDER BY created_at ASC`, pgUUID(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Parts, &m.Attachments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MessageCountForUser counts the user's own messages inside the window.
// Feeds the daily entitlement check: only user-authored turns count, not
// what the model produced.
func (s *Store) MessageCountForUser(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(m.id)
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE c.user_id = $1 AND m.role = 'user' AND m.created_at > $2`,
		pgUUID(userID), time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// SetVote records or flips a vote on a message.
func (s *Store) SetVote(ctx context.Context, vote Vote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes (chat_id, message_id, is_upvoted)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, message_id) DO UPDATE SET is_upvoted = EXCLUDED.is_upvoted`,
		pgUUID(vote.ChatID), pgUUID(vote.MessageID), vote.IsUpvoted)
	if err != nil {
		return fmt.Errorf("saving vote: %w", err)
	}
	return nil
}

// GetVotesByChat returns all votes for a chat.
func (s *Store) GetVotesByChat(ctx context.Context, chatID uuid.UUID) ([]Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chat_id, message_id, is_upvoted FROM votes WHERE chat_id = $1`, pgUUID(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading votes: %w", err)
	}
	defer rows.Close()

	var votes []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ChatID, &v.MessageID, &v.IsUpvoted); err != nil {
			return nil, fmt.Errorf("scanning vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// CreateStreamHandle records a stream id for a chat so a reconnecting
// client can discover resumable streams.
func (s *Store) CreateStreamHandle(ctx context.Context, streamID string, chatID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO streams (id, chat_id, created_at) VALUES ($1, $2, $3)`,
		streamID, pgUUID(chatID), time.Now())
	if err != nil {
		return fmt.Errorf("creating stream handle: %w", err)
	}
	return nil
}

// GetStreamIDsByChat returns a chat's stream ids, oldest first.
func (s *Store) GetStreamIDsByChat(ctx context.Context, chatID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM streams WHERE chat_id = $1 ORDER BY created_at ASC`, pgUUID(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading stream handles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning stream handle: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
