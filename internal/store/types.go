package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chat visibility values.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Chat is one conversation owned by a user.
type Chat struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Title      string
	Visibility string

	// LastUsage is the usage summary of the most recent generation,
	// stored as JSON. Overwritten on every completion, never accumulated.
	LastUsage json.RawMessage

	CreatedAt time.Time
}

// Message is one persisted conversation turn. Parts and Attachments hold
// the client-facing JSON shapes verbatim.
type Message struct {
	ID          uuid.UUID
	ChatID      uuid.UUID
	Role        string
	Parts       json.RawMessage
	Attachments json.RawMessage
	CreatedAt   time.Time
}

// Vote is a user's up or down vote on a message.
type Vote struct {
	ChatID    uuid.UUID
	MessageID uuid.UUID
	IsUpvoted bool
}

// Todo is one todo-list item.
type Todo struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredFile is the metadata record of an uploaded file.
type StoredFile struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	ContentType string
	Size        int64
	URL         string
	CreatedAt   time.Time
}
