package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/store"
)

// defaultChatListLimit caps the chat listing page size.
const defaultChatListLimit = 50

// HistoryStore is the persistence slice the history handler consumes.
type HistoryStore interface {
	GetChat(ctx context.Context, id uuid.UUID) (*store.Chat, error)
	ListChatsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]store.Chat, error)
	GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]store.Message, error)
	UpdateChatVisibility(ctx context.Context, id uuid.UUID, visibility string) error
	GetVotesByChat(ctx context.Context, chatID uuid.UUID) ([]store.Vote, error)
	SetVote(ctx context.Context, vote store.Vote) error
}

// History serves chat listings, message history, visibility, and votes.
type History struct {
	logger log.Logger
	store  HistoryStore
}

// NewHistory creates the history handler.
func NewHistory(logger log.Logger, s HistoryStore) (*History, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if s == nil {
		return nil, errors.New("store is required")
	}
	return &History{logger: logger, store: s}, nil
}

type chatSummary struct {
	ID         uuid.UUID       `json:"id"`
	Title      string          `json:"title"`
	Visibility string          `json:"visibility"`
	LastUsage  json.RawMessage `json:"lastUsage,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// List returns the caller's chats: GET /api/chats.
func (h *History) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	chats, err := h.store.ListChatsByUser(r.Context(), identity.UserID, defaultChatListLimit)
	if err != nil {
		h.logger.Error("listing chats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]chatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatSummary{
			ID: c.ID, Title: c.Title, Visibility: c.Visibility,
			LastUsage: c.LastUsage, CreatedAt: c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type messageView struct {
	ID        uuid.UUID       `json:"id"`
	Role      string          `json:"role"`
	Parts     json.RawMessage `json:"parts"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Messages returns a chat's history: GET /api/chats/{id}/messages.
func (h *History) Messages(w http.ResponseWriter, r *http.Request) {
	chatRecord, ok := h.authorizeChat(w, r, true)
	if !ok {
		return
	}

	messages, err := h.store.GetMessagesByChat(r.Context(), chatRecord.ID)
	if err != nil {
		h.logger.Error("loading messages", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]messageView, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageView{ID: m.ID, Role: m.Role, Parts: m.Parts, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

type visibilityRequest struct {
	Visibility string `json:"visibility"`
}

// UpdateVisibility flips a chat between private and public:
// PATCH /api/chats/{id}/visibility.
func (h *History) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	chatRecord, ok := h.authorizeChat(w, r, false)
	if !ok {
		return
	}

	var req visibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Visibility != store.VisibilityPrivate && req.Visibility != store.VisibilityPublic {
		writeError(w, http.StatusBadRequest, "visibility must be private or public")
		return
	}

	if err := h.store.UpdateChatVisibility(r.Context(), chatRecord.ID, req.Visibility); err != nil {
		h.logger.Error("updating visibility", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"visibility": req.Visibility})
}

// Votes returns a chat's votes: GET /api/chats/{id}/votes.
func (h *History) Votes(w http.ResponseWriter, r *http.Request) {
	chatRecord, ok := h.authorizeChat(w, r, true)
	if !ok {
		return
	}

	votes, err := h.store.GetVotesByChat(r.Context(), chatRecord.ID)
	if err != nil {
		h.logger.Error("loading votes", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

type voteRequest struct {
	ChatID    uuid.UUID `json:"chatId"`
	MessageID uuid.UUID `json:"messageId"`
	IsUpvoted bool      `json:"isUpvoted"`
}

// Vote records a vote on a message: PATCH /api/votes.
func (h *History) Vote(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ChatID == uuid.Nil || req.MessageID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "chatId and messageId are required")
		return
	}

	chatRecord, err := h.store.GetChat(r.Context(), req.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("loading chat", "chat", req.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if chatRecord.UserID != identity.UserID {
		writeError(w, http.StatusForbidden, "chat belongs to another user")
		return
	}

	vote := store.Vote{ChatID: req.ChatID, MessageID: req.MessageID, IsUpvoted: req.IsUpvoted}
	if err := h.store.SetVote(r.Context(), vote); err != nil {
		h.logger.Error("saving vote", "chat", req.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

// authorizeChat loads the {id} chat and enforces access. When
// allowPublic is set, public chats are readable by anyone authenticated.
func (h *History) authorizeChat(w http.ResponseWriter, r *http.Request, allowPublic bool) (*store.Chat, bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}

	chatID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return nil, false
	}

	chatRecord, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return nil, false
		}
		h.logger.Error("loading chat", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	if chatRecord.UserID != identity.UserID {
		if !(allowPublic && chatRecord.Visibility == store.VisibilityPublic) {
			writeError(w, http.StatusForbidden, "chat belongs to another user")
			return nil, false
		}
	}
	return chatRecord, true
}
