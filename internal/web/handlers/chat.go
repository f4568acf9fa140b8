package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/entitlements"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/model"
	"github.com/agentdeck/agentdeck/internal/prompts"
	"github.com/agentdeck/agentdeck/internal/store"
	"github.com/agentdeck/agentdeck/internal/stream"
	"github.com/agentdeck/agentdeck/internal/tools"
	"github.com/agentdeck/agentdeck/internal/usage"
	"github.com/agentdeck/agentdeck/internal/web/sse"
)

// entitlementWindow is the rolling window for the daily message quota.
const entitlementWindow = 24 * time.Hour

// ChatStore is the persistence slice the chat handler consumes.
type ChatStore interface {
	GetChat(ctx context.Context, id uuid.UUID) (*store.Chat, error)
	SaveChat(ctx context.Context, chat store.Chat) error
	DeleteChat(ctx context.Context, id uuid.UUID) error
	GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]store.Message, error)
	SaveMessages(ctx context.Context, messages []store.Message) error
	UpdateChatLastUsage(ctx context.Context, id uuid.UUID, summary usage.Summary) error
	MessageCountForUser(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error)
	CreateStreamHandle(ctx context.Context, streamID string, chatID uuid.UUID) error
	GetStreamIDsByChat(ctx context.Context, chatID uuid.UUID) ([]string, error)
}

// Titler generates chat titles. Empty result means fall back to
// truncating the message.
type Titler interface {
	GenerateTitle(ctx context.Context, userMessage string) string
}

// AgentTypes reports which agent types exist.
type AgentTypes interface {
	IsKnownType(agentType string) bool
}

// ChatConfig holds the chat handler dependencies.
type ChatConfig struct {
	Logger       log.Logger
	Orchestrator *chat.Orchestrator
	Store        ChatStore
	Streams      *stream.Manager
	Agents       AgentTypes
	Titler       Titler // optional
}

// Chat handles the streaming chat endpoint and its resume and delete
// companions.
type Chat struct {
	logger log.Logger
	orch   *chat.Orchestrator
	store  ChatStore
	stream *stream.Manager
	agents AgentTypes
	titler Titler
}

// NewChat creates the chat handler.
func NewChat(cfg ChatConfig) (*Chat, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Streams == nil {
		return nil, errors.New("stream manager is required")
	}
	if cfg.Agents == nil {
		return nil, errors.New("agent types are required")
	}
	return &Chat{
		logger: cfg.Logger,
		orch:   cfg.Orchestrator,
		store:  cfg.Store,
		stream: cfg.Streams,
		agents: cfg.Agents,
		titler: cfg.Titler,
	}, nil
}

// chatRequest is the POST body of the chat endpoint.
type chatRequest struct {
	ID                     uuid.UUID     `json:"id"`
	Message                clientMessage `json:"message"`
	SelectedChatModel      string        `json:"selectedChatModel"`
	SelectedVisibilityType string        `json:"selectedVisibilityType"`
}

func (req *chatRequest) validate() error {
	if req.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if req.Message.ID == uuid.Nil {
		return errors.New("message.id is required")
	}
	if req.Message.Role != "user" {
		return errors.New("message.role must be user")
	}
	if strings.TrimSpace(req.Message.text()) == "" {
		return errors.New("message must contain text")
	}
	if req.SelectedChatModel == "" {
		return errors.New("selectedChatModel is required")
	}
	switch req.SelectedVisibilityType {
	case store.VisibilityPrivate, store.VisibilityPublic:
	default:
		return errors.New("selectedVisibilityType must be private or public")
	}
	return nil
}

// Send runs one generation: POST /api/agents/{agentType}/chat.
func (h *Chat) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	agentType := r.PathValue("agentType")
	if !h.agents.IsKnownType(agentType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown agent type %q", agentType))
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ent, err := entitlements.ForTier(identity.Tier)
	if err != nil {
		writeError(w, http.StatusForbidden, "unknown account tier")
		return
	}
	if !ent.AllowsModel(req.SelectedChatModel) {
		writeError(w, http.StatusForbidden, "model not available on this plan")
		return
	}

	count, err := h.store.MessageCountForUser(ctx, identity.UserID, entitlementWindow)
	if err != nil {
		h.logger.Error("counting user messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if count >= ent.MaxMessagesPerDay {
		writeError(w, http.StatusTooManyRequests, "daily message limit reached")
		return
	}

	chatRecord, err := h.loadOrCreateChat(ctx, identity.UserID, &req)
	if err != nil {
		h.respondChatError(w, err)
		return
	}

	history, err := h.store.GetMessagesByChat(ctx, chatRecord.ID)
	if err != nil {
		h.logger.Error("loading history", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	aiHistory, err := storedToAI(history)
	if err != nil {
		h.logger.Error("decoding history", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	userRow, err := req.Message.toStored(chatRecord.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed message")
		return
	}
	if err := h.store.SaveMessages(ctx, []store.Message{userRow}); err != nil {
		h.logger.Error("saving user message", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	aiHistory = append(aiHistory, req.Message.toAI())

	streamID := h.stream.NewID()
	if err := h.store.CreateStreamHandle(ctx, streamID, chatRecord.ID); err != nil {
		h.logger.Error("creating stream handle", "chat", chatRecord.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	chatID := chatRecord.ID
	wrapped := h.stream.Wrap(streamID, writer)

	// Persistence must complete even when the client disconnects before
	// the stream finishes.
	persistCtx := context.WithoutCancel(ctx)
	runCtx := tools.ContextWithUser(ctx, identity.UserID.String())
	runCtx = tools.ContextWithEmitter(runCtx, &streamEmitter{
		ctx:    ctx,
		writer: wrapped,
		logger: h.logger,
	})

	result, err := h.orch.Run(runCtx, chat.RunRequest{
		AgentType: agentType,
		ModelID:   req.SelectedChatModel,
		History:   aiHistory,
		Hints:     hintsFromRequest(r),
		Writer:    wrapped,
		Hooks: chat.Hooks{
			SaveMessages: func(_ context.Context, produced []*ai.Message) error {
				rows, err := aiToStored(chatID, streamID, produced)
				if err != nil {
					return err
				}
				return h.store.SaveMessages(persistCtx, rows)
			},
			UpdateLastUsage: func(_ context.Context, summary usage.Summary) error {
				return h.store.UpdateChatLastUsage(persistCtx, chatID, summary)
			},
		},
	})
	if err != nil {
		// The stream already carries its terminal error event. Classify
		// for the log so provider account failures stand out.
		if model.OfflineError(err) {
			h.logger.Error("model gateway offline", "chat", chatID, "error", err)
		} else {
			h.logger.Error("generation failed", "chat", chatID, "error", err)
		}
		return
	}

	h.logger.Info("generation complete",
		"chat", chatID,
		"agent", agentType,
		"tool_steps", result.ToolSteps,
		"total_tokens", result.Usage.TotalTokens)
}

// loadOrCreateChat returns the chat for req.ID, creating it on first
// message. Ownership is enforced on existing chats.
func (h *Chat) loadOrCreateChat(ctx context.Context, userID uuid.UUID, req *chatRequest) (*store.Chat, error) {
	existing, err := h.store.GetChat(ctx, req.ID)
	if err == nil {
		if existing.UserID != userID {
			return nil, errForbidden
		}
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading chat: %w", err)
	}

	title := ""
	if h.titler != nil {
		title = h.titler.GenerateTitle(ctx, req.Message.text())
	}
	if title == "" {
		title = fallbackTitle(req.Message.text())
	}

	created := store.Chat{
		ID:         req.ID,
		UserID:     userID,
		Title:      title,
		Visibility: req.SelectedVisibilityType,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.store.SaveChat(ctx, created); err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	return &created, nil
}

var errForbidden = errors.New("forbidden")

func (h *Chat) respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "chat belongs to another user")
	default:
		h.logger.Error("chat lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Resume replays the latest stream: GET /api/agents/{agentType}/chat?chatId=...
func (h *Chat) Resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	chatID, err := uuid.Parse(r.URL.Query().Get("chatId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "chatId is required")
		return
	}

	chatRecord, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("loading chat", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if chatRecord.UserID != identity.UserID && chatRecord.Visibility != store.VisibilityPublic {
		writeError(w, http.StatusForbidden, "chat belongs to another user")
		return
	}

	ids, err := h.store.GetStreamIDsByChat(ctx, chatID)
	if err != nil || len(ids) == 0 {
		writeError(w, http.StatusNotFound, "no streams for chat")
		return
	}

	sub, err := h.stream.Resume(ctx, ids[len(ids)-1])
	if err != nil {
		if errors.Is(err, stream.ErrDisabled) {
			writeError(w, http.StatusNotFound, "stream resumption not available")
			return
		}
		writeError(w, http.StatusNotFound, "stream expired")
		return
	}
	defer sub.Close()

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	for _, f := range sub.Replay {
		if err := writer.WriteEvent(ctx, f.Event, f.Data); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case f, open := <-sub.Live:
			if !open {
				return
			}
			if err := writer.WriteEvent(ctx, f.Event, f.Data); err != nil {
				return
			}
		}
	}
}

// Delete removes a chat: DELETE /api/chats/{id}.
func (h *Chat) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	chatID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	chatRecord, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("loading chat", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if chatRecord.UserID != identity.UserID {
		writeError(w, http.StatusForbidden, "chat belongs to another user")
		return
	}

	if err := h.store.DeleteChat(ctx, chatID); err != nil {
		h.logger.Error("deleting chat", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// hintsFromRequest extracts geo and locale hints from proxy headers.
func hintsFromRequest(r *http.Request) prompts.Hints {
	hints := prompts.Hints{
		City:    r.Header.Get("X-Geo-City"),
		Country: r.Header.Get("X-Geo-Country"),
	}
	if lat, err := strconv.ParseFloat(r.Header.Get("X-Geo-Latitude"), 64); err == nil {
		hints.Latitude = lat
	}
	if lon, err := strconv.ParseFloat(r.Header.Get("X-Geo-Longitude"), 64); err == nil {
		hints.Longitude = lon
	}
	if lang := r.Header.Get("Accept-Language"); lang != "" {
		if idx := strings.IndexAny(lang, ",;"); idx > 0 {
			lang = lang[:idx]
		}
		hints.Locale = strings.TrimSpace(lang)
	}
	return hints
}
