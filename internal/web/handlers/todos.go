package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/store"
)

const maxTodoTitleLength = 500

// TodoStore is the persistence slice the todo handler consumes.
type TodoStore interface {
	CreateTodo(ctx context.Context, todo store.Todo) error
	ListTodosByUser(ctx context.Context, userID uuid.UUID) ([]store.Todo, error)
	SetTodoCompleted(ctx context.Context, userID, todoID uuid.UUID, completed bool) error
	DeleteTodo(ctx context.Context, userID, todoID uuid.UUID) error
}

// Todos serves the todo-list endpoints.
type Todos struct {
	logger log.Logger
	store  TodoStore
}

// NewTodos creates the todo handler.
func NewTodos(logger log.Logger, s TodoStore) (*Todos, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if s == nil {
		return nil, errors.New("store is required")
	}
	return &Todos{logger: logger, store: s}, nil
}

// List returns the caller's todos: GET /api/todos.
func (h *Todos) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	todos, err := h.store.ListTodosByUser(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("listing todos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if todos == nil {
		todos = []store.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

type createTodoRequest struct {
	Title string `json:"title"`
}

// Create adds a todo: POST /api/todos.
func (h *Todos) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTodoTitleLength {
		writeError(w, http.StatusBadRequest, "title must be 1-500 characters")
		return
	}

	now := time.Now().UTC()
	todo := store.Todo{
		ID:        uuid.New(),
		UserID:    identity.UserID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateTodo(r.Context(), todo); err != nil {
		h.logger.Error("creating todo", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

type updateTodoRequest struct {
	Completed bool `json:"completed"`
}

// Update toggles completion: PATCH /api/todos/{id}.
func (h *Todos) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	todoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid todo id")
		return
	}

	var req updateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.store.SetTodoCompleted(r.Context(), identity.UserID, todoID, req.Completed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.logger.Error("updating todo", "todo", todoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": req.Completed})
}

// Delete removes a todo: DELETE /api/todos/{id}.
func (h *Todos) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	todoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid todo id")
		return
	}

	if err := h.store.DeleteTodo(r.Context(), identity.UserID, todoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.logger.Error("deleting todo", "todo", todoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
