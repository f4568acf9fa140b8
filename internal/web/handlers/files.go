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

// FileStore is the persistence slice the file handler consumes. The
// bytes themselves live in an external blob store; only metadata is
// recorded here.
type FileStore interface {
	SaveFileMeta(ctx context.Context, file store.StoredFile) error
	ListFilesByUser(ctx context.Context, userID uuid.UUID) ([]store.StoredFile, error)
	DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error
}

// Files serves the file-manager metadata endpoints.
type Files struct {
	logger log.Logger
	store  FileStore
}

// NewFiles creates the files handler.
func NewFiles(logger log.Logger, s FileStore) (*Files, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if s == nil {
		return nil, errors.New("store is required")
	}
	return &Files{logger: logger, store: s}, nil
}

// List returns the caller's files: GET /api/files.
func (h *Files) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	files, err := h.store.ListFilesByUser(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("listing files", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if files == nil {
		files = []store.StoredFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

type registerFileRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Register records metadata for an uploaded file: POST /api/files.
func (h *Files) Register(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req registerFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.URL == "" || req.Size < 0 {
		writeError(w, http.StatusBadRequest, "name, url, and a non-negative size are required")
		return
	}

	file := store.StoredFile{
		ID:          uuid.New(),
		UserID:      identity.UserID,
		Name:        req.Name,
		ContentType: req.ContentType,
		Size:        req.Size,
		URL:         req.URL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.SaveFileMeta(r.Context(), file); err != nil {
		h.logger.Error("saving file metadata", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

// Delete removes a file record: DELETE /api/files/{id}.
func (h *Files) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	if err := h.store.DeleteFile(r.Context(), identity.UserID, fileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("deleting file", "file", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
