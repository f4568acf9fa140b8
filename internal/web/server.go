package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/store"
	"github.com/agentdeck/agentdeck/internal/stream"
	"github.com/agentdeck/agentdeck/internal/web/handlers"
)

// ServerConfig holds everything the HTTP surface needs.
type ServerConfig struct {
	Logger       log.Logger
	JWTSecret    []byte
	Orchestrator *chat.Orchestrator
	Store        *store.Store
	Streams      *stream.Manager
	Agents       handlers.AgentTypes
	Titler       handlers.Titler // optional
	CORSOrigins  []string
}

// Server routes the API and applies the middleware stack.
type Server struct {
	handler http.Handler
	logger  log.Logger
}

// NewServer wires all handlers and middleware.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	chatHandler, err := handlers.NewChat(handlers.ChatConfig{
		Logger:       cfg.Logger,
		Orchestrator: cfg.Orchestrator,
		Store:        cfg.Store,
		Streams:      cfg.Streams,
		Agents:       cfg.Agents,
		Titler:       cfg.Titler,
	})
	if err != nil {
		return nil, err
	}
	history, err := handlers.NewHistory(cfg.Logger, cfg.Store)
	if err != nil {
		return nil, err
	}
	todos, err := handlers.NewTodos(cfg.Logger, cfg.Store)
	if err != nil {
		return nil, err
	}
	files, err := handlers.NewFiles(cfg.Logger, cfg.Store)
	if err != nil {
		return nil, err
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/agents/{agentType}/chat", chatHandler.Send)
	api.HandleFunc("GET /api/agents/{agentType}/chat", chatHandler.Resume)
	api.HandleFunc("DELETE /api/chats/{id}", chatHandler.Delete)

	api.HandleFunc("GET /api/chats", history.List)
	api.HandleFunc("GET /api/chats/{id}/messages", history.Messages)
	api.HandleFunc("GET /api/chats/{id}/votes", history.Votes)
	api.HandleFunc("PATCH /api/chats/{id}/visibility", history.UpdateVisibility)
	api.HandleFunc("PATCH /api/votes", history.Vote)

	api.HandleFunc("GET /api/todos", todos.List)
	api.HandleFunc("POST /api/todos", todos.Create)
	api.HandleFunc("PATCH /api/todos/{id}", todos.Update)
	api.HandleFunc("DELETE /api/todos/{id}", todos.Delete)

	api.HandleFunc("GET /api/files", files.List)
	api.HandleFunc("POST /api/files", files.Register)
	api.HandleFunc("DELETE /api/files/{id}", files.Delete)

	// Auth wraps the API; health stays open for probes.
	authed := AuthMiddleware(cfg.JWTSecret, cfg.Logger)(api)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", healthz)
	root.Handle("/api/", authed)

	var handler http.Handler = root
	if len(cfg.CORSOrigins) > 0 {
		handler = corsMiddleware(cfg.CORSOrigins)(handler)
	}
	handler = LoggingMiddleware(cfg.Logger)(RecoveryMiddleware(cfg.Logger)(handler))

	return &Server{handler: handler, logger: cfg.Logger}, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONPayload(w, http.StatusOK, map[string]string{"status": "ok"})
}

// corsMiddleware reflects allowed origins for browser clients.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONPayload(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSONPayload(w, status, map[string]string{"error": message})
}
