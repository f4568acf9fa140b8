// Package app assembles the application: configuration, database pool,
// Genkit, the tool kit, the orchestration core, and the HTTP server.
// Setup builds the container; Close releases everything it acquired.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/store"
	"github.com/agentdeck/agentdeck/internal/stream"
	"github.com/agentdeck/agentdeck/internal/web"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit       *genkit.Genkit
	DBPool       *pgxpool.Pool
	Store        *store.Store
	Streams      *stream.Manager
	Orchestrator *chat.Orchestrator
	Server       *web.Server
}

// Close shuts down everything Setup acquired, in reverse order.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Streams != nil {
		a.Streams.Close()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
