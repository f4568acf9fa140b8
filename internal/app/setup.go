package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/agentdeck/agentdeck/db"
	"github.com/agentdeck/agentdeck/internal/agents"
	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/model"
	"github.com/agentdeck/agentdeck/internal/store"
	"github.com/agentdeck/agentdeck/internal/stream"
	"github.com/agentdeck/agentdeck/internal/tools"
	"github.com/agentdeck/agentdeck/internal/usage"
	"github.com/agentdeck/agentdeck/internal/web"
)

// modelRatePerSecond throttles upstream model calls across all requests.
const modelRatePerSecond = 5

// Setup creates and initializes the application. On failure everything
// already acquired is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	st, err := store.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	a.Store = st

	streams, err := stream.NewManager(stream.Config{
		BackendURL: cfg.StreamBackendURL,
		Retention:  time.Duration(cfg.StreamRetentionSeconds) * time.Second,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stream manager: %w", err)
	}
	a.Streams = streams

	drafter, err := model.NewDrafter(g, cfg.FullModelName(""), logger)
	if err != nil {
		return nil, fmt.Errorf("creating drafter: %w", err)
	}

	kit, err := tools.NewKit(tools.KitConfig{
		DocumentStore: st,
		Drafter:       drafter,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tool kit: %w", err)
	}
	if err := kit.Register(g); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	registry, err := agents.NewRegistry(kit)
	if err != nil {
		return nil, fmt.Errorf("creating agent registry: %w", err)
	}

	normalizer, err := usage.NewNormalizer(nil, cfg.UsageCatalogURL,
		time.Duration(cfg.UsageCatalogTTLHours)*time.Hour, logger)
	if err != nil {
		return nil, fmt.Errorf("creating usage normalizer: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(modelRatePerSecond), modelRatePerSecond)
	streamer, err := model.NewStreamer(model.Config{
		Genkit:  g,
		Logger:  logger,
		Limiter: limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model streamer: %w", err)
	}

	orch, err := chat.New(chat.Config{
		Streamer:     streamer,
		Registry:     registry,
		Normalizer:   normalizer,
		Logger:       logger,
		MaxToolSteps: cfg.MaxToolSteps,
		Models:       modelTable(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	server, err := web.NewServer(web.ServerConfig{
		Logger:       logger,
		JWTSecret:    []byte(cfg.JWTSecret),
		Orchestrator: orch,
		Store:        st,
		Streams:      streams,
		Agents:       registry,
		Titler:       drafter,
		CORSOrigins:  cfg.CORSOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("creating http server: %w", err)
	}
	a.Server = server

	return a, nil
}

// modelTable maps the chat model selectors clients send to the
// provider-qualified model names Genkit resolves. Both selectors run the
// configured default model; reasoning output depends on what that model
// emits, not on a separate deployment.
func modelTable(cfg *config.Config) map[string]string {
	name := cfg.FullModelName(cfg.ModelName)
	return map[string]string{
		"chat-model":           name,
		"chat-model-reasoning": name,
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	promptDir := cfg.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}
	if provider != config.ProviderGemini {
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithPromptDir(promptDir),
	)
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}

	logger.Info("initialized Genkit", "provider", provider, "model", cfg.ModelName)
	return g, nil
}
