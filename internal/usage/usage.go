// Package usage normalizes raw token counts into enriched usage summaries.
//
// A model pricing catalog is fetched over HTTP and cached process-wide.
// Normalization is strictly best-effort: any failure (fetch, missing model,
// malformed catalog) degrades to the raw counts in summary shape. A usage
// summary must never block or fail a completed generation.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentdeck/agentdeck/internal/log"
)

// maxCatalogSize caps the catalog body read (8 MB; the live catalog is
// well under 2 MB).
const maxCatalogSize = 8 << 20

// Raw is the provider-reported token usage for one generation.
type Raw struct {
	InputTokens     int64 `json:"inputTokens"`
	OutputTokens    int64 `json:"outputTokens"`
	ReasoningTokens int64 `json:"reasoningTokens,omitempty"`
	TotalTokens     int64 `json:"totalTokens"`
}

// Summary is the normalized usage envelope sent to clients and persisted
// on the chat. When Enriched is false the cost and context fields are zero
// and only the raw counts are meaningful.
type Summary struct {
	Raw

	ModelID string `json:"modelId"`

	// Enriched reports whether catalog data was merged in.
	Enriched bool `json:"enriched"`

	// InputCostUSD and OutputCostUSD are the estimated charge for this
	// generation based on catalog per-million-token pricing.
	InputCostUSD  float64 `json:"inputCostUSD,omitempty"`
	OutputCostUSD float64 `json:"outputCostUSD,omitempty"`
	TotalCostUSD  float64 `json:"totalCostUSD,omitempty"`

	// ContextWindow and MaxOutputTokens are the model's catalog limits.
	ContextWindow   int64 `json:"contextWindow,omitempty"`
	MaxOutputTokens int64 `json:"maxOutputTokens,omitempty"`
}

// catalogModel is one model entry in the pricing catalog. Cost figures are
// USD per million tokens, matching the models.dev API shape.
type catalogModel struct {
	Cost struct {
		Input  float64 `json:"input"`
		Output float64 `json:"output"`
	} `json:"cost"`
	Limit struct {
		Context int64 `json:"context"`
		Output  int64 `json:"output"`
	} `json:"limit"`
}

// catalogProvider groups models under a provider key.
type catalogProvider struct {
	Models map[string]catalogModel `json:"models"`
}

type catalog map[string]catalogProvider

// lookup finds a model entry by id, ignoring the provider segment of
// qualified ids ("googleai/gemini-2.5-flash" matches "gemini-2.5-flash").
func (c catalog) lookup(modelID string) (catalogModel, bool) {
	bare := modelID
	if idx := strings.LastIndex(modelID, "/"); idx >= 0 {
		bare = modelID[idx+1:]
	}
	for _, provider := range c {
		if model, ok := provider.Models[bare]; ok {
			return model, true
		}
		if model, ok := provider.Models[modelID]; ok {
			return model, true
		}
	}
	return catalogModel{}, false
}

// Normalizer fetches and caches the pricing catalog and merges it into
// usage summaries.
type Normalizer struct {
	client     *http.Client
	catalogURL string
	ttl        time.Duration
	logger     log.Logger

	group singleflight.Group

	mu        sync.RWMutex
	cached    catalog
	fetchedAt time.Time
}

// NewNormalizer creates a Normalizer. A nil client falls back to
// http.DefaultClient. An empty catalogURL disables fetching entirely:
// every summary passes through unenriched.
func NewNormalizer(client *http.Client, catalogURL string, ttl time.Duration, logger log.Logger) (*Normalizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %v", ttl)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Normalizer{
		client:     client,
		catalogURL: catalogURL,
		ttl:        ttl,
		logger:     logger,
	}, nil
}

// Normalize merges catalog pricing into the raw counts. It never returns
// an error: on any failure the summary carries the raw counts with
// Enriched false.
func (n *Normalizer) Normalize(ctx context.Context, raw Raw, modelID string) Summary {
	summary := Summary{Raw: raw, ModelID: modelID}

	cat := n.catalog(ctx)
	if cat == nil {
		return summary
	}

	model, ok := cat.lookup(modelID)
	if !ok {
		n.logger.Debug("model not in pricing catalog", "model_id", modelID)
		return summary
	}

	summary.Enriched = true
	summary.InputCostUSD = float64(raw.InputTokens) / 1e6 * model.Cost.Input
	summary.OutputCostUSD = float64(raw.OutputTokens) / 1e6 * model.Cost.Output
	summary.TotalCostUSD = summary.InputCostUSD + summary.OutputCostUSD
	summary.ContextWindow = model.Limit.Context
	summary.MaxOutputTokens = model.Limit.Output
	return summary
}

// catalog returns the cached catalog, refreshing it when stale. Concurrent
// refreshes collapse into one fetch; a failed refresh serves the previous
// catalog (or nil when there has never been one).
func (n *Normalizer) catalog(ctx context.Context) catalog {
	if n.catalogURL == "" {
		return nil
	}

	n.mu.RLock()
	cached, fetchedAt := n.cached, n.fetchedAt
	n.mu.RUnlock()

	if cached != nil && time.Since(fetchedAt) < n.ttl {
		return cached
	}

	fetched, err, _ := n.group.Do("catalog", func() (any, error) {
		// Re-check under the group: a concurrent caller may have
		// refreshed while we waited.
		n.mu.RLock()
		current, at := n.cached, n.fetchedAt
		n.mu.RUnlock()
		if current != nil && time.Since(at) < n.ttl {
			return current, nil
		}

		fresh, err := n.fetch(ctx)
		if err != nil {
			return nil, err
		}

		n.mu.Lock()
		n.cached = fresh
		n.fetchedAt = time.Now()
		n.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		n.logger.Warn("pricing catalog fetch failed, serving stale or raw usage", "error", err)
		return cached
	}
	return fetched.(catalog)
}

func (n *Normalizer) fetch(ctx context.Context) (catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("reading catalog body: %w", err)
	}

	var cat catalog
	if err := json.Unmarshal(body, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	n.logger.Info("pricing catalog refreshed", "providers", len(cat))
	return cat, nil
}
