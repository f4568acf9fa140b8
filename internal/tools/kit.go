package tools

import (
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/agentdeck/agentdeck/internal/log"
)

// KitConfig holds the dependencies for building the tool kit.
type KitConfig struct {
	// HTTPClient backs the weather tool. Nil falls back to http.DefaultClient.
	HTTPClient *http.Client

	// WeatherBaseURL overrides the Open-Meteo endpoint (tests).
	WeatherBaseURL string

	// DocumentStore persists documents and suggestions.
	DocumentStore DocumentStore

	// Drafter generates document content and suggestions.
	Drafter Drafter

	Logger log.Logger
}

// Kit bundles every tool the agents can use, keyed by tool name.
// The same handlers serve two consumers: the orchestrator executes them
// directly through the Tool descriptors, and Register declares them to
// Genkit so the model sees their schemas.
type Kit struct {
	tools  map[string]*Tool
	docs   *Documents
	wx     *Weather
	logger log.Logger
}

// NewKit creates a tool kit with all required dependencies.
func NewKit(cfg KitConfig) (*Kit, error) {
	if cfg.DocumentStore == nil {
		return nil, fmt.Errorf("KitConfig.DocumentStore is required")
	}
	if cfg.Drafter == nil {
		return nil, fmt.Errorf("KitConfig.Drafter is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("KitConfig.Logger is required")
	}

	wx, err := NewWeather(cfg.HTTPClient, cfg.WeatherBaseURL, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating weather toolset: %w", err)
	}

	docs, err := NewDocuments(cfg.DocumentStore, cfg.Drafter, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating document toolset: %w", err)
	}

	kit := &Kit{
		tools:  make(map[string]*Tool),
		docs:   docs,
		wx:     wx,
		logger: cfg.Logger,
	}

	all := []*Tool{
		wx.Tool(),
		NewCalculator(),
		NewUnitConverter(),
		NewWebSearch(),
	}
	all = append(all, docs.Tools()...)

	for _, tool := range all {
		if _, exists := kit.tools[tool.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", tool.Name())
		}
		kit.tools[tool.Name()] = tool
	}

	return kit, nil
}

// Lookup returns the tool with the given name.
func (k *Kit) Lookup(name string) (*Tool, bool) {
	tool, ok := k.tools[name]
	return tool, ok
}

// Names returns all tool names in the kit.
func (k *Kit) Names() []string {
	names := make([]string, 0, len(k.tools))
	for name := range k.tools {
		names = append(names, name)
	}
	return names
}

// Register declares every tool to Genkit so generation requests can carry
// their schemas. Execution stays with the orchestrator: generations run
// with tool requests returned rather than auto-executed, so these
// definitions serve as declarations only.
func (k *Kit) Register(g *genkit.Genkit) error {
	if g == nil {
		return fmt.Errorf("genkit instance is required")
	}

	k.logger.Info("registering tools", "count", len(k.tools))

	genkit.DefineTool(g, GetWeatherName, k.tools[GetWeatherName].Description(),
		func(tc *ai.ToolContext, in WeatherInput) (Result, error) {
			return k.wx.Get(tc.Context, in)
		})
	genkit.DefineTool(g, CalculatorName, k.tools[CalculatorName].Description(),
		func(tc *ai.ToolContext, in CalculatorInput) (Result, error) {
			return Calculate(tc.Context, in)
		})
	genkit.DefineTool(g, UnitConverterName, k.tools[UnitConverterName].Description(),
		func(tc *ai.ToolContext, in ConvertInput) (Result, error) {
			return Convert(tc.Context, in)
		})
	genkit.DefineTool(g, WebSearchName, k.tools[WebSearchName].Description(),
		func(tc *ai.ToolContext, in SearchInput) (Result, error) {
			return Search(tc.Context, in)
		})
	genkit.DefineTool(g, CreateDocumentName, k.tools[CreateDocumentName].Description(),
		func(tc *ai.ToolContext, in CreateDocumentInput) (Result, error) {
			return k.docs.Create(tc.Context, in)
		})
	genkit.DefineTool(g, UpdateDocumentName, k.tools[UpdateDocumentName].Description(),
		func(tc *ai.ToolContext, in UpdateDocumentInput) (Result, error) {
			return k.docs.Update(tc.Context, in)
		})
	genkit.DefineTool(g, RequestSuggestionsName, k.tools[RequestSuggestionsName].Description(),
		func(tc *ai.ToolContext, in RequestSuggestionsInput) (Result, error) {
			return k.docs.RequestSuggestions(tc.Context, in)
		})

	return nil
}
