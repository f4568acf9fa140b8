// Package agents maps agent types to their tool sets.
//
// The registry is a dispatch table built once at startup from the fixed
// agent enumeration. Unknown agent types are a configuration error and
// fail fast, both at construction and at lookup.
package agents

import (
	"errors"
	"fmt"

	"github.com/agentdeck/agentdeck/internal/tools"
)

// ErrUnknownAgentType indicates a lookup with no registry entry.
var ErrUnknownAgentType = errors.New("unknown agent type")

// Agent type identifiers.
const (
	TypeChatGeneral = "chat-general"
	TypeMultiTools  = "multi-tools"
)

// ReasoningModelID is the chat model selector that runs without tools.
const ReasoningModelID = "chat-model-reasoning"

// baseToolNames are available to every agent type.
var baseToolNames = []string{
	tools.GetWeatherName,
	tools.CreateDocumentName,
	tools.UpdateDocumentName,
	tools.RequestSuggestionsName,
}

// multiToolNames extend the base set for the multi-tools agent.
var multiToolNames = []string{
	tools.CalculatorName,
	tools.UnitConverterName,
	tools.WebSearchName,
}

// Registry resolves agent types to their tool sets.
type Registry struct {
	byType map[string][]*tools.Tool
}

// NewRegistry builds the registry from the kit. Every tool name in the
// dispatch table must exist in the kit or construction fails.
func NewRegistry(kit *tools.Kit) (*Registry, error) {
	if kit == nil {
		return nil, fmt.Errorf("tool kit is required")
	}

	table := map[string][]string{
		TypeChatGeneral: baseToolNames,
		TypeMultiTools:  append(append([]string{}, baseToolNames...), multiToolNames...),
	}

	byType := make(map[string][]*tools.Tool, len(table))
	for agentType, names := range table {
		set := make([]*tools.Tool, 0, len(names))
		for _, name := range names {
			tool, ok := kit.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("agent type %q references missing tool %q", agentType, name)
			}
			set = append(set, tool)
		}
		byType[agentType] = set
	}

	return &Registry{byType: byType}, nil
}

// Resolve returns the tool set for an agent type.
func (r *Registry) Resolve(agentType string) ([]*tools.Tool, error) {
	set, ok := r.byType[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgentType, agentType)
	}
	return set, nil
}

// ActiveTools returns the tools active for a generation. The reasoning
// model always gets an empty set: this override applies after resolution,
// so an unknown agent type still errors even for that model.
func (r *Registry) ActiveTools(agentType, modelID string) ([]*tools.Tool, error) {
	set, err := r.Resolve(agentType)
	if err != nil {
		return nil, err
	}
	if modelID == ReasoningModelID {
		return nil, nil
	}
	return set, nil
}

// Types returns the known agent type identifiers.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.byType))
	for agentType := range r.byType {
		types = append(types, agentType)
	}
	return types
}

// IsKnownType reports whether agentType has a registry entry.
func (r *Registry) IsKnownType(agentType string) bool {
	_, ok := r.byType[agentType]
	return ok
}
