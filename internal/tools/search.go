package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// WebSearchName is the tool name the model calls for web search.
const WebSearchName = "webSearch"

// Web search bounds.
const (
	maxSearchQueryLength = 200
	defaultSearchLimit   = 5
	maxSearchLimit       = 10
)

// SearchInput defines input for the webSearch tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"Search query (e.g., 'Python programming', 'weather today')"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results to return (1-10, default: 5)"`
}

// SearchResult is one entry in the webSearch result list.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// SearchOutput is the success payload for the webSearch tool.
type SearchOutput struct {
	Query       string         `json:"query"`
	ResultCount int            `json:"resultCount"`
	Results     []SearchResult `json:"results"`
	Note        string         `json:"note"`
}

// curatedResults holds canned results for a few common topics. This tool is
// a demonstration surface; a production deployment swaps in SerpAPI, Tavily
// or a Google Custom Search integration behind the same output shape.
var curatedResults = map[string][]SearchResult{
	"weather": {
		{
			Title:   "Current Weather and Forecasts - Weather.gov",
			URL:     "https://www.weather.gov",
			Snippet: "Get current weather conditions, forecasts, and severe weather alerts for your area.",
			Source:  "weather.gov",
		},
		{
			Title:   "Weather.com - The Weather Channel",
			URL:     "https://weather.com",
			Snippet: "Current weather conditions, hourly forecasts, and extended forecasts worldwide.",
			Source:  "weather.com",
		},
	},
	"news": {
		{
			Title:   "BBC News - Home",
			URL:     "https://www.bbc.com/news",
			Snippet: "Breaking news, sport, TV, radio and a whole lot more. The BBC informs, educates and entertains.",
			Source:  "bbc.com",
		},
		{
			Title:   "CNN - Breaking News",
			URL:     "https://www.cnn.com",
			Snippet: "Find the latest news, photos, videos, live coverage and more from CNN.",
			Source:  "cnn.com",
		},
	},
	"python": {
		{
			Title:   "Welcome to Python.org",
			URL:     "https://www.python.org",
			Snippet: "The official home of the Python Programming Language.",
			Source:  "python.org",
		},
		{
			Title:   "Python Tutorial - W3Schools",
			URL:     "https://www.w3schools.com/python",
			Snippet: "Well organized and easy to understand Web building tutorials with lots of examples.",
			Source:  "w3schools.com",
		},
	},
}

// NewWebSearch builds the webSearch tool.
func NewWebSearch() *Tool {
	return NewTool(WebSearchName,
		"Search the web for information. Returns top search results including title, URL, and snippet. "+
			"Note: This is a demonstration tool backed by curated results.",
		WithEvents(WebSearchName, Search))
}

// Search returns a bounded list of search results for a query.
func Search(_ context.Context, input SearchInput) (Result, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return Failure(ErrTypeInvalidArguments, "query must not be empty"), nil
	}
	if len(query) > maxSearchQueryLength {
		return Failure(ErrTypeInvalidArguments,
			"query exceeds %d characters", maxSearchQueryLength), nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results := lookupResults(query)
	if len(results) > limit {
		results = results[:limit]
	}

	return Success(SearchOutput{
		Query:       query,
		ResultCount: len(results),
		Results:     results,
		Note:        "This tool uses curated data. For production, integrate with a real search API.",
	}), nil
}

func lookupResults(query string) []SearchResult {
	normalized := strings.ToLower(query)
	for topic, results := range curatedResults {
		if strings.Contains(normalized, topic) {
			return results
		}
	}
	return []SearchResult{
		{
			Title:   fmt.Sprintf("Search Results for %q", query),
			URL:     "https://www.google.com/search?q=" + url.QueryEscape(query),
			Snippet: "No specific results available. This tool requires integration with a real search API.",
			Source:  "search-api",
		},
	}
}
