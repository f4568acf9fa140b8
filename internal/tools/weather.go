package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentdeck/agentdeck/internal/log"
)

// GetWeatherName is the tool name the model calls for weather lookups.
const GetWeatherName = "getWeather"

// defaultWeatherBaseURL is the Open-Meteo forecast endpoint. No API key needed.
const defaultWeatherBaseURL = "https://api.open-meteo.com/v1/forecast"

// maxWeatherResponseSize caps the upstream body read (1 MB is far beyond
// any legitimate forecast payload).
const maxWeatherResponseSize = 1 << 20

// WeatherInput defines input for the getWeather tool.
type WeatherInput struct {
	Latitude  float64 `json:"latitude" jsonschema_description:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema_description:"Longitude of the location"`
}

// Weather fetches current conditions from an Open-Meteo style endpoint.
// The HTTP client and base URL are injected so tests run against httptest.
type Weather struct {
	client  *http.Client
	baseURL string
	logger  log.Logger
}

// NewWeather creates a Weather toolset. A nil client falls back to
// http.DefaultClient; an empty baseURL falls back to the Open-Meteo API.
func NewWeather(client *http.Client, baseURL string, logger log.Logger) (*Weather, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultWeatherBaseURL
	}
	return &Weather{client: client, baseURL: baseURL, logger: logger}, nil
}

// Tool returns the getWeather tool descriptor.
func (w *Weather) Tool() *Tool {
	return NewTool(GetWeatherName,
		"Get the current weather at a location. Provide latitude and longitude coordinates. "+
			"Returns current temperature plus hourly temperature and daily sunrise/sunset data.",
		WithEvents(GetWeatherName, w.Get))
}

// Get fetches the current weather for a coordinate pair.
func (w *Weather) Get(ctx context.Context, input WeatherInput) (Result, error) {
	if input.Latitude < -90 || input.Latitude > 90 {
		return Failure(ErrTypeInvalidArguments, "latitude %v out of range [-90, 90]", input.Latitude), nil
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		return Failure(ErrTypeInvalidArguments, "longitude %v out of range [-180, 180]", input.Longitude), nil
	}

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(input.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(input.Longitude, 'f', -1, 64))
	query.Set("current", "temperature_2m")
	query.Set("hourly", "temperature_2m")
	query.Set("daily", "sunrise,sunset")
	query.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("building weather request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("weather request failed", "error", err)
		return Failure(ErrTypeUpstream, "weather request failed: %v", err), nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherResponseSize))
	if err != nil {
		w.logger.Error("weather response read failed", "error", err)
		return Failure(ErrTypeUpstream, "failed to read weather response: %v", err), nil
	}

	if resp.StatusCode != http.StatusOK {
		w.logger.Error("weather upstream error", "status", resp.StatusCode)
		return Failure(ErrTypeUpstream, "weather service returned status %d", resp.StatusCode), nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Failure(ErrTypeUpstream, "weather service returned malformed JSON: %v", err), nil
	}

	w.logger.Info("weather fetched", "latitude", input.Latitude, "longitude", input.Longitude)
	return Success(payload), nil
}
