// Package weather fetches current conditions from Open-Meteo and derives
// travel advice from them.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tourist-safety/internal/models"
)

// DefaultBaseURL is the public Open-Meteo API
const DefaultBaseURL = "https://api.open-meteo.com"

// Current is the current_weather block of an Open-Meteo forecast
type Current struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	IsDay         int     `json:"is_day"`
	Time          string  `json:"time"`
}

// Condition maps the WMO weather code to a short label
func (c Current) Condition() string {
	code := c.WeatherCode
	switch {
	case code >= 0 && code <= 3:
		return "clear"
	case code >= 45 && code <= 48:
		return "fog"
	case code >= 51 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "showers"
	case code >= 85 && code <= 86:
		return "snow showers"
	case code >= 95 && code <= 99:
		return "thunderstorm"
	default:
		return "partly cloudy"
	}
}

// Provider returns the current weather at a point
type Provider interface {
	Current(ctx context.Context, coords models.Coordinates) (*Current, error)
}

// ErrWeatherFailed is returned when the weather service cannot answer
type ErrWeatherFailed struct {
	Coords models.Coordinates
	Reason string
}

func (e *ErrWeatherFailed) Error() string {
	return fmt.Sprintf("weather lookup failed at %s: %s", e.Coords, e.Reason)
}

type openMeteoClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type forecastResponse struct {
	CurrentWeather *Current `json:"current_weather"`
	Reason         string   `json:"reason"`
}

// NewOpenMeteoClient creates an Open-Meteo weather provider
func NewOpenMeteoClient(baseURL string, logger *zap.Logger) Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &openMeteoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("weather"),
	}
}

func (c *openMeteoClient) Current(ctx context.Context, coords models.Coordinates) (*Current, error) {
	if err := coords.Validate(); err != nil {
		return nil, &ErrWeatherFailed{Coords: coords, Reason: err.Error()}
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Lng, 'f', 4, 64))
	params.Set("current_weather", "true")
	params.Set("timezone", "auto")
	queryURL := c.baseURL + "/v1/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrWeatherFailed{Coords: coords, Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("weather request failed", zap.String("coords", coords.String()), zap.Error(err))
		return nil, &ErrWeatherFailed{Coords: coords, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ErrWeatherFailed{
			Coords: coords,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var forecast forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, &ErrWeatherFailed{Coords: coords, Reason: err.Error()}
	}
	if forecast.CurrentWeather == nil {
		return nil, &ErrWeatherFailed{Coords: coords, Reason: "response has no current_weather"}
	}

	c.logger.Debug("weather fetched",
		zap.String("coords", coords.String()),
		zap.Float64("temperature", forecast.CurrentWeather.Temperature),
		zap.Int("code", forecast.CurrentWeather.WeatherCode))
	return forecast.CurrentWeather, nil
}
