// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings
type Config struct {
	AppEnv     string
	ServerAddr string

	RoutingBaseURL string
	RoutingTimeout time.Duration

	GeocodingBaseURL   string
	GeocodingUserAgent string

	WeatherBaseURL string

	StaticMapBaseURL string
	StaticMapAPIKey  string

	RouteCachePath string
	RouteCacheTTL  time.Duration

	SessionIdleTTL time.Duration

	KafkaBrokers     []string
	SOSTopic         string
	SOSResponseDelay time.Duration

	AIServiceURL    string
	GeoServiceURL   string
	AlertServiceURL string
	HealthTimeout   time.Duration

	CORSAllowedOrigins []string

	// EnvFileLoaded reports whether a .env file was found
	EnvFileLoaded bool
}

// Load reads .env (if present) and then the process environment.
// Variables already set in the environment take precedence over .env.
func Load() (*Config, error) {
	loaded := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
		loaded = false
	}

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "production"),
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		RoutingBaseURL:     getEnv("ROUTING_BASE_URL", "https://router.project-osrm.org"),
		GeocodingBaseURL:   getEnv("GEOCODING_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodingUserAgent: getEnv("GEOCODING_USER_AGENT", "TouristSafety/1.0"),
		WeatherBaseURL:     getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com"),
		StaticMapBaseURL:   getEnv("STATIC_MAP_BASE_URL", "https://maps.googleapis.com/maps/api/staticmap"),
		StaticMapAPIKey:    getEnv("STATIC_MAP_API_KEY", ""),
		RouteCachePath:     getEnv("ROUTE_CACHE_PATH", ""),
		KafkaBrokers:       getList("KAFKA_BROKERS"),
		SOSTopic:           getEnv("SOS_TOPIC", "tourist.sos"),
		AIServiceURL:       getEnv("AI_SERVICE_URL", "http://localhost:5000/health"),
		GeoServiceURL:      getEnv("GEO_SERVICE_URL", "http://localhost:5001/health"),
		AlertServiceURL:    getEnv("ALERT_SERVICE_URL", "http://localhost:5002/health"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
		EnvFileLoaded:      loaded,
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ROUTING_TIMEOUT", 10 * time.Second, &cfg.RoutingTimeout},
		{"ROUTE_CACHE_TTL", 6 * time.Hour, &cfg.RouteCacheTTL},
		{"SESSION_IDLE_TTL", 2 * time.Hour, &cfg.SessionIdleTTL},
		{"SOS_RESPONSE_DELAY", 3 * time.Second, &cfg.SOSResponseDelay},
		{"HEALTH_TIMEOUT", 5 * time.Second, &cfg.HealthTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.RoutingTimeout <= 0 {
		return nil, fmt.Errorf("ROUTING_TIMEOUT must be positive, got %s", cfg.RoutingTimeout)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getDuration accepts Go durations ("1500ms", "10s") or a bare number of seconds
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
