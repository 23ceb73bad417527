package geocoding

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

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "TouristSafety/1.0"

	searchLimit = 5
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder provides address-to-coordinates conversion and its reverse
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
	Reverse(ctx context.Context, coords models.Coordinates) (string, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimGeocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	logger      *zap.Logger
}

type nominatimResponse struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error,omitempty"`
}

type nominatimAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	County  string `json:"county"`
	State   string `json:"state"`
}

// placeName picks the most specific settlement name available
func (a nominatimAddress) placeName() string {
	for _, name := range []string{a.City, a.Town, a.Village, a.County, a.State} {
		if name != "" {
			return name
		}
	}
	return ""
}

// NewNominatimGeocoder creates a Nominatim geocoder limited to one request per second
func NewNominatimGeocoder(baseURL, userAgent string, logger *zap.Logger) Geocoder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &nominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
		logger:      logger.Named("geocoding"),
	}
}

func (g *nominatimGeocoder) get(ctx context.Context, path string, params url.Values, subject string, out any) error {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	params.Set("format", "json")
	queryURL := fmt.Sprintf("%s/%s?%s", g.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return &ErrGeocodingFailed{Address: subject, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("nominatim request failed", zap.String("path", path), zap.String("subject", subject), zap.Error(err))
		return &ErrGeocodingFailed{Address: subject, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Warn("nominatim error response",
			zap.String("path", path),
			zap.String("subject", subject),
			zap.Int("status", resp.StatusCode))
		return &ErrGeocodingFailed{
			Address: subject,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ErrGeocodingFailed{Address: subject, Reason: err.Error()}
	}
	return nil
}

func parseCoords(r nominatimResponse) (models.Coordinates, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}

// Geocode resolves a free-text place to the first search hit
func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.Search(ctx, address, searchLimit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		g.logger.Info("no geocoding results", zap.String("address", address))
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	result := results[0]
	g.logger.Debug("geocoded",
		zap.String("address", address),
		zap.String("coords", result.Coords.String()),
		zap.String("display_name", result.DisplayName))
	return &result, nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if i < maxRetries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			g.logger.Info("geocoding retry",
				zap.String("address", address),
				zap.Int("attempt", i+1),
				zap.Int("max", maxRetries),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	g.logger.Warn("geocoding failed after retries", zap.String("address", address), zap.Int("retries", maxRetries), zap.Error(lastErr))
	return nil, lastErr
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ErrGeocodingFailed{Address: query, Reason: "empty query"}
	}
	if limit <= 0 {
		limit = searchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	var results []nominatimResponse
	if err := g.get(ctx, "search", params, query, &results); err != nil {
		return nil, err
	}

	geocodingResults := make([]GeocodingResult, 0, len(results))
	for _, result := range results {
		coords, err := parseCoords(result)
		if err != nil {
			g.logger.Warn("skipping search result", zap.String("query", query), zap.Error(err))
			continue
		}
		geocodingResults = append(geocodingResults, GeocodingResult{
			Coords:      coords,
			DisplayName: result.DisplayName,
		})
	}

	return geocodingResults, nil
}

// Reverse returns a short place name for coords: the city, town, village,
// county or state, falling back to the full display name
func (g *nominatimGeocoder) Reverse(ctx context.Context, coords models.Coordinates) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lng, 'f', 6, 64))

	var result nominatimResponse
	if err := g.get(ctx, "reverse", params, coords.String(), &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", &ErrGeocodingFailed{Address: coords.String(), Reason: result.Error}
	}

	if name := result.Address.placeName(); name != "" {
		return name, nil
	}
	if result.DisplayName != "" {
		return result.DisplayName, nil
	}
	return "", &ErrGeocodingFailed{Address: coords.String(), Reason: "no place name"}
}
