// Package staticmap builds static map image URLs for a session's route and
// proxies the image so the API key never reaches the browser.
package staticmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"tourist-safety/internal/models"
	"tourist-safety/internal/polyline"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/staticmap"

	zoom       = "12"
	size       = "600x400"
	pathStyle  = "color:0x0000ff|weight:5|"
	maxPoints  = 200
	maxImageKB = 4096
)

// ErrNoOrigin is returned when there is no location to center the map on
var ErrNoOrigin = errors.New("static map needs at least an origin")

// ErrMapFailed is returned when the map image cannot be fetched
type ErrMapFailed struct {
	Reason string
}

func (e *ErrMapFailed) Error() string {
	return fmt.Sprintf("static map fetch failed: %s", e.Reason)
}

// Path is the polyline drawn between origin and destination. Straight is set
// when the route geometry was absent or malformed and a direct segment is used.
type Path struct {
	Points   []models.Coordinates `json:"points"`
	Straight bool                 `json:"straight"`
}

// RoutePath decodes geometry, falling back to the straight origin-destination
// segment when it is empty or cannot be decoded
func RoutePath(geometry string, origin, dest models.Coordinates) Path {
	if geometry != "" {
		points, err := polyline.Decode(geometry)
		if err == nil && len(points) >= 2 {
			return Path{Points: points}
		}
	}
	return Path{Points: []models.Coordinates{origin, dest}, Straight: true}
}

// Builder creates and fetches static map images
type Builder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBuilder creates a static map builder
func NewBuilder(baseURL, apiKey string, logger *zap.Logger) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = "demo"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.Named("staticmap"),
	}
}

func formatPoint(c models.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// URL builds the map URL centered on the destination (or the origin when there
// is none) with a red "Y" origin marker, a green "D" destination marker and the
// route path. When includeKey is false the key parameter is omitted.
func (b *Builder) URL(origin, dest *models.Coordinates, geometry string, includeKey bool) (string, error) {
	if origin == nil {
		return "", ErrNoOrigin
	}

	center := *origin
	if dest != nil {
		center = *dest
	}

	params := url.Values{}
	params.Set("center", formatPoint(center))
	params.Set("zoom", zoom)
	params.Set("size", size)
	params.Set("maptype", "roadmap")
	params.Add("markers", "color:red|label:Y|"+formatPoint(*origin))

	if dest != nil {
		params.Add("markers", "color:green|label:D|"+formatPoint(*dest))

		path := RoutePath(geometry, *origin, *dest)
		if path.Straight {
			params.Set("path", pathStyle+formatPoint(*origin)+"|"+formatPoint(*dest))
		} else {
			params.Set("path", pathStyle+"enc:"+polyline.Encode(thin(path.Points, maxPoints)))
		}
	}

	if includeKey {
		params.Set("key", b.apiKey)
	}

	return b.baseURL + "?" + params.Encode(), nil
}

// thin keeps at most max points, always including both ends
func thin(points []models.Coordinates, max int) []models.Coordinates {
	if len(points) <= max {
		return points
	}
	step := float64(len(points)-1) / float64(max-1)
	out := make([]models.Coordinates, 0, max)
	for i := 0; i < max-1; i++ {
		out = append(out, points[int(float64(i)*step)])
	}
	return append(out, points[len(points)-1])
}

// Image is a fetched map image
type Image struct {
	ContentType string
	Data        []byte
}

// Fetch downloads the map image for the given route
func (b *Builder) Fetch(ctx context.Context, origin, dest *models.Coordinates, geometry string) (*Image, error) {
	mapURL, err := b.URL(origin, dest, geometry, true)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mapURL, nil)
	if err != nil {
		return nil, &ErrMapFailed{Reason: err.Error()}
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.Warn("static map request failed", zap.Error(err))
		return nil, &ErrMapFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ErrMapFailed{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageKB*1024))
	if err != nil {
		return nil, &ErrMapFailed{Reason: err.Error()}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Image{ContentType: contentType, Data: data}, nil
}
