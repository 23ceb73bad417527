package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"tourist-safety/internal/models"
	"tourist-safety/internal/polyline"
	"tourist-safety/internal/routing"
)

// RouteCall tracks a call to the route provider
type RouteCall struct {
	Mode   models.TravelMode
	Origin models.Coordinates
	Dest   models.Coordinates
}

// average speeds in km/h used to derive deterministic durations
var mockSpeeds = map[models.TravelMode]float64{
	models.TravelModeDriving:   50,
	models.TravelModeWalking:   5,
	models.TravelModeBicycling: 15,
	models.TravelModeTransit:   30,
}

// MockRouteProvider is a deterministic provider for tests. Distances are the
// scaled Euclidean distance between the points; geometry is a straight line.
// It is safe for concurrent use.
type MockRouteProvider struct {
	ScaleFactor float64
	Errors      map[models.TravelMode]error
	Delays      map[models.TravelMode]time.Duration

	mu    sync.Mutex
	calls []RouteCall
}

func NewMockRouteProvider() *MockRouteProvider {
	return &MockRouteProvider{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		Errors:      make(map[models.TravelMode]error),
		Delays:      make(map[models.TravelMode]time.Duration),
	}
}

// FailMode makes every request for mode return err
func (m *MockRouteProvider) FailMode(mode models.TravelMode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[mode] = err
}

// DelayMode makes requests for mode block for d or until the context ends
func (m *MockRouteProvider) DelayMode(mode models.TravelMode, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delays[mode] = d
}

// Expected returns the route the mock produces for a mode and point pair
func (m *MockRouteProvider) Expected(mode models.TravelMode, origin, dest models.Coordinates) routing.ProviderRoute {
	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
	return routing.ProviderRoute{
		DistanceMeters: dist,
		DurationSecs:   dist / (mockSpeeds[mode] * 1000) * 3600,
		Geometry:       polyline.Encode([]models.Coordinates{origin, dest}),
	}
}

// Route implements routing.RouteProvider
func (m *MockRouteProvider) Route(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates) (*routing.ProviderRoute, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RouteCall{Mode: mode, Origin: origin, Dest: dest})
	delay := m.Delays[mode]
	err := m.Errors[mode]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	route := m.Expected(mode, origin, dest)
	return &route, nil
}

// Count returns the number of recorded calls
func (m *MockRouteProvider) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls
func (m *MockRouteProvider) Calls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RouteCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ResetCalls clears the recorded calls
func (m *MockRouteProvider) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockRouteCache is an in-memory RouteCacheRepository for testing
type MockRouteCache struct {
	mu      sync.Mutex
	entries map[string]models.RouteCacheEntry
	GetErr  error
	SetErr  error
}

func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{
		entries: make(map[string]models.RouteCacheEntry),
	}
}

func (c *MockRouteCache) cacheKey(mode models.TravelMode, origin, dest models.Coordinates) string {
	return fmt.Sprintf("%s:%.5f,%.5f->%.5f,%.5f", mode,
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

func (c *MockRouteCache) Get(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates, maxAge time.Duration) (*models.RouteCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.GetErr != nil {
		return nil, c.GetErr
	}
	entry, ok := c.entries[c.cacheKey(mode, origin, dest)]
	if !ok {
		return nil, nil
	}
	if maxAge > 0 && time.Since(entry.CachedAt) > maxAge {
		return nil, nil
	}
	return &entry, nil
}

func (c *MockRouteCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SetErr != nil {
		return c.SetErr
	}
	stored := *entry
	if stored.CachedAt.IsZero() {
		stored.CachedAt = time.Now()
	}
	c.entries[c.cacheKey(entry.Mode, entry.Origin, entry.Destination)] = stored
	return nil
}

func (c *MockRouteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.RouteCacheEntry)
	return nil
}

func (c *MockRouteCache) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}
