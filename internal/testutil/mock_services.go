package testutil

import (
	"context"
	"strings"
	"sync"

	"tourist-safety/internal/geocoding"
	"tourist-safety/internal/models"
	"tourist-safety/internal/weather"
)

// MockGeocoder resolves addresses from a fixed table. Unknown addresses fail
// with *geocoding.ErrGeocodingFailed.
type MockGeocoder struct {
	Places     map[string]models.Coordinates
	PlaceNames map[models.Coordinates]string

	mu    sync.Mutex
	calls int
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{
		Places:     make(map[string]models.Coordinates),
		PlaceNames: make(map[models.Coordinates]string),
	}
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	m.mu.Lock()
	m.calls++
	coords, ok := m.Places[strings.ToLower(address)]
	m.mu.Unlock()

	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}
	return &geocoding.GeocodingResult{Coords: coords, DisplayName: address}, nil
}

func (m *MockGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*geocoding.GeocodingResult, error) {
	return m.Geocode(ctx, address)
}

func (m *MockGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.GeocodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	results := []geocoding.GeocodingResult{}
	for name, coords := range m.Places {
		if strings.Contains(name, strings.ToLower(query)) && len(results) < limit {
			results = append(results, geocoding.GeocodingResult{Coords: coords, DisplayName: name})
		}
	}
	return results, nil
}

func (m *MockGeocoder) Reverse(ctx context.Context, coords models.Coordinates) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	name, ok := m.PlaceNames[coords]
	if !ok {
		return "", &geocoding.ErrGeocodingFailed{Address: coords.String(), Reason: "Unable to geocode"}
	}
	return name, nil
}

// Count returns the number of lookups made
func (m *MockGeocoder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockWeather returns Conditions, or Err when set
type MockWeather struct {
	Conditions weather.Current
	Err        error
}

func (m *MockWeather) Current(ctx context.Context, coords models.Coordinates) (*weather.Current, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	current := m.Conditions
	return &current, nil
}
