package testutil

import (
	"context"
	"sync"

	"tourist-safety/internal/models"
)

// ComputeCall tracks a call to the route computer
type ComputeCall struct {
	Origin models.Coordinates
	Dest   models.Coordinates
}

// MockRouteComputer records ComputeRoutes calls. With no ComputeFunc it returns
// a fully populated table derived from MockRouteProvider distances.
type MockRouteComputer struct {
	ComputeFunc func(ctx context.Context, origin, dest models.Coordinates) (models.RouteTable, error)

	mu    sync.Mutex
	calls []ComputeCall
}

func NewMockRouteComputer() *MockRouteComputer {
	return &MockRouteComputer{}
}

// ComputeRoutes implements routing.RouteComputer
func (m *MockRouteComputer) ComputeRoutes(ctx context.Context, origin, dest models.Coordinates) (models.RouteTable, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ComputeCall{Origin: origin, Dest: dest})
	fn := m.ComputeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, origin, dest)
	}
	return FullRouteTable(origin, dest), nil
}

// Count returns the number of recorded calls
func (m *MockRouteComputer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls
func (m *MockRouteComputer) Calls() []ComputeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ComputeCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// FullRouteTable builds a table with every mode available
func FullRouteTable(origin, dest models.Coordinates) models.RouteTable {
	provider := NewMockRouteProvider()
	results := make(map[models.TravelMode]models.RouteResult)
	for _, mode := range models.AllTravelModes() {
		r := provider.Expected(mode, origin, dest)
		results[mode] = models.NewRouteResult(r.DistanceMeters, r.DurationSecs, r.Geometry)
	}
	return models.NewRouteTable(results)
}
