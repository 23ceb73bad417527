package routing

import (
	"context"
	"fmt"

	"tourist-safety/internal/models"
)

// ProviderRoute is the first candidate route returned by a routing provider
type ProviderRoute struct {
	DistanceMeters float64
	DurationSecs   float64
	Geometry       string
}

// RouteProvider computes a single route for one travel mode
type RouteProvider interface {
	Route(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates) (*ProviderRoute, error)
}

// RouteComputer produces a complete RouteTable for a point pair
type RouteComputer interface {
	ComputeRoutes(ctx context.Context, origin, dest models.Coordinates) (models.RouteTable, error)
}

// ErrRouteFailed is returned when the provider cannot produce a route for a mode
type ErrRouteFailed struct {
	Mode   models.TravelMode
	Reason string
}

func (e *ErrRouteFailed) Error() string {
	return fmt.Sprintf("route calculation failed for %s: %s", e.Mode, e.Reason)
}

// ErrInvalidCoordinates is returned when an origin or destination is out of range
type ErrInvalidCoordinates struct {
	Field  string
	Reason string
}

func (e *ErrInvalidCoordinates) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
