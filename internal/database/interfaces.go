package database

import (
	"context"
	"time"

	"tourist-safety/internal/models"
)

// RouteCacheRepository stores routing provider responses keyed by mode and
// rounded origin/destination. Get returns (nil, nil) on a miss or when the
// entry is older than maxAge; a maxAge of zero disables expiry.
type RouteCacheRepository interface {
	Get(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates, maxAge time.Duration) (*models.RouteCacheEntry, error)
	Set(ctx context.Context, entry *models.RouteCacheEntry) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
