package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tourist-safety/internal/database"
	"tourist-safety/internal/models"
)

type routeCacheRepository struct {
	store *Store
}

func (r *routeCacheRepository) Get(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates, maxAge time.Duration) (*models.RouteCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if r.store.closed {
		return nil, database.ErrCacheClosed
	}

	query := `SELECT origin_lat, origin_lng, dest_lat, dest_lng, distance_meters, duration_secs, geometry, cached_at
	          FROM route_cache
	          WHERE mode = ? AND origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`

	entry := models.RouteCacheEntry{Mode: mode}
	var cachedAt int64
	err := r.store.db.QueryRowContext(ctx, query,
		string(mode),
		models.RoundCoordinate(origin.Lat),
		models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat),
		models.RoundCoordinate(dest.Lng),
	).Scan(
		&entry.Origin.Lat, &entry.Origin.Lng,
		&entry.Destination.Lat, &entry.Destination.Lng,
		&entry.DistanceMeters, &entry.DurationSecs,
		&entry.Geometry, &cachedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route cache entry: %w", err)
	}

	entry.CachedAt = time.Unix(0, cachedAt)
	if maxAge > 0 && time.Since(entry.CachedAt) > maxAge {
		return nil, nil
	}

	return &entry, nil
}

func (r *routeCacheRepository) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.closed {
		return database.ErrCacheClosed
	}

	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	query := `INSERT OR REPLACE INTO route_cache
	          (mode, origin_lat, origin_lng, dest_lat, dest_lng, distance_meters, duration_secs, geometry, cached_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		string(entry.Mode),
		models.RoundCoordinate(entry.Origin.Lat),
		models.RoundCoordinate(entry.Origin.Lng),
		models.RoundCoordinate(entry.Destination.Lat),
		models.RoundCoordinate(entry.Destination.Lng),
		entry.DistanceMeters, entry.DurationSecs,
		entry.Geometry, cachedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}

	return nil
}

func (r *routeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.closed {
		return database.ErrCacheClosed
	}

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM route_cache"); err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}

	return nil
}

func (r *routeCacheRepository) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if r.store.closed {
		return 0, database.ErrCacheClosed
	}

	var n int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM route_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count route cache entries: %w", err)
	}
	return n, nil
}
