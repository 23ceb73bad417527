package routing

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tourist-safety/internal/models"
)

// DefaultRequestTimeout bounds each per-mode provider request
const DefaultRequestTimeout = 10 * time.Second

// Aggregator fans a point pair out to the provider once per travel mode and
// collects a complete RouteTable. Provider failures never escape ComputeRoutes;
// they become Unavailable entries.
type Aggregator struct {
	provider RouteProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAggregator creates an aggregator. A non-positive timeout uses DefaultRequestTimeout.
func NewAggregator(provider RouteProvider, timeout time.Duration, logger *zap.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		provider: provider,
		timeout:  timeout,
		logger:   logger.Named("aggregator"),
	}
}

// ComputeRoutes requests every mode concurrently and waits for all of them to settle
func (a *Aggregator) ComputeRoutes(ctx context.Context, origin, dest models.Coordinates) (models.RouteTable, error) {
	if err := origin.Validate(); err != nil {
		return models.RouteTable{}, &ErrInvalidCoordinates{Field: "origin", Reason: err.Error()}
	}
	if err := dest.Validate(); err != nil {
		return models.RouteTable{}, &ErrInvalidCoordinates{Field: "destination", Reason: err.Error()}
	}

	modes := models.AllTravelModes()
	results := make([]models.RouteResult, len(modes))
	start := time.Now()

	// members never return an error, so one failure cannot cancel its siblings
	var g errgroup.Group
	for i, mode := range modes {
		g.Go(func() error {
			results[i] = a.computeMode(ctx, mode, origin, dest)
			return nil
		})
	}
	_ = g.Wait()

	byMode := make(map[models.TravelMode]models.RouteResult, len(modes))
	for i, mode := range modes {
		byMode[mode] = results[i]
	}
	table := models.NewRouteTable(byMode)

	a.logger.Info("routes computed",
		zap.String("origin", origin.String()),
		zap.String("dest", dest.String()),
		zap.Int("available", table.AvailableCount()),
		zap.Int("modes", table.Len()),
		zap.Duration("elapsed", time.Since(start)))

	return table, nil
}

func (a *Aggregator) computeMode(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates) models.RouteResult {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	route, err := a.provider.Route(reqCtx, mode, origin, dest)
	if err != nil {
		a.logger.Warn("route unavailable", zap.String("mode", string(mode)), zap.Error(err))
		return models.Unavailable()
	}
	if route == nil {
		a.logger.Warn("route unavailable", zap.String("mode", string(mode)), zap.String("reason", "empty provider response"))
		return models.Unavailable()
	}

	return models.NewRouteResult(route.DistanceMeters, route.DurationSecs, route.Geometry)
}
