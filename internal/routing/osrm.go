package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tourist-safety/internal/database"
	"tourist-safety/internal/models"
)

// DefaultOSRMBaseURL is the public OSRM demo server
const DefaultOSRMBaseURL = "https://router.project-osrm.org"

type osrmProvider struct {
	baseURL    string
	httpClient *http.Client
	cache      database.RouteCacheRepository
	cacheTTL   time.Duration
	logger     *zap.Logger
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry string  `json:"geometry"`
}

// NewOSRMProvider creates an OSRM route provider. cache may be nil.
func NewOSRMProvider(baseURL string, cache database.RouteCacheRepository, cacheTTL time.Duration, logger *zap.Logger) RouteProvider {
	if baseURL == "" {
		baseURL = DefaultOSRMBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &osrmProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("osrm"),
	}
}

func (p *osrmProvider) Route(ctx context.Context, mode models.TravelMode, origin, dest models.Coordinates) (*ProviderRoute, error) {
	log := p.logger.With(zap.String("mode", string(mode)))

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, mode, origin, dest, p.cacheTTL)
		if err != nil {
			log.Warn("route cache lookup failed", zap.Error(err))
		} else if cached != nil {
			return &ProviderRoute{
				DistanceMeters: cached.DistanceMeters,
				DurationSecs:   cached.DurationSecs,
				Geometry:       cached.Geometry,
			}, nil
		}
	}

	queryURL := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&steps=true&annotations=true",
		p.baseURL, mode, origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	log.Debug("route request", zap.String("origin", origin.String()), zap.String("dest", dest.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrRouteFailed{Mode: mode, Reason: err.Error()}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ErrRouteFailed{Mode: mode, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ErrRouteFailed{
			Mode:   mode,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		return nil, &ErrRouteFailed{Mode: mode, Reason: fmt.Sprintf("decode response: %v", err)}
	}

	if osrmResp.Code != "Ok" {
		reason := fmt.Sprintf("OSRM error: %s", osrmResp.Code)
		if osrmResp.Message != "" {
			reason += " (" + osrmResp.Message + ")"
		}
		return nil, &ErrRouteFailed{Mode: mode, Reason: reason}
	}

	if len(osrmResp.Routes) == 0 {
		return nil, &ErrRouteFailed{Mode: mode, Reason: "no routes returned"}
	}

	first := osrmResp.Routes[0]
	route := &ProviderRoute{
		DistanceMeters: first.Distance,
		DurationSecs:   first.Duration,
		Geometry:       first.Geometry,
	}

	log.Debug("route response",
		zap.Float64("distance_m", route.DistanceMeters),
		zap.Float64("duration_s", route.DurationSecs),
		zap.Int("alternatives", len(osrmResp.Routes)))

	if p.cache != nil {
		err := p.cache.Set(ctx, &models.RouteCacheEntry{
			Mode:           mode,
			Origin:         origin,
			Destination:    dest,
			DistanceMeters: route.DistanceMeters,
			DurationSecs:   route.DurationSecs,
			Geometry:       route.Geometry,
		})
		if err != nil {
			log.Warn("route cache store failed", zap.Error(err))
		}
	}

	return route, nil
}
