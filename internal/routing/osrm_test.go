package routing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourist-safety/internal/models"
	"tourist-safety/internal/routing"
	"tourist-safety/internal/testutil"
)

var (
	connaughtPlace = models.Coordinates{Lat: 28.6139, Lng: 77.2090}
	rohini         = models.Coordinates{Lat: 28.7041, Lng: 77.1025}
)

func TestOSRMRoute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/walking/77.209000,28.613900;77.102500,28.704100", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "true", r.URL.Query().Get("steps"))
		assert.Equal(t, "true", r.URL.Query().Get("annotations"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"Ok","routes":[
			{"distance":11800.4,"duration":9000,"geometry":"_p~iF~ps|U"},
			{"distance":99999,"duration":1,"geometry":"other"}
		]}`))
	}))
	defer server.Close()

	provider := routing.NewOSRMProvider(server.URL, nil, 0, zap.NewNop())

	route, err := provider.Route(context.Background(), models.TravelModeWalking, connaughtPlace, rohini)
	require.NoError(t, err)
	assert.Equal(t, 11800.4, route.DistanceMeters)
	assert.Equal(t, 9000.0, route.DurationSecs)
	assert.Equal(t, "_p~iF~ps|U", route.Geometry)
}

func TestOSRMRoute_Failures(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		wantReason string
	}{
		{"http error", http.StatusInternalServerError, "boom", "HTTP 500: boom"},
		{"error code", http.StatusOK, `{"code":"NoRoute","message":"Impossible route"}`, "OSRM error: NoRoute (Impossible route)"},
		{"zero routes", http.StatusOK, `{"code":"Ok","routes":[]}`, "no routes returned"},
		{"malformed body", http.StatusOK, `{"code":`, "decode response"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			provider := routing.NewOSRMProvider(server.URL, nil, 0, zap.NewNop())

			route, err := provider.Route(context.Background(), models.TravelModeDriving, connaughtPlace, rohini)
			require.Error(t, err)
			assert.Nil(t, route)

			var routeErr *routing.ErrRouteFailed
			require.True(t, errors.As(err, &routeErr))
			assert.Equal(t, models.TravelModeDriving, routeErr.Mode)
			assert.Contains(t, routeErr.Reason, tc.wantReason)
		})
	}
}

func TestOSRMRoute_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	provider := routing.NewOSRMProvider(server.URL, nil, 0, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Route(ctx, models.TravelModeDriving, connaughtPlace, rohini)
	var routeErr *routing.ErrRouteFailed
	assert.True(t, errors.As(err, &routeErr))
}

func TestOSRMRoute_CacheHitSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := testutil.NewMockRouteCache()
	require.NoError(t, cache.Set(context.Background(), &models.RouteCacheEntry{
		Mode:           models.TravelModeTransit,
		Origin:         connaughtPlace,
		Destination:    rohini,
		DistanceMeters: 13500,
		DurationSecs:   2400,
		Geometry:       "cached",
	}))

	provider := routing.NewOSRMProvider(server.URL, cache, time.Hour, zap.NewNop())

	route, err := provider.Route(context.Background(), models.TravelModeTransit, connaughtPlace, rohini)
	require.NoError(t, err)
	assert.Equal(t, 13500.0, route.DistanceMeters)
	assert.Equal(t, "cached", route.Geometry)
	assert.Equal(t, int32(0), hits.Load())
}

func TestOSRMRoute_StoresSuccessfulResponse(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":12100,"duration":3300,"geometry":"abc"}]}`))
	}))
	defer server.Close()

	cache := testutil.NewMockRouteCache()
	provider := routing.NewOSRMProvider(server.URL, cache, time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := provider.Route(ctx, models.TravelModeBicycling, connaughtPlace, rohini)
	require.NoError(t, err)
	route, err := provider.Route(ctx, models.TravelModeBicycling, connaughtPlace, rohini)
	require.NoError(t, err)

	assert.Equal(t, 12100.0, route.DistanceMeters)
	assert.Equal(t, int32(1), hits.Load())

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOSRMRoute_CacheErrorsIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":100,"duration":60,"geometry":""}]}`))
	}))
	defer server.Close()

	cache := testutil.NewMockRouteCache()
	cache.GetErr = errors.New("disk on fire")
	cache.SetErr = errors.New("disk on fire")

	provider := routing.NewOSRMProvider(server.URL, cache, 0, zap.NewNop())

	route, err := provider.Route(context.Background(), models.TravelModeDriving, connaughtPlace, rohini)
	require.NoError(t, err)
	assert.Equal(t, 100.0, route.DistanceMeters)
}
