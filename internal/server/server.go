package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourist-safety/internal/config"
	"tourist-safety/internal/events"
	"tourist-safety/internal/geocoding"
	"tourist-safety/internal/handlers"
	"tourist-safety/internal/health"
	"tourist-safety/internal/routing"
	"tourist-safety/internal/session"
	"tourist-safety/internal/sos"
	"tourist-safety/internal/sqlite"
	"tourist-safety/internal/staticmap"
	"tourist-safety/internal/weather"
)

const maxJanitorInterval = time.Minute

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	store      *sqlite.Store
	sos        *sos.Service
	listener   net.Listener
	addr       string
	idleTTL    time.Duration
	logger     *zap.Logger

	stopJanitor context.CancelFunc
	janitorDone sync.WaitGroup
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("initializing route cache", zap.String("path", cfg.RouteCachePath))
	store, err := sqlite.New(cfg.RouteCachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize route cache: %w", err)
	}

	provider := routing.NewOSRMProvider(cfg.RoutingBaseURL, store.RouteCache(), cfg.RouteCacheTTL, logger)
	aggregator := routing.NewAggregator(provider, cfg.RoutingTimeout, logger)

	publisher := events.New(cfg.KafkaBrokers, cfg.SOSTopic, logger)
	sosService := sos.NewService(publisher, cfg.SOSResponseDelay, logger)

	checker := health.NewChecker(
		[]health.Service{
			{Name: "AI Service", URL: cfg.AIServiceURL},
			{Name: "Geo Service", URL: cfg.GeoServiceURL},
			{Name: "Alert Service", URL: cfg.AlertServiceURL},
		},
		[]health.LocalCheck{{Name: "route cache", Check: store.HealthCheck}},
		cfg.HealthTimeout,
		logger,
	)

	handler := &handlers.Handler{
		Sessions: session.NewStore(aggregator, logger),
		Routes:   aggregator,
		Geocoder: geocoding.NewNominatimGeocoder(cfg.GeocodingBaseURL, cfg.GeocodingUserAgent, logger),
		Weather:  weather.NewOpenMeteoClient(cfg.WeatherBaseURL, logger),
		Maps:     staticmap.NewBuilder(cfg.StaticMapBaseURL, cfg.StaticMapAPIKey, logger),
		SOS:      sosService,
		Health:   checker,
		Logger:   logger.Named("http"),
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(requestID())
	engine.Use(recovery(logger))
	engine.Use(requestLogger(logger.Named("http")))
	engine.Use(corsConfig(cfg.CORSAllowedOrigins))
	handler.RegisterRoutes(&engine.RouterGroup)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		store:      store,
		sos:        sosService,
		addr:       cfg.ServerAddr,
		idleTTL:    cfg.SessionIdleTTL,
		logger:     logger,
	}, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.logger.Info("starting server", zap.String("addr", actualAddr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	s.janitorDone.Add(1)
	go s.pruneSessions(ctx)

	return actualAddr, nil
}

// pruneSessions drops idle sessions and their SOS alerts until ctx ends
func (s *Server) pruneSessions(ctx context.Context) {
	defer s.janitorDone.Done()
	if s.idleTTL <= 0 {
		return
	}

	interval := s.idleTTL / 4
	if interval > maxJanitorInterval {
		interval = maxJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.handler.Sessions.Prune(s.idleTTL) {
				s.sos.Forget(id)
			}
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopJanitor != nil {
		s.stopJanitor()
		s.janitorDone.Wait()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.sos.Close(); err != nil {
		s.logger.Warn("failed to close SOS publisher", zap.Error(err))
	}
	return s.store.Close()
}
