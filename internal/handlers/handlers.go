package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourist-safety/internal/geocoding"
	"tourist-safety/internal/health"
	"tourist-safety/internal/routing"
	"tourist-safety/internal/session"
	"tourist-safety/internal/sos"
	"tourist-safety/internal/staticmap"
	"tourist-safety/internal/weather"
)

// Handler provides common handler utilities and dependencies
type Handler struct {
	Sessions *session.Store
	Routes   routing.RouteComputer
	Geocoder geocoding.Geocoder
	Weather  weather.Provider
	Maps     *staticmap.Builder
	SOS      *sos.Service
	Health   health.Reporter
	Logger   *zap.Logger
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RegisterRoutes mounts the API under /api/v1
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.HandleHealth)
		api.GET("/routes", h.HandleComputeRoutes)
		api.GET("/weather", h.HandleWeather)
		api.GET("/address-search", h.HandleAddressSearch)
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.HandleCreateSession)
		sessions.GET("/:id", h.HandleGetSession)
		sessions.DELETE("/:id", h.HandleDeleteSession)
		sessions.PUT("/:id/origin", h.HandleSetOrigin)
		sessions.PUT("/:id/destination", h.HandleSetDestination)
		sessions.PUT("/:id/mode", h.HandleSetMode)
		sessions.POST("/:id/refresh", h.HandleRefresh)
		sessions.GET("/:id/path", h.HandleActivePath)
		sessions.GET("/:id/map", h.HandleStaticMap)
		sessions.GET("/:id/tips", h.HandleTips)
		sessions.GET("/:id/nearby", h.HandleNearby)
		sessions.POST("/:id/sos", h.HandleRaiseSOS)
		sessions.GET("/:id/sos", h.HandleSOSHistory)
		sessions.POST("/:id/wallet/parking", h.HandlePayParking)
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// writeError writes a JSON error response
func (h *Handler) writeError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(c *gin.Context, message string) {
	h.writeError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(c *gin.Context, message string) {
	h.writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(c *gin.Context, err error) {
	h.writeError(c, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
}

// handleUpstreamError handles 502 errors from external services
func (h *Handler) handleUpstreamError(c *gin.Context, err error) {
	h.logger().Warn("upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
	h.writeError(c, http.StatusBadGateway, "UPSTREAM_FAILED", err.Error(), nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(c *gin.Context, err error) {
	h.logger().Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
	h.writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handleSessionError maps state transition errors to responses
func (h *Handler) handleSessionError(c *gin.Context, snap session.Snapshot, err error) {
	var invalid *routing.ErrInvalidCoordinates
	switch {
	case errors.Is(err, session.ErrSuperseded):
		// a newer request owns the table; the caller still gets the current state
		c.JSON(http.StatusOK, snap)
	case errors.As(err, &invalid):
		h.handleValidationError(c, invalid.Error())
	case errors.Is(err, session.ErrUnknownMode), errors.Is(err, session.ErrIncomplete):
		h.handleValidationError(c, err.Error())
	case errors.Is(err, session.ErrInsufficientFunds):
		h.writeError(c, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", err.Error(), gin.H{"balance": snap.Balance})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.handleUpstreamError(c, err)
	default:
		h.handleInternalError(c, err)
	}
}

// lookupSession resolves :id or writes a 404
func (h *Handler) lookupSession(c *gin.Context) (*session.State, bool) {
	state, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.handleNotFound(c, "session not found")
		return nil, false
	}
	return state, true
}
