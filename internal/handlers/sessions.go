package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourist-safety/internal/models"
)

type originRequest struct {
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	Name string   `json:"name"`
}

type destinationRequest struct {
	Query *string  `json:"query"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Name  string   `json:"name"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

const geocodeRetries = 2

// HandleCreateSession handles POST /api/v1/sessions
func (h *Handler) HandleCreateSession(c *gin.Context) {
	state := h.Sessions.Create()
	c.JSON(http.StatusCreated, state.Snapshot())
}

// HandleGetSession handles GET /api/v1/sessions/:id
func (h *Handler) HandleGetSession(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, state.Snapshot())
}

// HandleDeleteSession handles DELETE /api/v1/sessions/:id
func (h *Handler) HandleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.Sessions.Delete(id); err != nil {
		h.handleNotFound(c, "session not found")
		return
	}
	if h.SOS != nil {
		h.SOS.Forget(id)
	}
	c.Status(http.StatusNoContent)
}

// HandleSetOrigin handles PUT /api/v1/sessions/:id/origin. When no name is
// given the origin is reverse-geocoded; a lookup failure leaves it unnamed.
func (h *Handler) HandleSetOrigin(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req originRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, "Invalid request body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		h.handleValidationError(c, "lat and lng are required")
		return
	}

	coords := models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	name := strings.TrimSpace(req.Name)
	if name == "" && h.Geocoder != nil && coords.Validate() == nil {
		if place, err := h.Geocoder.Reverse(c.Request.Context(), coords); err == nil {
			name = place
		} else {
			h.logger().Debug("reverse geocoding failed", zap.String("coords", coords.String()), zap.Error(err))
		}
	}

	snap, err := state.SetOrigin(coords, name)
	if err != nil {
		h.handleSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleSetDestination handles PUT /api/v1/sessions/:id/destination. The body
// carries either a free-text query or explicit coordinates. A missing and an
// empty query are treated the same.
func (h *Handler) HandleSetDestination(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req destinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, "Invalid request body")
		return
	}

	var (
		dest models.Coordinates
		name = strings.TrimSpace(req.Name)
	)
	query := ""
	if req.Query != nil {
		query = strings.TrimSpace(*req.Query)
	}

	switch {
	case query != "":
		if h.Geocoder == nil {
			h.handleGeocodingError(c, errGeocoderUnavailable)
			return
		}
		result, err := h.Geocoder.GeocodeWithRetry(c.Request.Context(), query, geocodeRetries)
		if err != nil {
			h.logger().Info("destination not resolvable", zap.String("query", query), zap.Error(err))
			h.handleGeocodingError(c, err)
			return
		}
		dest = result.Coords
		if name == "" {
			name = result.DisplayName
		}
	case req.Lat != nil && req.Lng != nil:
		dest = models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	default:
		h.handleValidationError(c, "query or lat and lng are required")
		return
	}

	snap, err := state.SetDestination(c.Request.Context(), dest, name)
	if err != nil {
		h.handleSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleSetMode handles PUT /api/v1/sessions/:id/mode
func (h *Handler) HandleSetMode(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, "mode is required")
		return
	}

	mode, err := models.ParseTravelMode(req.Mode)
	if err != nil {
		h.handleValidationError(c, err.Error())
		return
	}

	snap, err := state.SetMode(mode)
	if err != nil {
		h.handleSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleRefresh handles POST /api/v1/sessions/:id/refresh
func (h *Handler) HandleRefresh(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snap, err := state.Refresh(c.Request.Context())
	if err != nil {
		h.handleSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandlePayParking handles POST /api/v1/sessions/:id/wallet/parking
func (h *Handler) HandlePayParking(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snap, err := state.PayParking()
	if err != nil {
		h.handleSessionError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
