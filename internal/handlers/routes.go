package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourist-safety/internal/models"
	"tourist-safety/internal/routing"
	"tourist-safety/internal/session"
	"tourist-safety/internal/staticmap"
	"tourist-safety/internal/weather"
)

// RoutesResponse is the stateless route table answer
type RoutesResponse struct {
	Origin      models.Coordinates `json:"origin"`
	Destination models.Coordinates `json:"destination"`
	Routes      models.RouteTable  `json:"routes"`
}

// PathResponse is the decoded active route
type PathResponse struct {
	Mode models.TravelMode `json:"mode"`
	staticmap.Path
}

// TipsResponse carries travel advice for a session
type TipsResponse struct {
	Mode      models.TravelMode `json:"mode"`
	Weather   *weather.Current  `json:"weather,omitempty"`
	Condition string            `json:"condition,omitempty"`
	Tips      []string          `json:"tips"`
}

// parseLatLng parses "lat,lng"
func parseLatLng(s string) (models.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coordinates{}, fmt.Errorf("expected lat,lng but got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}

// HandleComputeRoutes handles GET /api/v1/routes
func (h *Handler) HandleComputeRoutes(c *gin.Context) {
	origin, err := parseLatLng(c.Query("origin"))
	if err != nil {
		h.handleValidationError(c, "origin: "+err.Error())
		return
	}
	dest, err := parseLatLng(c.Query("destination"))
	if err != nil {
		h.handleValidationError(c, "destination: "+err.Error())
		return
	}

	table, err := h.Routes.ComputeRoutes(c.Request.Context(), origin, dest)
	if err != nil {
		var invalid *routing.ErrInvalidCoordinates
		if errors.As(err, &invalid) {
			h.handleValidationError(c, invalid.Error())
			return
		}
		h.handleInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, RoutesResponse{Origin: origin, Destination: dest, Routes: table})
}

// HandleActivePath handles GET /api/v1/sessions/:id/path
func (h *Handler) HandleActivePath(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snap := state.Snapshot()
	if snap.Origin == nil || snap.Destination == nil {
		h.handleValidationError(c, session.ErrIncomplete.Error())
		return
	}

	path := staticmap.RoutePath(snap.Active.Geometry, snap.Origin.Coords, snap.Destination.Coords)
	c.JSON(http.StatusOK, PathResponse{Mode: snap.Mode, Path: path})
}

// HandleStaticMap handles GET /api/v1/sessions/:id/map. With format=url the
// map URL is returned without the API key; otherwise the image is proxied.
func (h *Handler) HandleStaticMap(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snap := state.Snapshot()
	if snap.Origin == nil {
		h.handleValidationError(c, staticmap.ErrNoOrigin.Error())
		return
	}
	origin := snap.Origin.Coords
	var dest *models.Coordinates
	if snap.Destination != nil {
		d := snap.Destination.Coords
		dest = &d
	}

	if c.Query("format") == "url" {
		mapURL, err := h.Maps.URL(&origin, dest, snap.Active.Geometry, false)
		if err != nil {
			h.handleInternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": mapURL})
		return
	}

	img, err := h.Maps.Fetch(c.Request.Context(), &origin, dest, snap.Active.Geometry)
	if err != nil {
		h.handleUpstreamError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

// HandleTips handles GET /api/v1/sessions/:id/tips. Weather is looked up at
// the origin; when that fails only the non-weather tips are returned.
func (h *Handler) HandleTips(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snap := state.Snapshot()
	active := models.Unavailable()
	if snap.Routes != nil {
		active = snap.Routes.Get(snap.Mode)
	}

	resp := TipsResponse{Mode: snap.Mode}
	if snap.Origin != nil && h.Weather != nil {
		current, err := h.Weather.Current(c.Request.Context(), snap.Origin.Coords)
		if err != nil {
			h.logger().Warn("weather unavailable for tips", zap.String("session", snap.ID), zap.Error(err))
		} else {
			resp.Weather = current
			resp.Condition = current.Condition()
		}
	}
	resp.Tips = weather.TravelTips(resp.Weather, active)

	c.JSON(http.StatusOK, resp)
}
