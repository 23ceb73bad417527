package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourist-safety/internal/geocoding"
	"tourist-safety/internal/models"
	"tourist-safety/internal/weather"
)

var errGeocoderUnavailable = errors.New("geocoding is not configured")

// WeatherResponse is the current weather at a point
type WeatherResponse struct {
	Coords    models.Coordinates `json:"coords"`
	Condition string             `json:"condition"`
	weather.Current
}

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(c *gin.Context) {
	query := c.Query("address")

	if len(query) < 4 || h.Geocoder == nil {
		c.JSON(http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	results, err := h.Geocoder.Search(c.Request.Context(), query, 5)
	if err != nil {
		h.logger().Warn("address search failed", zap.String("query", query), zap.Error(err))
		c.JSON(http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	h.logger().Debug("address search", zap.String("query", query), zap.Int("results", len(results)))
	c.JSON(http.StatusOK, results)
}

// HandleWeather handles GET /api/v1/weather
func (h *Handler) HandleWeather(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		h.handleValidationError(c, "lat and lng query parameters are required")
		return
	}

	coords := models.Coordinates{Lat: lat, Lng: lng}
	if err := coords.Validate(); err != nil {
		h.handleValidationError(c, err.Error())
		return
	}

	current, err := h.Weather.Current(c.Request.Context(), coords)
	if err != nil {
		h.handleUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, WeatherResponse{Coords: coords, Condition: current.Condition(), Current: *current})
}
