package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tourist-safety/internal/models"
)

// NearbyPlace is a point of interest near the traveller
type NearbyPlace struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Distance string `json:"distance"`
}

// NearbyResponse lists places around the session origin
type NearbyResponse struct {
	Origin models.Coordinates `json:"origin"`
	Places []NearbyPlace      `json:"places"`
}

// nearbyPlaces is a fixed directory; no places provider is wired yet
var nearbyPlaces = []NearbyPlace{
	{Name: "Tourist Information Center", Type: "info", Distance: "0.2 km"},
	{Name: "Emergency Hospital", Type: "hospital", Distance: "1.5 km"},
	{Name: "Police Station", Type: "police", Distance: "2.1 km"},
	{Name: "Gas Station", Type: "fuel", Distance: "0.8 km"},
	{Name: "Restaurant", Type: "food", Distance: "0.5 km"},
	{Name: "Hotel", Type: "accommodation", Distance: "1.2 km"},
}

// HandleNearby handles GET /api/v1/sessions/:id/nearby
func (h *Handler) HandleNearby(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snap := state.Snapshot()
	if snap.Origin == nil {
		h.handleValidationError(c, "origin not set")
		return
	}

	places := make([]NearbyPlace, len(nearbyPlaces))
	copy(places, nearbyPlaces)
	c.JSON(http.StatusOK, NearbyResponse{Origin: snap.Origin.Coords, Places: places})
}
