package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tourist-safety/internal/models"
	"tourist-safety/internal/sos"
)

type sosRequest struct {
	Type string `json:"type" binding:"required"`
}

// HandleRaiseSOS handles POST /api/v1/sessions/:id/sos. The alert is located
// at the session origin when one is known.
func (h *Handler) HandleRaiseSOS(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req sosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, "type is required")
		return
	}
	alertType, err := sos.ParseType(req.Type)
	if err != nil {
		h.handleValidationError(c, err.Error())
		return
	}

	var location *models.Coordinates
	if snap := state.Snapshot(); snap.Origin != nil {
		loc := snap.Origin.Coords
		location = &loc
	}

	alert, err := h.SOS.Raise(c.Request.Context(), state.ID(), alertType, location)
	if err != nil {
		h.handleInternalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// HandleSOSHistory handles GET /api/v1/sessions/:id/sos
func (h *Handler) HandleSOSHistory(c *gin.Context) {
	state, ok := h.lookupSession(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.handleValidationError(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, gin.H{"alerts": h.SOS.History(state.ID(), limit)})
}
