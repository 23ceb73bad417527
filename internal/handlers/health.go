package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(c *gin.Context) {
	report := h.Health.Check(c.Request.Context())
	c.JSON(report.HTTPStatus(), report)
}
