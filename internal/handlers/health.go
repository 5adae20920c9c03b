package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/models"
)

const serviceName = "image-transform-backend"

// HealthHandler godoc
// @Summary     Health check
// @Description Liveness check. Needs no credentials and touches no backend.
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Service: serviceName,
		Time:    time.Now().UTC(),
	})
}
