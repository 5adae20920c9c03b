package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/services"
)

type StatusHandler struct {
	coordinator *services.Coordinator
}

func NewStatusHandler(coordinator *services.Coordinator) *StatusHandler {
	return &StatusHandler{coordinator: coordinator}
}

func (h *StatusHandler) GetStatus(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	status, err := h.coordinator.GetStatus(c.Request.Context(), identity, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
