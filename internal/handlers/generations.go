package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/services"
)

type GenerationsHandler struct {
	coordinator *services.Coordinator
}

func NewGenerationsHandler(coordinator *services.Coordinator) *GenerationsHandler {
	return &GenerationsHandler{coordinator: coordinator}
}

// Generate godoc
// @Summary     Generate the transformed image
// @Description Runs the paid transformation once. Blocks until the output is stored; clients may poll /projects/{project_id}/status instead.
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.ProjectRequest true "Project"
// @Success     200 {object} models.GenerationResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generations [post]
func (h *GenerationsHandler) Generate(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	projectID, ok := bindProjectID(c)
	if !ok {
		return
	}

	location, err := h.coordinator.GenerateOutput(c.Request.Context(), identity, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GenerationResponse{OutputImageLocation: location})
}
