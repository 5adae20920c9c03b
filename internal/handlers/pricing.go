package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/services"
)

type PricingHandler struct {
	coordinator *services.Coordinator
}

func NewPricingHandler(coordinator *services.Coordinator) *PricingHandler {
	return &PricingHandler{coordinator: coordinator}
}

// GetPricing godoc
// @Summary     Get generation price
// @Description Returns the fixed server-side price charged per generation
// @Tags        pricing
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.PricingResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /pricing [get]
func (h *PricingHandler) GetPricing(c *gin.Context) {
	if _, ok := currentIdentity(c); !ok {
		return
	}
	c.JSON(http.StatusOK, h.coordinator.Quote())
}
