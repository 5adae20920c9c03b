package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/services"
)

type PaymentsHandler struct {
	coordinator *services.Coordinator
}

func NewPaymentsHandler(coordinator *services.Coordinator) *PaymentsHandler {
	return &PaymentsHandler{coordinator: coordinator}
}

// CreatePaymentSession godoc
// @Summary     Create a payment session
// @Description Opens a hosted checkout for the project's fixed price
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.ProjectRequest true "Project"
// @Success     200 {object} models.PaymentSessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /payment-sessions [post]
func (h *PaymentsHandler) CreatePaymentSession(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	projectID, ok := bindProjectID(c)
	if !ok {
		return
	}

	session, err := h.coordinator.CreatePaymentSession(c.Request.Context(), identity, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PaymentSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}
