package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/services"
)

// Stripe keeps event payloads well under this.
const maxWebhookBytes = 65536

type WebhookHandler struct {
	coordinator *services.Coordinator
}

func NewWebhookHandler(coordinator *services.Coordinator) *WebhookHandler {
	return &WebhookHandler{coordinator: coordinator}
}

// HandleStripeWebhook godoc
// @Summary     Payment gateway webhook
// @Description Receives Stripe events. The raw body is verified against the Stripe-Signature header before anything in it is used.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "Stripe signature"
// @Success     200 {object} models.WebhookResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Router      /payment-webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "payload_too_large", Message: "webhook payload exceeds size limit"})
			return
		}
		invalidInput(c, "failed to read request body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_signature", Message: "missing Stripe-Signature header"})
		return
	}

	if err := h.coordinator.HandlePaymentNotification(c.Request.Context(), body, signature); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.WebhookResponse{Received: true})
}
