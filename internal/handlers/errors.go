package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"image-transform-backend/internal/middleware"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/services"
)

var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{services.ErrAlreadyPaid, http.StatusBadRequest, "already_paid"},
	{services.ErrAlreadyGenerated, http.StatusBadRequest, "already_generated"},
	{services.ErrPaymentRequired, http.StatusPaymentRequired, "payment_required"},
	{services.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{services.ErrGenerationFailed, http.StatusInternalServerError, "generation_failed"},
	{services.ErrStorageFailed, http.StatusInternalServerError, "storage_failed"},
	{services.ErrPaymentFailed, http.StatusBadGateway, "payment_failed"},
}

// respondError maps a coordinator error onto its HTTP status and error kind.
// Coordinator messages never carry upstream error text, so they are safe to show.
func respondError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			c.JSON(k.status, models.ErrorResponse{Error: k.kind, Message: err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "internal server error",
	})
}

func invalidInput(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_input", Message: message})
}

func currentIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized", Message: "user id not found"})
		return models.Identity{}, false
	}
	return identity, true
}

func projectIDParam(c *gin.Context) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		invalidInput(c, "invalid project id")
		return uuid.Nil, false
	}
	return projectID, true
}

// bindProjectID reads a {"project_id": "..."} JSON body.
func bindProjectID(c *gin.Context) (uuid.UUID, bool) {
	var req models.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "project_id is required")
		return uuid.Nil, false
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		invalidInput(c, "invalid project id")
		return uuid.Nil, false
	}
	return projectID, true
}
