package models

type ProjectRequest struct {
	ProjectID string `json:"project_id" binding:"required" example:"8b6f1c2e-1d7a-4a43-9f51-2c0b1f0d9e11"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
