package models

import "time"

type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
}

type ProjectResponse struct {
	ID                      string    `json:"id"`
	InputImageURL           string    `json:"input_image_url"`
	OutputImageURL          *string   `json:"output_image_url"`
	Prompt                  string    `json:"prompt"`
	Status                  string    `json:"status"`
	PaymentStatus           string    `json:"payment_status"`
	PaymentAmount           float64   `json:"payment_amount"`
	StripeCheckoutSessionID *string   `json:"stripe_checkout_session_id,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func NewProjectResponse(p *Project) ProjectResponse {
	return ProjectResponse{
		ID:                      p.ID.String(),
		InputImageURL:           p.InputImageURL,
		OutputImageURL:          p.OutputImageURL,
		Prompt:                  p.Prompt,
		Status:                  string(p.Status),
		PaymentStatus:           string(p.PaymentStatus),
		PaymentAmount:           p.PaymentAmount,
		StripeCheckoutSessionID: p.StripeCheckoutSessionID,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type StatusResponse struct {
	ProjectID      string    `json:"project_id"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	OutputImageURL *string   `json:"output_image_url"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type PaymentSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type GenerationResponse struct {
	OutputImageLocation string `json:"output_image_location"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type PricingResponse struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Model    string  `json:"model"`
}

type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Time    time.Time `json:"time"`
}
