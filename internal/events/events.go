// Package events publishes project lifecycle events for downstream consumers
// (dashboards, notifications). Publishing is best effort; callers log failures.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ProjectCreated        = "project.created"
	ProjectDeleted        = "project.deleted"
	PaymentSessionCreated = "payment.session_created"
	PaymentPaid           = "payment.paid"
	PaymentCancelled      = "payment.cancelled"
	GenerationStarted     = "generation.started"
	GenerationCompleted   = "generation.completed"
	GenerationFailed      = "generation.failed"
)

type Event struct {
	Type       string                 `json:"type"`
	ProjectID  string                 `json:"project_id"`
	UserID     string                 `json:"user_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func New(eventType string, projectID, userID uuid.UUID, payload map[string]interface{}) Event {
	e := Event{
		Type:       eventType,
		ProjectID:  projectID.String(),
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
	if userID != uuid.Nil {
		e.UserID = userID.String()
	}
	return e
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Payload builders

func StatusPayload(status string) map[string]interface{} {
	return map[string]interface{}{
		"status": status,
	}
}

func PaymentPayload(paymentStatus, sessionID string) map[string]interface{} {
	return map[string]interface{}{
		"payment_status": paymentStatus,
		"session_id":     sessionID,
	}
}

func GenerationCompletedPayload(outputURL string, elapsed time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"status":           "completed",
		"output_image_url": outputURL,
		"elapsed_ms":       elapsed.Milliseconds(),
	}
}

func GenerationFailedPayload(stage string, err error) map[string]interface{} {
	return map[string]interface{}{
		"status": "processing",
		"stage":  stage,
		"error":  err.Error(),
	}
}
