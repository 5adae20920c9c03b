package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Column names of the projects table.
const (
	ColumnID                      = "id"
	ColumnUserID                  = "user_id"
	ColumnInputImageURL           = "input_image_url"
	ColumnOutputImageURL          = "output_image_url"
	ColumnPrompt                  = "prompt"
	ColumnStatus                  = "status"
	ColumnPaymentStatus           = "payment_status"
	ColumnPaymentAmount           = "payment_amount"
	ColumnStripeCheckoutSessionID = "stripe_checkout_session_id"
	ColumnStripePaymentIntentID   = "stripe_payment_intent_id"
	ColumnCreatedAt               = "created_at"
	ColumnUpdatedAt               = "updated_at"
)

// Project is one image-transformation job.
type Project struct {
	ID                      uuid.UUID     `json:"id" db:"id"`
	UserID                  uuid.UUID     `json:"user_id" db:"user_id"`
	InputImageURL           string        `json:"input_image_url" db:"input_image_url"`
	OutputImageURL          *string       `json:"output_image_url" db:"output_image_url"`
	Prompt                  string        `json:"prompt" db:"prompt"`
	Status                  ProjectStatus `json:"status" db:"status"`
	PaymentStatus           PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentAmount           float64       `json:"payment_amount" db:"payment_amount"`
	StripeCheckoutSessionID *string       `json:"stripe_checkout_session_id" db:"stripe_checkout_session_id"`
	StripePaymentIntentID   *string       `json:"stripe_payment_intent_id" db:"stripe_payment_intent_id"`
	CreatedAt               time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at" db:"updated_at"`
}

// Field returns the string form of a column value, used for equality filtering.
// Null columns return "" and false.
func (p *Project) Field(column string) (string, bool) {
	switch column {
	case ColumnID:
		return p.ID.String(), true
	case ColumnUserID:
		return p.UserID.String(), true
	case ColumnInputImageURL:
		return p.InputImageURL, true
	case ColumnOutputImageURL:
		return derefString(p.OutputImageURL)
	case ColumnPrompt:
		return p.Prompt, true
	case ColumnStatus:
		return string(p.Status), true
	case ColumnPaymentStatus:
		return string(p.PaymentStatus), true
	case ColumnStripeCheckoutSessionID:
		return derefString(p.StripeCheckoutSessionID)
	case ColumnStripePaymentIntentID:
		return derefString(p.StripePaymentIntentID)
	}
	return "", false
}

func (p *Project) HasOutput() bool {
	return p.OutputImageURL != nil && *p.OutputImageURL != ""
}

func derefString(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

// ProjectPatch is a partial update. Nil fields are left untouched.
type ProjectPatch struct {
	Status                  *ProjectStatus `json:"status,omitempty"`
	PaymentStatus           *PaymentStatus `json:"payment_status,omitempty"`
	OutputImageURL          *string        `json:"output_image_url,omitempty"`
	StripeCheckoutSessionID *string        `json:"stripe_checkout_session_id,omitempty"`
	StripePaymentIntentID   *string        `json:"stripe_payment_intent_id,omitempty"`
	UpdatedAt               *time.Time     `json:"updated_at,omitempty"`
}

type ColumnValue struct {
	Column string
	Value  interface{}
}

// Columns lists the set fields in a stable order.
func (p ProjectPatch) Columns() []ColumnValue {
	var cols []ColumnValue
	if p.Status != nil {
		cols = append(cols, ColumnValue{ColumnStatus, string(*p.Status)})
	}
	if p.PaymentStatus != nil {
		cols = append(cols, ColumnValue{ColumnPaymentStatus, string(*p.PaymentStatus)})
	}
	if p.OutputImageURL != nil {
		cols = append(cols, ColumnValue{ColumnOutputImageURL, *p.OutputImageURL})
	}
	if p.StripeCheckoutSessionID != nil {
		cols = append(cols, ColumnValue{ColumnStripeCheckoutSessionID, *p.StripeCheckoutSessionID})
	}
	if p.StripePaymentIntentID != nil {
		cols = append(cols, ColumnValue{ColumnStripePaymentIntentID, *p.StripePaymentIntentID})
	}
	if p.UpdatedAt != nil {
		cols = append(cols, ColumnValue{ColumnUpdatedAt, *p.UpdatedAt})
	}
	return cols
}

func (p ProjectPatch) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// Apply copies the set fields onto dst.
func (p ProjectPatch) Apply(dst *Project) {
	if p.Status != nil {
		dst.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		dst.PaymentStatus = *p.PaymentStatus
	}
	if p.OutputImageURL != nil {
		v := *p.OutputImageURL
		dst.OutputImageURL = &v
	}
	if p.StripeCheckoutSessionID != nil {
		v := *p.StripeCheckoutSessionID
		dst.StripeCheckoutSessionID = &v
	}
	if p.StripePaymentIntentID != nil {
		v := *p.StripePaymentIntentID
		dst.StripePaymentIntentID = &v
	}
	if p.UpdatedAt != nil {
		dst.UpdatedAt = *p.UpdatedAt
	}
}

// Identity is a verified caller. Token is the bearer credential it was derived from,
// forwarded to backends that enforce row-level security themselves.
type Identity struct {
	UserID uuid.UUID
	Token  string
}
