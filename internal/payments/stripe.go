package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedEvent   = errors.New("malformed event")
)

type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventSessionExpired   EventKind = "session_expired"
	EventPaymentFailed    EventKind = "payment_failed"
	EventIgnored          EventKind = "ignored"
)

// Event is a verified gateway notification reduced to what reconciliation needs.
// ProjectID and UserID come from metadata the server attached to the session.
type Event struct {
	ID               string
	Type             string
	Kind             EventKind
	SessionID        string
	PaymentReference string
	ProjectID        string
	UserID           string
}

type SessionRequest struct {
	AmountCents     int64
	Currency        string
	ProductName     string
	Description     string
	Metadata        map[string]string
	ClientReference string
}

type Session struct {
	ID  string
	URL string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PublicURL     string
	// APIURL overrides the Stripe API endpoint, e.g. for stripe-mock.
	APIURL string
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL: stripe.String(cfg.APIURL),
			}),
		}
	}

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		successURL:    publicURL + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:     publicURL + "/dashboard?canceled=true",
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.ProductName),
					Description: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.ClientReference),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// VerifyAndParse checks the Stripe-Signature header against the signing secret
// before looking at any of the payload.
func (g *StripeGateway) VerifyAndParse(payload []byte, signatureHeader string) (*Event, error) {
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return parseEvent(ev)
}

func parseEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type), Kind: EventIgnored}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.expired", "checkout.session.async_payment_failed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.SessionID = s.ID
		out.ProjectID = s.Metadata["project_id"]
		out.UserID = s.Metadata["user_id"]
		if s.PaymentIntent != nil {
			out.PaymentReference = s.PaymentIntent.ID
		}

		switch out.Type {
		case "checkout.session.completed":
			// Delayed payment methods complete the session before funds arrive;
			// async_payment_succeeded follows.
			if string(s.PaymentStatus) != "unpaid" {
				out.Kind = EventPaymentSucceeded
			}
		case "checkout.session.async_payment_succeeded":
			out.Kind = EventPaymentSucceeded
		default:
			out.Kind = EventSessionExpired
		}

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.Kind = EventPaymentFailed
		out.PaymentReference = pi.ID
		out.ProjectID = pi.Metadata["project_id"]
		out.UserID = pi.Metadata["user_id"]
	}

	return out, nil
}
