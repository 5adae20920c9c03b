package payments_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-transform-backend/internal/payments"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func sessionEvent(eventType, paymentStatus, projectID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "payment_intent": "pi_1",
      "payment_status": %q,
      "metadata": {"project_id": %q, "user_id": "u_1"}
    }
  }
}`, eventType, paymentStatus, projectID))
}

func newGateway() *payments.StripeGateway {
	return payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testSecret,
		PublicURL:     "https://app.example.com",
	})
}

func TestVerifyAndParse_SessionCompleted(t *testing.T) {
	payload := sessionEvent("checkout.session.completed", "paid", "proj-1")

	ev, err := newGateway().VerifyAndParse(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, payments.EventPaymentSucceeded, ev.Kind)
	assert.Equal(t, "cs_test_1", ev.SessionID)
	assert.Equal(t, "pi_1", ev.PaymentReference)
	assert.Equal(t, "proj-1", ev.ProjectID)
	assert.Equal(t, "u_1", ev.UserID)
}

func TestVerifyAndParse_UnpaidCompletionIsIgnored(t *testing.T) {
	payload := sessionEvent("checkout.session.completed", "unpaid", "proj-1")

	ev, err := newGateway().VerifyAndParse(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, payments.EventIgnored, ev.Kind)
}

func TestVerifyAndParse_Expired(t *testing.T) {
	payload := sessionEvent("checkout.session.expired", "unpaid", "proj-1")

	ev, err := newGateway().VerifyAndParse(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, payments.EventSessionExpired, ev.Kind)
	assert.Equal(t, "proj-1", ev.ProjectID)
}

func TestVerifyAndParse_UnknownTypeIgnored(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	ev, err := newGateway().VerifyAndParse(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, payments.EventIgnored, ev.Kind)
	assert.Equal(t, "customer.created", ev.Type)
}

func TestVerifyAndParse_RejectsBadSignatures(t *testing.T) {
	payload := sessionEvent("checkout.session.completed", "paid", "proj-1")
	g := newGateway()

	cases := map[string]string{
		"missing header": "",
		"wrong secret":   sign(payload, "whsec_other", time.Now()),
		"stale":          sign(payload, testSecret, time.Now().Add(-time.Hour)),
		"garbage":        "not-a-signature",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.VerifyAndParse(payload, header)
			assert.ErrorIs(t, err, payments.ErrInvalidSignature)
		})
	}

	t.Run("tampered body", func(t *testing.T) {
		header := sign(payload, testSecret, time.Now())
		tampered := sessionEvent("checkout.session.completed", "paid", "proj-2")
		_, err := g.VerifyAndParse(tampered, header)
		assert.ErrorIs(t, err, payments.ErrInvalidSignature)
	})
}

func TestCreateSession(t *testing.T) {
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_42","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_42"}`))
	}))
	defer server.Close()

	g := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testSecret,
		PublicURL:     "https://app.example.com/",
		APIURL:        server.URL,
	})

	s, err := g.CreateSession(context.Background(), payments.SessionRequest{
		AmountCents:     99,
		Currency:        "eur",
		ProductName:     "AI image generation",
		Description:     "One transformation",
		Metadata:        map[string]string{"project_id": "proj-1", "user_id": "u_1"},
		ClientReference: "u_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_42", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_42", s.URL)
	assert.Equal(t, "proj-1", first(form["metadata[project_id]"]))
	assert.Equal(t, "99", first(form["line_items[0][price_data][unit_amount]"]))
	assert.Equal(t, "eur", first(form["line_items[0][price_data][currency]"]))
	assert.Equal(t, "payment", first(form["mode"]))
	assert.Equal(t, "https://app.example.com/dashboard?canceled=true", first(form["cancel_url"]))
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
