package payment

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

func TestIntentIDFromClientSecret(t *testing.T) {
	id, err := IntentIDFromClientSecret("pi_3Abc123_secret_XyZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "pi_3Abc123" {
		t.Fatalf("got %q", id)
	}
	for _, bad := range []string{"", "pi_123", "seti_1_secret_2", "_secret_abc"} {
		if _, err := IntentIDFromClientSecret(bad); !errors.Is(err, ErrInvalidSecret) {
			t.Errorf("%q: expected ErrInvalidSecret, got %v", bad, err)
		}
	}
}

func TestIntentCancellable(t *testing.T) {
	for status, want := range map[string]bool{
		StatusRequiresCapture:       true,
		StatusRequiresPaymentMethod: true,
		StatusProcessing:            true,
		StatusSucceeded:             false,
		StatusCanceled:              false,
	} {
		if got := (&Intent{Status: status}).Cancellable(); got != want {
			t.Errorf("%s: got %v, want %v", status, got, want)
		}
	}
}

func signedPayload(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%s,v1=%x", strconv.FormatInt(now.Unix(), 10), sig)
}

func TestParseWebhook(t *testing.T) {
	g := NewStripeGateway("sk_test_x", "whsec_test")
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"api_version": "2020-08-27",
		"data": {"object": {"id": "pi_42", "object": "payment_intent", "status": "succeeded", "amount": 45000,
			"metadata": {"reservation_code": "HB-ABCDEFGH"}}}
	}`)

	ev, err := g.ParseWebhook(payload, signedPayload(t, "whsec_test", payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != EventPaymentSucceeded {
		t.Fatalf("unexpected type %q", ev.Type)
	}
	if ev.Intent == nil || ev.Intent.ID != "pi_42" || ev.Intent.Metadata["reservation_code"] != "HB-ABCDEFGH" {
		t.Fatalf("unexpected intent %+v", ev.Intent)
	}

	if _, err := g.ParseWebhook(payload, signedPayload(t, "whsec_other", payload)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
