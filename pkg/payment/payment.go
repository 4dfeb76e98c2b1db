// Package payment wraps the card processor behind a small gateway interface.
package payment

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidSignature = errors.New("payment: webhook signature verification failed")
	ErrInvalidSecret    = errors.New("payment: malformed client secret")
)

// Intent statuses used by the booking flows.
const (
	StatusSucceeded             = "succeeded"
	StatusRequiresCapture       = "requires_capture"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusCanceled              = "canceled"
)

// Webhook event types handled by the service.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventAmountCapturable = "payment_intent.amount_capturable_updated"
)

type Intent struct {
	ID               string            `json:"id"`
	ClientSecret     string            `json:"-"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	AmountCapturable int64             `json:"amountCapturable"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	DeclineCode      string            `json:"declineCode,omitempty"`
	DeclineMessage   string            `json:"declineMessage,omitempty"`
}

// Paid reports whether the guest's card has been charged or authorised for this intent.
func (i *Intent) Paid() bool {
	return i.Status == StatusSucceeded || i.Status == StatusRequiresCapture
}

// Cancellable reports whether the processor still accepts a cancel for this intent.
func (i *Intent) Cancellable() bool {
	switch i.Status {
	case StatusRequiresPaymentMethod, StatusRequiresConfirmation, StatusRequiresAction, StatusProcessing, StatusRequiresCapture:
		return true
	}
	return false
}

type IntentParams struct {
	AmountCents  int64
	Currency     string
	Description  string
	ReceiptEmail string
	Metadata     map[string]string
}

type WebhookEvent struct {
	ID     string
	Type   string
	Intent *Intent // nil for events that do not carry a payment intent
}

type Gateway interface {
	CreateIntent(ctx context.Context, p IntentParams) (*Intent, error)
	// CreateHold authorises p.AmountCents with manual capture; nothing is charged until CaptureIntent.
	CreateHold(ctx context.Context, p IntentParams) (*Intent, error)
	UpdateIntent(ctx context.Context, id string, metadata map[string]string, receiptEmail string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CaptureIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// IntentIDFromClientSecret derives "pi_123" from a client secret of the form "pi_123_secret_abc".
func IntentIDFromClientSecret(secret string) (string, error) {
	i := strings.Index(secret, "_secret_")
	if i <= 0 || !strings.HasPrefix(secret, "pi_") {
		return "", ErrInvalidSecret
	}
	return secret[:i], nil
}
