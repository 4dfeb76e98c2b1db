package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements Gateway over the Stripe PaymentIntents API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{api: sc, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := newIntentParams(ctx, p)
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CreateHold(ctx context.Context, p IntentParams) (*Intent, error) {
	params := newIntentParams(ctx, p)
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create hold: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) UpdateIntent(ctx context.Context, id string, metadata map[string]string, receiptEmail string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	if receiptEmail != "" {
		params.ReceiptEmail = stripe.String(receiptEmail)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.api.PaymentIntents.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe update intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CaptureIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Capture(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe capture intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Cancel(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe cancel intent: %w", err)
	}
	return toIntent(pi), nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw payload and decodes the intent.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, errors.New("payment: webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && event.Data.Object["object"] == "payment_intent" {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("payment: decode webhook intent: %w", err)
		}
		out.Intent = toIntent(&pi)
	}
	return out, nil
}

func newIntentParams(ctx context.Context, p IntentParams) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:               pi.ID,
		ClientSecret:     pi.ClientSecret,
		Status:           string(pi.Status),
		Amount:           pi.Amount,
		AmountCapturable: pi.AmountCapturable,
		Currency:         string(pi.Currency),
		Metadata:         pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		in.DeclineCode = string(pi.LastPaymentError.DeclineCode)
		if in.DeclineCode == "" {
			in.DeclineCode = string(pi.LastPaymentError.Code)
		}
		in.DeclineMessage = pi.LastPaymentError.Msg
	}
	return in
}
