package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"hotelbook/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type PaymentEvents interface {
	HandlePaymentSucceeded(ctx context.Context, intent *payment.Intent) error
	HandlePaymentFailed(ctx context.Context, intent *payment.Intent) error
}

type StripeWebhookHandler struct {
	parser WebhookParser
	events PaymentEvents
	log    *zap.Logger
}

func NewStripeWebhookHandler(parser WebhookParser, events PaymentEvents, log *zap.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{parser: parser, events: events, log: log.Named("stripe_webhook")}
}

// Handle verifies the raw body against the Stripe-Signature header. Only a signature failure is
// rejected; processing errors are logged and acknowledged so Stripe does not redeliver.
func (h *StripeWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid body"})
		return
	}
	if len(body) > maxWebhookBody {
		h.log.Warn("webhook rejected, body too large", zap.Int("limit_bytes", maxWebhookBody))
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Webhook Error: payload too large"})
		return
	}
	evt, err := h.parser.ParseWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn("webhook rejected", zap.Error(err))
		msg := "Webhook Error: invalid payload"
		if errors.Is(err, payment.ErrInvalidSignature) {
			msg = "Webhook Error: signature verification failed"
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
		return
	}

	log := h.log.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))
	if evt.Intent != nil {
		log = log.With(zap.String("payment_intent_id", evt.Intent.ID))
	}
	ctx := c.Request.Context()
	if evt.Intent == nil {
		log.Debug("webhook event without payment intent")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	switch evt.Type {
	case payment.EventPaymentSucceeded, payment.EventAmountCapturable:
		if err := h.events.HandlePaymentSucceeded(ctx, evt.Intent); err != nil {
			log.Error("handle payment succeeded", zap.Error(err))
		}
	case payment.EventPaymentFailed:
		if err := h.events.HandlePaymentFailed(ctx, evt.Intent); err != nil {
			log.Error("handle payment failed", zap.Error(err))
		}
	default:
		log.Debug("unhandled webhook event")
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
