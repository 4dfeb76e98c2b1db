package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"hotelbook/config"
	"hotelbook/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

type PushStore interface {
	Upsert(s *models.PushSubscription) error
	DeleteByEndpoint(endpoint string) error
	List() ([]models.PushSubscription, error)
}

// WebPushService delivers VAPID push messages to the subscribed front-desk browsers.
type WebPushService struct {
	cfg   config.PushConfig
	store PushStore
	log   *zap.Logger
	send  func(ctx context.Context, msg []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)
}

func NewWebPushService(cfg config.PushConfig, store PushStore, log *zap.Logger) *WebPushService {
	return &WebPushService{cfg: cfg, store: store, log: log.Named("webpush"), send: webpush.SendNotificationWithContext}
}

func (s *WebPushService) Enabled() bool {
	return s.cfg.VAPIDPublicKey != "" && s.cfg.VAPIDPrivateKey != ""
}

func (s *WebPushService) PublicKey() string {
	return s.cfg.VAPIDPublicKey
}

type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

// Subscribe upserts by endpoint; re-subscribing replaces the keys.
func (s *WebPushService) Subscribe(req PushSubscriptionRequest, userAgent string) error {
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return invalid("subscription keys are required")
	}
	return s.store.Upsert(&models.PushSubscription{
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: userAgent,
	})
}

func (s *WebPushService) Unsubscribe(endpoint string) error {
	return s.store.DeleteByEndpoint(endpoint)
}

type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	URL   string            `json:"url,omitempty"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Broadcast sends to every subscription and returns how many deliveries succeeded. Endpoints the push
// service reports as gone (404/410) are deleted.
func (s *WebPushService) Broadcast(ctx context.Context, m PushMessage) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	subs, err := s.store.List()
	if err != nil {
		return 0, fmt.Errorf("list push subscriptions: %w", err)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	opts := &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             3600,
		Urgency:         webpush.UrgencyHigh,
	}
	sent := 0
	for i := range subs {
		sub := &webpush.Subscription{
			Endpoint: subs[i].Endpoint,
			Keys:     webpush.Keys{P256dh: subs[i].P256dh, Auth: subs[i].Auth},
		}
		resp, err := s.send(ctx, payload, sub, opts)
		if err != nil {
			s.log.Warn("push send failed", zap.Uint("subscription_id", subs[i].ID), zap.Error(err))
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			if err := s.store.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				s.log.Warn("delete expired subscription", zap.Uint("subscription_id", subs[i].ID), zap.Error(err))
			} else {
				s.log.Info("expired push subscription removed", zap.Uint("subscription_id", subs[i].ID))
			}
		case resp.StatusCode >= 300:
			s.log.Warn("push rejected", zap.Uint("subscription_id", subs[i].ID), zap.Int("status", resp.StatusCode))
		default:
			sent++
		}
	}
	return sent, nil
}
