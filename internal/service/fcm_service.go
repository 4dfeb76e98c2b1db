package service

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMService pushes front-desk alerts to the devices subscribed to one FCM topic.
type FCMService struct {
	client *messaging.Client
	topic  string
	log    *zap.Logger
}

// NewFCMService returns nil when Firebase is not configured or fails to initialise; a nil *FCMService is
// safe to call.
func NewFCMService(ctx context.Context, serviceAccountPath, topic string, log *zap.Logger) *FCMService {
	if serviceAccountPath == "" || topic == "" {
		return nil
	}
	log = log.Named("fcm")
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.Warn("failed to init Firebase app", zap.Error(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Warn("failed to get messaging client", zap.Error(err))
		return nil
	}
	return &FCMService{client: client, topic: topic, log: log}
}

func (s *FCMService) SendTopic(ctx context.Context, title, body string, data map[string]string) error {
	if s == nil {
		return nil
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Topic: s.topic,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		s.log.Warn("topic send failed", zap.String("topic", s.topic), zap.Error(err))
		return err
	}
	return nil
}
