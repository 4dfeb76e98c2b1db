package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"hotelbook/internal/events"
	"hotelbook/internal/hotel"

	"go.uber.org/zap"
)

type WebPusher interface {
	Broadcast(ctx context.Context, m PushMessage) (int, error)
}

type TopicSender interface {
	SendTopic(ctx context.Context, title, body string, data map[string]string) error
}

type Forwarder interface {
	Forward(ctx context.Context, eventName string, payload json.RawMessage) (bool, error)
}

type LiveFeed interface {
	Broadcast(msgType string, payload json.RawMessage)
}

// NotificationService is the events.Handler behind the bus. Every channel is best effort: failures are
// logged and never returned to the bus.
type NotificationService struct {
	hotels    *hotel.Catalog
	webPush   WebPusher
	fcm       TopicSender
	marketing Forwarder
	feed      LiveFeed
	log       *zap.Logger
}

func NewNotificationService(hotels *hotel.Catalog, webPush WebPusher, fcm TopicSender, marketing Forwarder, feed LiveFeed, log *zap.Logger) *NotificationService {
	return &NotificationService{
		hotels:    hotels,
		webPush:   webPush,
		fcm:       fcm,
		marketing: marketing,
		feed:      feed,
		log:       log.Named("notify"),
	}
}

// MarketingTrack is the payload of a marketing.track event.
type MarketingTrack struct {
	EventName string          `json:"event_name"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *NotificationService) Handle(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.TypeBookingCreated:
		var p events.BookingCreated
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		title := "New booking " + p.ReservationCode
		body := fmt.Sprintf("%s, %s at %s, %s to %s ($%s)", p.GuestName, p.RoomName, s.hotelName(p.HotelID), p.Checkin, p.Checkout, dollars(p.GrandTotalCents))
		s.push(ctx, PushMessage{Title: title, Body: body, URL: "/crm/bookings/" + strconv.FormatUint(uint64(p.BookingID), 10), Tag: p.ReservationCode},
			map[string]string{"type": e.Type, "reservation_code": p.ReservationCode})
		s.live(e)
	case events.TypePaymentDeclined:
		var p events.PaymentDeclined
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		title := "Payment declined"
		body := fmt.Sprintf("%s (%s) at %s: %s", p.GuestName, p.GuestPhone, s.hotelName(p.HotelID), p.DeclineMessage)
		s.push(ctx, PushMessage{Title: title, Body: body, URL: "/crm/leads", Tag: p.PaymentIntentID},
			map[string]string{"type": e.Type, "payment_intent_id": p.PaymentIntentID})
		s.live(e)
	case events.TypeAvailabilitySearched:
		var p events.AvailabilitySearched
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		body := fmt.Sprintf("%s, %s to %s, %d rooms available", s.hotelName(p.HotelID), p.Checkin, p.Checkout, p.AvailableRooms)
		if s.webPush != nil {
			if _, err := s.webPush.Broadcast(ctx, PushMessage{Title: "Availability search", Body: body, Tag: "search"}); err != nil {
				s.log.Warn("web push failed", zap.String("event_type", e.Type), zap.Error(err))
			}
		}
		s.live(e)
	case events.TypeMarketingTrack:
		var p MarketingTrack
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		if s.marketing == nil {
			return nil
		}
		if _, err := s.marketing.Forward(ctx, p.EventName, p.Payload); err != nil {
			s.log.Warn("marketing forward failed", zap.String("event_name", p.EventName), zap.Error(err))
		}
	default:
		s.log.Debug("ignoring event", zap.String("event_type", e.Type))
	}
	return nil
}

func (s *NotificationService) push(ctx context.Context, m PushMessage, data map[string]string) {
	if s.webPush != nil {
		if _, err := s.webPush.Broadcast(ctx, m); err != nil {
			s.log.Warn("web push failed", zap.String("title", m.Title), zap.Error(err))
		}
	}
	if s.fcm != nil {
		if err := s.fcm.SendTopic(ctx, m.Title, m.Body, data); err != nil {
			s.log.Warn("fcm push failed", zap.String("title", m.Title), zap.Error(err))
		}
	}
}

func (s *NotificationService) live(e events.Event) {
	if s.feed != nil {
		s.feed.Broadcast(e.Type, e.Payload)
	}
}

func (s *NotificationService) hotelName(id string) string {
	if s.hotels != nil {
		if h, ok := s.hotels.Get(id); ok && h.Name != "" {
			return h.Name
		}
	}
	return id
}

func dollars(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
