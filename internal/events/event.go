// Package events carries fire-and-forget notifications off the request path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeBookingCreated       = "booking.created"
	TypePaymentDeclined      = "payment.declined"
	TypeAvailabilitySearched = "availability.searched"
	TypeMarketingTrack       = "marketing.track"
)

type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func New(eventType string, payload interface{}) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: time.Now().UTC(), Payload: b}, nil
}

func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type BookingCreated struct {
	BookingID       uint   `json:"booking_id"`
	ReservationCode string `json:"reservation_code"`
	HotelID         string `json:"hotel_id"`
	RoomName        string `json:"room_name"`
	Checkin         string `json:"checkin"`
	Checkout        string `json:"checkout"`
	GuestName       string `json:"guest_name"`
	GrandTotalCents int64  `json:"grand_total_cents"`
	BookingType     string `json:"booking_type"`
	Source          string `json:"source"`
}

type PaymentDeclined struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ReservationCode string `json:"reservation_code"`
	HotelID         string `json:"hotel_id"`
	GuestName       string `json:"guest_name"`
	GuestPhone      string `json:"guest_phone"`
	AmountCents     int64  `json:"amount_cents"`
	DeclineMessage  string `json:"decline_message"`
}

type AvailabilitySearched struct {
	HotelID        string `json:"hotel_id"`
	Checkin        string `json:"checkin"`
	Checkout       string `json:"checkout"`
	AvailableRooms int    `json:"available_rooms"`
}

// Handler consumes one event. Returned errors are logged by the bus and never retried.
type Handler func(ctx context.Context, e Event) error

// Bus publishes without blocking the caller.
type Bus interface {
	Publish(ctx context.Context, e Event)
}
