package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelbook/internal/events"
	"hotelbook/internal/hotel"
	"hotelbook/pkg/pms"

	"go.uber.org/zap"
)

// AvailabilitySource is satisfied by pms.Router.
type AvailabilitySource interface {
	Availability(ctx context.Context, hotelID string, checkin, checkout time.Time) ([]pms.RoomAvailability, error)
}

type AvailabilityService struct {
	hotels *hotel.Catalog
	source AvailabilitySource
	bus    events.Bus
	log    *zap.Logger
}

func NewAvailabilityService(hotels *hotel.Catalog, source AvailabilitySource, bus events.Bus, log *zap.Logger) *AvailabilityService {
	return &AvailabilityService{hotels: hotels, source: source, bus: bus, log: log.Named("availability")}
}

// RoomOffer is one room type's availability with its server-side price for the stay.
type RoomOffer struct {
	pms.RoomAvailability
	MaxGuests int         `json:"maxGuests,omitempty"`
	Quote     *hotel.Quote `json:"quote,omitempty"`
}

func (s *AvailabilityService) Search(ctx context.Context, hotelID, checkin, checkout string) ([]RoomOffer, error) {
	h, ok := s.hotels.Get(hotelID)
	if !ok {
		return nil, invalid("unknown hotel %q", hotelID)
	}
	in, err := time.Parse(hotel.DateLayout, checkin)
	if err != nil {
		return nil, invalid("checkin must be YYYY-MM-DD")
	}
	out, err := time.Parse(hotel.DateLayout, checkout)
	if err != nil {
		return nil, invalid("checkout must be YYYY-MM-DD")
	}
	if hotel.Nights(in, out) <= 0 {
		return nil, invalid("%v", hotel.ErrInvalidDates)
	}

	rooms, err := s.source.Availability(ctx, hotelID, in, out)
	if err != nil {
		if errors.Is(err, pms.ErrUnknownHotel) || errors.Is(err, pms.ErrUnsupportedPMS) {
			return nil, invalid("%v", err)
		}
		return nil, fmt.Errorf("availability %s: %w", hotelID, err)
	}

	offers := make([]RoomOffer, 0, len(rooms))
	available := 0
	for _, r := range rooms {
		o := RoomOffer{RoomAvailability: r}
		if room, ok := h.Room(r.RoomName); ok {
			o.MaxGuests = room.MaxGuests
			if q, err := h.Quote(r.RoomName, in, out); err == nil {
				o.Quote = q
			}
		}
		if r.Available {
			available++
		}
		offers = append(offers, o)
	}
	s.log.Debug("availability searched", zap.String("hotel_id", hotelID), zap.String("checkin", checkin),
		zap.String("checkout", checkout), zap.Int("available_rooms", available))

	if e, err := events.New(events.TypeAvailabilitySearched, events.AvailabilitySearched{
		HotelID:        hotelID,
		Checkin:        checkin,
		Checkout:       checkout,
		AvailableRooms: available,
	}); err == nil {
		s.bus.Publish(ctx, e)
	}
	return offers, nil
}
