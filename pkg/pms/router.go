package pms

import (
	"context"
	"fmt"
	"time"
)

// PropertyLookup resolves a hotel id to its PMS property.
type PropertyLookup interface {
	Property(hotelID string) (*Property, bool)
}

// Router dispatches each call to the adapter registered for the hotel's PMS kind.
type Router struct {
	hotels   PropertyLookup
	adapters map[string]Adapter
}

func NewRouter(hotels PropertyLookup) *Router {
	return &Router{hotels: hotels, adapters: make(map[string]Adapter)}
}

func (r *Router) Register(kind string, a Adapter) {
	r.adapters[kind] = a
}

func (r *Router) resolve(hotelID string) (*Property, Adapter, error) {
	p, ok := r.hotels.Property(hotelID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownHotel, hotelID)
	}
	a, ok := r.adapters[p.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedPMS, p.Kind)
	}
	return p, a, nil
}

func (r *Router) Availability(ctx context.Context, hotelID string, checkin, checkout time.Time) ([]RoomAvailability, error) {
	p, a, err := r.resolve(hotelID)
	if err != nil {
		return nil, err
	}
	return a.Availability(ctx, p, checkin, checkout)
}

func (r *Router) CreateBooking(ctx context.Context, hotelID string, d BookingDetails, g GuestInfo) (*BookingResult, error) {
	p, a, err := r.resolve(hotelID)
	if err != nil {
		return nil, err
	}
	return a.CreateBooking(ctx, p, d, g)
}
