// Package pms talks to the property-management systems that hold each hotel's inventory.
package pms

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownHotel    = errors.New("pms: unknown hotel")
	ErrUnsupportedPMS  = errors.New("pms: unsupported pms kind")
	ErrNoAvailability  = errors.New("pms: not enough availability")
	ErrUnknownRoom     = errors.New("pms: room not configured for hotel")
	ErrNoReservationID = errors.New("pms: response carried no reservation id")
)

const (
	KindCloudbeds     = "cloudbeds"
	KindBookingCenter = "bookingcenter"
)

// Tier is the pricing band chosen by stay length.
type Tier string

const (
	TierNightly Tier = "NIGHTLY"
	TierWeekly  Tier = "WEEKLY"
	TierMonthly Tier = "MONTHLY"
)

// TierForNights: nightly below 7 nights, weekly for 7 to 27, monthly from 28.
func TierForNights(nights int) Tier {
	switch {
	case nights >= 28:
		return TierMonthly
	case nights >= 7:
		return TierWeekly
	default:
		return TierNightly
	}
}

// RateSet holds the PMS rate-plan id for each tier.
type RateSet struct {
	Nightly string `yaml:"nightly" json:"nightly"`
	Weekly  string `yaml:"weekly" json:"weekly,omitempty"`
	Monthly string `yaml:"monthly" json:"monthly,omitempty"`
}

type Room struct {
	Name       string  `yaml:"roomName" json:"roomName"`
	RoomTypeID string  `yaml:"roomTypeId" json:"roomTypeId"`
	Rates      RateSet `yaml:"rates" json:"rates"`
	// AlternateRateIDs are non-weekly rate plans tried once when the chosen plan reports no availability.
	AlternateRateIDs []string `yaml:"alternateRateIds" json:"-"`
}

// RateID picks the tier's rate id, falling back to the nightly rate when the tier is not configured.
func (r *Room) RateID(nights int) string {
	switch TierForNights(nights) {
	case TierMonthly:
		if r.Rates.Monthly != "" {
			return r.Rates.Monthly
		}
	case TierWeekly:
		if r.Rates.Weekly != "" {
			return r.Rates.Weekly
		}
	}
	return r.Rates.Nightly
}

// AlternateRateID returns the first configured fallback that is neither the failed rate nor the weekly plan.
func (r *Room) AlternateRateID(failed string) string {
	for _, id := range r.AlternateRateIDs {
		if id != "" && id != failed && id != r.Rates.Weekly {
			return id
		}
	}
	return ""
}

// Property is the PMS-facing view of a hotel.
type Property struct {
	HotelID    string
	Kind       string
	PropertyID string
	Rooms      []Room
}

func (p *Property) Room(name string) (*Room, bool) {
	for i := range p.Rooms {
		if p.Rooms[i].Name == name {
			return &p.Rooms[i], true
		}
	}
	return nil, false
}

func (p *Property) RoomByType(roomTypeID string) (*Room, bool) {
	for i := range p.Rooms {
		if p.Rooms[i].RoomTypeID == roomTypeID {
			return &p.Rooms[i], true
		}
	}
	return nil, false
}

type RoomAvailability struct {
	RoomName       string `json:"roomName"`
	Available      bool   `json:"available"`
	RoomsAvailable int    `json:"roomsAvailable"`
	RateID         string `json:"rateID"`
	RoomTypeID     string `json:"roomTypeID"`
	// Listed is true when the PMS response mentioned the room type at all.
	Listed bool `json:"-"`
}

type BookingDetails struct {
	ReservationCode string
	RoomName        string
	Checkin         time.Time
	Checkout        time.Time
	Nights          int
	Guests          int
	TotalAmount     float64
	Notes           string
}

type GuestInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Country   string
	Zip       string
}

type BookingResult struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservationID"`
	Message       string `json:"message,omitempty"`
	// Raw is the vendor response body, kept for the booking row's audit column.
	Raw []byte `json:"-"`
}

type Adapter interface {
	Availability(ctx context.Context, p *Property, checkin, checkout time.Time) ([]RoomAvailability, error)
	CreateBooking(ctx context.Context, p *Property, d BookingDetails, g GuestInfo) (*BookingResult, error)
}

const dateLayout = "2006-01-02"
