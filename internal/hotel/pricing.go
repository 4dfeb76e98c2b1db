package hotel

import (
	"errors"
	"math"
	"time"

	"hotelbook/pkg/pms"
)

var (
	ErrInvalidDates = errors.New("checkout must be after checkin")
	ErrUnknownRoom  = errors.New("room not offered by hotel")
)

const DateLayout = "2006-01-02"

// RateTier is the pricing tier for a stay of the given length.
func RateTier(nights int) pms.Tier {
	return pms.TierForNights(nights)
}

// StayPriceCents prices a stay. Weekly and monthly stays are charged pro rata: n×WEEKLY/7 and
// n×MONTHLY/28. A missing tier price falls back to the nightly price.
func StayPriceCents(p Prices, nights int) int64 {
	if nights <= 0 {
		return 0
	}
	n := float64(nights)
	var dollars float64
	switch RateTier(nights) {
	case pms.TierMonthly:
		if p.Monthly > 0 {
			dollars = n * p.Monthly / 28
			break
		}
		dollars = n * p.Nightly
	case pms.TierWeekly:
		if p.Weekly > 0 {
			dollars = n * p.Weekly / 7
			break
		}
		dollars = n * p.Nightly
	default:
		dollars = n * p.Nightly
	}
	return int64(math.Round(dollars * 100))
}

type Quote struct {
	HotelID           string   `json:"hotelId"`
	RoomName          string   `json:"roomName"`
	Tier              pms.Tier `json:"tier"`
	Nights            int      `json:"nights"`
	SubtotalCents     int64    `json:"subtotalCents"`
	TaxesAndFeesCents int64    `json:"taxesAndFeesCents"`
	GrandTotalCents   int64    `json:"grandTotalCents"`
}

// Nights counts calendar nights between two dates.
func Nights(checkin, checkout time.Time) int {
	return int(math.Round(checkout.Sub(checkin).Hours() / 24))
}

func (h *Hotel) Quote(roomName string, checkin, checkout time.Time) (*Quote, error) {
	room, ok := h.Room(roomName)
	if !ok {
		return nil, ErrUnknownRoom
	}
	nights := Nights(checkin, checkout)
	if nights <= 0 {
		return nil, ErrInvalidDates
	}
	sub := StayPriceCents(room.Prices, nights)
	tax := int64(math.Round(float64(sub) * h.TaxRate))
	return &Quote{
		HotelID:           h.ID,
		RoomName:          room.Name,
		Tier:              RateTier(nights),
		Nights:            nights,
		SubtotalCents:     sub,
		TaxesAndFeesCents: tax,
		GrandTotalCents:   sub + tax,
	}, nil
}
