package service

import (
	"context"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/hotel"
	"hotelbook/internal/models"
)

// ManualBooking is a reservation taken outside the website (phone, walk-in, Zapier).
type ManualBooking struct {
	HotelID             string    `json:"hotelId" binding:"required"`
	RoomName            string    `json:"roomName" binding:"required"`
	Checkin             string    `json:"checkin" binding:"required"`
	Checkout            string    `json:"checkout" binding:"required"`
	Guests              int       `json:"guests"`
	Guest               GuestInfo `json:"guestInfo"`
	GrandTotal          float64   `json:"grandTotal"`
	AmountPaidNow       float64   `json:"amountPaidNow"`
	PMSConfirmationCode string    `json:"pmsConfirmationCode"`
	Notes               string    `json:"notes"`
	Source              string    `json:"source"`
}

// CreateManualBooking records a booking that already exists in the PMS. No payment intent is attached.
func (s *BookingService) CreateManualBooking(ctx context.Context, m ManualBooking) (*models.Booking, error) {
	h, ok := s.hotels.Get(m.HotelID)
	if !ok {
		return nil, invalid("unknown hotel %q", m.HotelID)
	}
	room, ok := h.Room(m.RoomName)
	if !ok {
		return nil, invalid("unknown room %q", m.RoomName)
	}
	in, err := time.Parse(hotel.DateLayout, m.Checkin)
	if err != nil {
		return nil, invalid("checkin must be YYYY-MM-DD")
	}
	out, err := time.Parse(hotel.DateLayout, m.Checkout)
	if err != nil {
		return nil, invalid("checkout must be YYYY-MM-DD")
	}
	nights := hotel.Nights(in, out)
	if nights <= 0 {
		return nil, invalid("%v", hotel.ErrInvalidDates)
	}
	if m.Guest.FirstName == "" && m.Guest.LastName == "" {
		return nil, invalid("guest name is required")
	}
	source := m.Source
	if source != domain.SourceZapier {
		source = domain.SourceCRM
	}
	guests := m.Guests
	if guests < 1 {
		guests = 1
	}
	total := dollarsToCents(m.GrandTotal)
	b := &models.Booking{
		OurReservationCode:  NewReservationCode(),
		PMSConfirmationCode: m.PMSConfirmationCode,
		HotelID:             m.HotelID,
		RoomName:            room.Name,
		RoomTypeID:          room.RoomTypeID,
		CheckinDate:         in,
		CheckoutDate:        out,
		Nights:              nights,
		Guests:              guests,
		GuestFirstName:      m.Guest.FirstName,
		GuestLastName:       m.Guest.LastName,
		GuestEmail:          m.Guest.Email,
		GuestPhone:          m.Guest.Phone,
		SubtotalCents:       total,
		GrandTotalCents:     total,
		AmountPaidNowCents:  dollarsToCents(m.AmountPaidNow),
		Currency:            s.cfg.Currency,
		BookingType:         domain.BookingTypeManual,
		HoldStatus:          domain.HoldStatusNone,
		CRMStage:            domain.CRMStageNew,
		CallStatus:          domain.CallStatusNotCalled,
		Notes:               m.Notes,
		Source:              source,
	}
	created, err := s.persist(ctx, b)
	if err != nil {
		return nil, err
	}
	if created {
		s.publishBookingCreated(ctx, b)
	}
	return b, nil
}
