package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"hotelbook/internal/hotel"
	"hotelbook/internal/models"
	"hotelbook/pkg/pms"

	"github.com/google/uuid"
)

var reservationCodePattern = regexp.MustCompile(`^HB-[A-Z0-9]{8}$`)

// NewReservationCode returns a merchant reservation code, e.g. HB-3F9A1C0D.
func NewReservationCode() string {
	return "HB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func ValidReservationCode(code string) bool {
	return reservationCodePattern.MatchString(code)
}

// BookingDetails is the stay the guest selected, as sent by the booking UI. Money is in dollars.
type BookingDetails struct {
	ReservationCode string  `json:"reservationCode"`
	RoomName        string  `json:"roomName" binding:"required"`
	Checkin         string  `json:"checkin" binding:"required"`
	Checkout        string  `json:"checkout" binding:"required"`
	Guests          int     `json:"guests"`
	BookingType     string  `json:"bookingType"`
	AmountPaidNow   float64 `json:"amountPaidNow"`
	Notes           string  `json:"notes"`
}

type GuestInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
}

func (g GuestInfo) pms() pms.GuestInfo {
	return pms.GuestInfo{FirstName: g.FirstName, LastName: g.LastName, Email: g.Email, Phone: g.Phone, Country: g.Country, Zip: g.Zip}
}

// overlay copies the non-empty fields of o over g.
func (g GuestInfo) overlay(o GuestInfo) GuestInfo {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return strings.TrimSpace(b)
		}
		return a
	}
	return GuestInfo{
		FirstName: pick(g.FirstName, o.FirstName),
		LastName:  pick(g.LastName, o.LastName),
		Email:     pick(g.Email, o.Email),
		Phone:     pick(g.Phone, o.Phone),
		Country:   pick(g.Country, o.Country),
		Zip:       pick(g.Zip, o.Zip),
	}
}

func (g GuestInfo) name() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

func dollarsToCents(d float64) int64 {
	return int64(math.Round(d * 100))
}

// snapshot is everything the webhook backup path needs to rebuild a booking. It travels in the
// payment intent metadata, so it exists before any PMS call is made.
type snapshot struct {
	Code          string
	HotelID       string
	RoomName      string
	Checkin       time.Time
	Checkout      time.Time
	Nights        int
	Guests        int
	BookingType   string
	SubtotalCents int64
	TaxesCents    int64
	TotalCents    int64
	PaidNowCents  int64
	Notes         string
	Guest         GuestInfo
}

const (
	mdCode      = "reservation_code"
	mdHotel     = "hotel_id"
	mdRoom      = "room_name"
	mdCheckin   = "checkin"
	mdCheckout  = "checkout"
	mdNights    = "nights"
	mdGuests    = "guests"
	mdType      = "booking_type"
	mdSubtotal  = "subtotal_cents"
	mdTaxes     = "taxes_cents"
	mdTotal     = "grand_total_cents"
	mdPaidNow   = "paid_now_cents"
	mdNotes     = "notes"
	mdFirstName = "guest_first_name"
	mdLastName  = "guest_last_name"
	mdEmail     = "guest_email"
	mdPhone     = "guest_phone"
	mdCountry   = "guest_country"
	mdZip       = "guest_zip"
)

func guestMetadata(g GuestInfo) map[string]string {
	return map[string]string{
		mdFirstName: g.FirstName,
		mdLastName:  g.LastName,
		mdEmail:     g.Email,
		mdPhone:     g.Phone,
		mdCountry:   g.Country,
		mdZip:       g.Zip,
	}
}

// Stripe caps metadata values at 500 characters.
const maxNotesMetadata = 450

// truncateUTF8 cuts s to at most n bytes without splitting a multi-byte character.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *snapshot) metadata() map[string]string {
	md := guestMetadata(s.Guest)
	md[mdCode] = s.Code
	md[mdHotel] = s.HotelID
	md[mdRoom] = s.RoomName
	md[mdCheckin] = s.Checkin.Format(hotel.DateLayout)
	md[mdCheckout] = s.Checkout.Format(hotel.DateLayout)
	md[mdNights] = strconv.Itoa(s.Nights)
	md[mdGuests] = strconv.Itoa(s.Guests)
	md[mdType] = s.BookingType
	md[mdSubtotal] = strconv.FormatInt(s.SubtotalCents, 10)
	md[mdTaxes] = strconv.FormatInt(s.TaxesCents, 10)
	md[mdTotal] = strconv.FormatInt(s.TotalCents, 10)
	md[mdPaidNow] = strconv.FormatInt(s.PaidNowCents, 10)
	md[mdNotes] = truncateUTF8(s.Notes, maxNotesMetadata)
	return md
}

// snapshotFromMetadata rebuilds the booking snapshot; ok is false when the intent was not created by
// this service or the metadata is incomplete.
func snapshotFromMetadata(md map[string]string) (*snapshot, bool) {
	if md[mdCode] == "" || md[mdHotel] == "" || md[mdRoom] == "" {
		return nil, false
	}
	in, err1 := time.Parse(hotel.DateLayout, md[mdCheckin])
	out, err2 := time.Parse(hotel.DateLayout, md[mdCheckout])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	atoi := func(k string) int {
		n, _ := strconv.Atoi(md[k])
		return n
	}
	atoi64 := func(k string) int64 {
		n, _ := strconv.ParseInt(md[k], 10, 64)
		return n
	}
	return &snapshot{
		Code:          md[mdCode],
		HotelID:       md[mdHotel],
		RoomName:      md[mdRoom],
		Checkin:       in,
		Checkout:      out,
		Nights:        atoi(mdNights),
		Guests:        atoi(mdGuests),
		BookingType:   md[mdType],
		SubtotalCents: atoi64(mdSubtotal),
		TaxesCents:    atoi64(mdTaxes),
		TotalCents:    atoi64(mdTotal),
		PaidNowCents:  atoi64(mdPaidNow),
		Notes:         md[mdNotes],
		Guest: GuestInfo{
			FirstName: md[mdFirstName],
			LastName:  md[mdLastName],
			Email:     md[mdEmail],
			Phone:     md[mdPhone],
			Country:   md[mdCountry],
			Zip:       md[mdZip],
		},
	}, true
}

func (s *snapshot) pmsDetails() pms.BookingDetails {
	return pms.BookingDetails{
		ReservationCode: s.Code,
		RoomName:        s.RoomName,
		Checkin:         s.Checkin,
		Checkout:        s.Checkout,
		Nights:          s.Nights,
		Guests:          s.Guests,
		TotalAmount:     float64(s.TotalCents) / 100,
		Notes:           s.Notes,
	}
}

func (s *snapshot) booking(currency string) *models.Booking {
	return &models.Booking{
		OurReservationCode: s.Code,
		HotelID:            s.HotelID,
		RoomName:           s.RoomName,
		CheckinDate:        s.Checkin,
		CheckoutDate:       s.Checkout,
		Nights:             s.Nights,
		Guests:             s.Guests,
		GuestFirstName:     s.Guest.FirstName,
		GuestLastName:      s.Guest.LastName,
		GuestEmail:         s.Guest.Email,
		GuestPhone:         s.Guest.Phone,
		SubtotalCents:      s.SubtotalCents,
		TaxesAndFeesCents:  s.TaxesCents,
		GrandTotalCents:    s.TotalCents,
		AmountPaidNowCents: s.PaidNowCents,
		Currency:           currency,
		BookingType:        s.BookingType,
		Notes:              s.Notes,
	}
}
