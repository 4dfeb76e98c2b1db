package models

import (
	"time"

	"gorm.io/datatypes"
)

// Booking is one confirmed or attempted reservation. OurReservationCode is assigned before any
// external call and is the row's idempotency key; StripePaymentIntentID is nil for manual rows.
type Booking struct {
	ID                    uint    `gorm:"primaryKey" json:"id"`
	OurReservationCode    string  `gorm:"size:32;not null;uniqueIndex" json:"ourReservationCode"`
	PMSConfirmationCode   string  `gorm:"size:64;index" json:"pmsConfirmationCode"`
	StripePaymentIntentID *string `gorm:"size:255;uniqueIndex" json:"stripePaymentIntentId"`

	HotelID      string    `gorm:"size:64;not null;index" json:"hotelId"`
	RoomName     string    `gorm:"size:255;not null" json:"roomName"`
	RoomTypeID   string    `gorm:"size:64" json:"roomTypeId"`
	RateID       string    `gorm:"size:64" json:"rateId"`
	CheckinDate  time.Time `gorm:"not null;index" json:"checkinDate"`
	CheckoutDate time.Time `gorm:"not null" json:"checkoutDate"`
	Nights       int       `gorm:"not null" json:"nights"`
	Guests       int       `gorm:"not null;default:1" json:"guests"`

	GuestFirstName string `gorm:"size:100" json:"guestFirstName"`
	GuestLastName  string `gorm:"size:100" json:"guestLastName"`
	GuestEmail     string `gorm:"size:255;index" json:"guestEmail"`
	GuestPhone     string `gorm:"size:50" json:"guestPhone"`

	SubtotalCents      int64  `gorm:"not null;default:0" json:"subtotalCents"`
	TaxesAndFeesCents  int64  `gorm:"not null;default:0" json:"taxesAndFeesCents"`
	GrandTotalCents    int64  `gorm:"not null;default:0" json:"grandTotalCents"`
	AmountPaidNowCents int64  `gorm:"not null;default:0" json:"amountPaidNowCents"`
	Currency           string `gorm:"size:3;default:'usd'" json:"currency"`

	BookingType string `gorm:"size:20;not null;index" json:"bookingType"` // standard | trial | reserve | payLater | manual
	HoldStatus  string `gorm:"size:20;not null;default:'none'" json:"holdStatus"`
	CRMStage    string `gorm:"size:30;not null;default:'new';index" json:"crmStage"`
	CallStatus  string `gorm:"size:30;not null;default:'not_called'" json:"callStatus"`
	Notes       string `gorm:"type:text" json:"notes"`
	Source      string `gorm:"size:20;not null;default:'web'" json:"source"`

	PMSResponse datatypes.JSON `json:"pmsResponse,omitempty"`
	ConfirmedAt *time.Time     `json:"confirmedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) GuestName() string {
	if b.GuestLastName == "" {
		return b.GuestFirstName
	}
	return b.GuestFirstName + " " + b.GuestLastName
}
