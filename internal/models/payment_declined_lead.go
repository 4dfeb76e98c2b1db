package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentDeclinedLead records an abandoned checkout whose card was declined so the front desk can call back.
type PaymentDeclinedLead struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	StripePaymentIntentID string         `gorm:"size:255;not null;uniqueIndex" json:"stripePaymentIntentId"`
	OurReservationCode    string         `gorm:"size:32;index" json:"ourReservationCode"`
	HotelID               string         `gorm:"size:64;index" json:"hotelId"`
	RoomName              string         `gorm:"size:255" json:"roomName"`
	Checkin               string         `gorm:"size:10" json:"checkin"`
	Checkout              string         `gorm:"size:10" json:"checkout"`
	GuestName             string         `gorm:"size:200" json:"guestName"`
	GuestEmail            string         `gorm:"size:255" json:"guestEmail"`
	GuestPhone            string         `gorm:"size:50" json:"guestPhone"`
	AmountCents           int64          `json:"amountCents"`
	DeclineCode           string         `gorm:"size:100" json:"declineCode"`
	DeclineMessage        string         `gorm:"type:text" json:"declineMessage"`
	Snapshot              datatypes.JSON `json:"snapshot,omitempty"`
	Called                bool           `gorm:"not null;default:false;index" json:"called"`
	CalledAt              *time.Time     `json:"calledAt"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

func (PaymentDeclinedLead) TableName() string {
	return "payment_declined_leads"
}
