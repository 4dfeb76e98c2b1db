package models

import "time"

// PushSubscription is a browser service-worker push endpoint. Endpoint is unique; re-subscribing updates the keys.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Endpoint  string    `gorm:"size:768;not null;uniqueIndex" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"p256dh"`
	Auth      string    `gorm:"size:255;not null" json:"auth"`
	UserAgent string    `gorm:"size:512" json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
