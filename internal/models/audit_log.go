package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is the trail of CRM operator actions.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Actor      string         `gorm:"size:100;index" json:"actor"`
	Action     string         `gorm:"size:100;not null;index" json:"action"`
	Resource   string         `gorm:"size:100;index" json:"resource"`
	ResourceID string         `gorm:"size:100;index" json:"resourceId"`
	IP         string         `gorm:"size:45" json:"ip"`
	UserAgent  string         `gorm:"size:512" json:"userAgent"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
