package repository

import (
	"hotelbook/internal/models"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(l *models.AuditLog) error {
	return r.db.Create(l).Error
}

func (r *AuditRepository) ListByResource(resource, resourceID string, limit int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("resource = ? AND resource_id = ?", resource, resourceID).
		Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
