package repository

import (
	"hotelbook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushRepository struct {
	db *gorm.DB
}

func NewPushRepository(db *gorm.DB) *PushRepository {
	return &PushRepository{db: db}
}

// Upsert stores the subscription, refreshing keys when the endpoint is already known.
func (r *PushRepository) Upsert(s *models.PushSubscription) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(s).Error
}

func (r *PushRepository) DeleteByEndpoint(endpoint string) error {
	return r.db.Where("endpoint = ?", endpoint).Delete(&models.PushSubscription{}).Error
}

func (r *PushRepository) List() ([]models.PushSubscription, error) {
	var list []models.PushSubscription
	err := r.db.Order("id ASC").Find(&list).Error
	return list, err
}
