package repository

import (
	"time"

	"hotelbook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create records a declined-payment lead once per payment intent. Stripe retries the same failure
// event, and each later attempt on the same intent is a no-op. created reports whether a row was inserted.
func (r *LeadRepository) Create(l *models.PaymentDeclinedLead) (created bool, err error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(l)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns leads newest first. called filters on the called flag when non-nil.
func (r *LeadRepository) List(called *bool, page, limit int) ([]models.PaymentDeclinedLead, int64, error) {
	q := r.db.Model(&models.PaymentDeclinedLead{})
	if called != nil {
		q = q.Where("called = ?", *called)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.PaymentDeclinedLead
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

func (r *LeadRepository) MarkCalled(id uint) error {
	now := time.Now()
	res := r.db.Model(&models.PaymentDeclinedLead{}).Where("id = ?", id).
		Updates(map[string]interface{}{"called": true, "called_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LeadRepository) Delete(id uint) error {
	res := r.db.Delete(&models.PaymentDeclinedLead{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
