package repository

import (
	"context"
	"strings"
	"time"

	"hotelbook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingFilter narrows the CRM booking list. Zero values are ignored.
type BookingFilter struct {
	Search      string
	HotelID     string
	CRMStage    string
	BookingType string
	HoldStatus  string
	From        *time.Time // check-in on or after
	To          *time.Time // check-in before
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateIfAbsent inserts b unless a row with the same reservation code or payment intent id already
// exists. created is false when the insert was skipped; the unique indexes make this race-free across
// the client path and the webhook backup path.
func (r *BookingRepository) CreateIfAbsent(ctx context.Context, b *models.Booking) (created bool, err error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(b)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByIntentOrCode returns the booking matching either key. Empty keys are skipped.
func (r *BookingRepository) FindByIntentOrCode(ctx context.Context, intentID, code string) (*models.Booking, error) {
	if intentID == "" && code == "" {
		return nil, ErrNotFound
	}
	q := r.db.WithContext(ctx).Model(&models.Booking{})
	switch {
	case intentID != "" && code != "":
		q = q.Where("stripe_payment_intent_id = ? OR our_reservation_code = ?", intentID, code)
	case intentID != "":
		q = q.Where("stripe_payment_intent_id = ?", intentID)
	default:
		q = q.Where("our_reservation_code = ?", code)
	}
	var b models.Booking
	if err := q.First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// List returns bookings newest first with the total matching count.
func (r *BookingRepository) List(ctx context.Context, f BookingFilter, page, limit int) ([]models.Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Booking{})
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		like := "%" + s + "%"
		q = q.Where(
			"LOWER(guest_first_name) LIKE ? OR LOWER(guest_last_name) LIKE ? OR LOWER(guest_email) LIKE ? OR LOWER(our_reservation_code) LIKE ? OR LOWER(pms_confirmation_code) LIKE ?",
			like, like, like, like, like,
		)
	}
	if f.HotelID != "" {
		q = q.Where("hotel_id = ?", f.HotelID)
	}
	if f.CRMStage != "" {
		q = q.Where("crm_stage = ?", f.CRMStage)
	}
	if f.BookingType != "" {
		q = q.Where("booking_type = ?", f.BookingType)
	}
	if f.HoldStatus != "" {
		q = q.Where("hold_status = ?", f.HoldStatus)
	}
	if f.From != nil {
		q = q.Where("checkin_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("checkin_date < ?", *f.To)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Booking
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// Update applies updates to the booking. Callers are responsible for restricting the keys.
func (r *BookingRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHoldStatus moves the hold from one status to another in a single conditional update, so two
// operators racing on the same booking cannot both release or capture it.
func (r *BookingRepository) SetHoldStatus(ctx context.Context, id uint, from, to string) error {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND hold_status = ?", id, from).
		Update("hold_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrHoldStateConflict
	}
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Booking{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
