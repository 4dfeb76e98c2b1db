package repository

import (
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"gorm.io/gorm"
)

type CRMStats struct {
	TotalBookings    int64            `json:"totalBookings"`
	BookingsToday    int64            `json:"bookingsToday"`
	UpcomingCheckins int64            `json:"upcomingCheckins"`
	ActiveHolds      int64            `json:"activeHolds"`
	CollectedCents   int64            `json:"collectedCents"`
	BookedValueCents int64            `json:"bookedValueCents"`
	UncalledLeads    int64            `json:"uncalledLeads"`
	ByStage          map[string]int64 `json:"byStage"`
	ByHotel          map[string]int64 `json:"byHotel"`
	Daily            []DailyPoint     `json:"daily"`
}

type DailyPoint struct {
	Date       string `json:"date"`
	Count      int64  `json:"count"`
	ValueCents int64  `json:"valueCents"`
}

type CRMRepository struct {
	db *gorm.DB
}

func NewCRMRepository(db *gorm.DB) *CRMRepository {
	return &CRMRepository{db: db}
}

// Stats aggregates the dashboard numbers. days bounds the daily series.
func (r *CRMRepository) Stats(now time.Time, days int) (*CRMStats, error) {
	s := CRMStats{ByStage: map[string]int64{}, ByHotel: map[string]int64{}}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if err := r.db.Model(&models.Booking{}).Count(&s.TotalBookings).Error; err != nil {
		return nil, err
	}
	r.db.Model(&models.Booking{}).Where("created_at >= ?", startOfDay).Count(&s.BookingsToday)
	r.db.Model(&models.Booking{}).
		Where("checkin_date >= ? AND checkin_date < ? AND crm_stage <> ?", startOfDay, startOfDay.AddDate(0, 0, 7), domain.CRMStageCancelled).
		Count(&s.UpcomingCheckins)
	r.db.Model(&models.Booking{}).Where("hold_status = ?", domain.HoldStatusActive).Count(&s.ActiveHolds)
	r.db.Model(&models.PaymentDeclinedLead{}).Where("called = ?", false).Count(&s.UncalledLeads)

	var sums struct {
		Collected int64
		Booked    int64
	}
	r.db.Model(&models.Booking{}).
		Select("COALESCE(SUM(amount_paid_now_cents), 0) as collected, COALESCE(SUM(grand_total_cents), 0) as booked").
		Where("crm_stage <> ?", domain.CRMStageCancelled).
		Scan(&sums)
	s.CollectedCents = sums.Collected
	s.BookedValueCents = sums.Booked

	var stages []struct {
		CRMStage string
		Count    int64
	}
	r.db.Model(&models.Booking{}).Select("crm_stage, COUNT(*) as count").Group("crm_stage").Scan(&stages)
	for _, st := range stages {
		s.ByStage[st.CRMStage] = st.Count
	}

	var hotels []struct {
		HotelID string
		Count   int64
	}
	r.db.Model(&models.Booking{}).Select("hotel_id, COUNT(*) as count").Group("hotel_id").Scan(&hotels)
	for _, h := range hotels {
		s.ByHotel[h.HotelID] = h.Count
	}

	daily, err := r.BookingsByDay(now, days)
	if err != nil {
		return nil, err
	}
	s.Daily = daily
	return &s, nil
}

// BookingsByDay returns daily booking counts and booked value for the last N days.
func (r *CRMRepository) BookingsByDay(now time.Time, days int) ([]DailyPoint, error) {
	since := now.AddDate(0, 0, -days)
	var points []DailyPoint
	err := r.db.Model(&models.Booking{}).
		Select("DATE(created_at) as date, COUNT(*) as count, COALESCE(SUM(grand_total_cents), 0) as value_cents").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
