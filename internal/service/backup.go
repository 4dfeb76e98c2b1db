package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/models"
	"hotelbook/pkg/payment"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// HandlePaymentSucceeded schedules the delayed backup check for a paid or authorised intent.
// Intents without our reservation metadata are ignored.
func (s *BookingService) HandlePaymentSucceeded(ctx context.Context, intent *payment.Intent) error {
	code := intent.Metadata[mdCode]
	if code == "" {
		s.log.Debug("ignoring intent without reservation code", zap.String("payment_intent_id", intent.ID))
		return nil
	}
	if err := s.scheduler.ScheduleBackup(ctx, intent.ID, code); err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}
	return nil
}

// RunBackup is the webhook-driven path. If neither the intent nor the reservation code has a row
// yet, it books with the PMS itself and writes the row. A failed lookup aborts without booking. The existence check runs after the delay but
// before the PMS call, so a client call that booked the PMS and never reported back still produces a
// second PMS reservation.
func (s *BookingService) RunBackup(ctx context.Context, intentID, reservationCode string) error {
	log := s.log.With(zap.String("payment_intent_id", intentID), zap.String("reservation_code", reservationCode))

	existing, err := s.existingFor(ctx, intentID, reservationCode)
	switch {
	case errors.Is(err, ErrReservationConflict):
		log.Error("backup refused, reservation code belongs to another payment")
		return err
	case err != nil:
		return fmt.Errorf("backup lookup: %w", err)
	case existing != nil:
		log.Debug("backup not needed, booking exists", zap.Uint("booking_id", existing.ID))
		return nil
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if !intent.Paid() {
		log.Info("backup skipped, intent no longer paid", zap.String("status", intent.Status))
		return nil
	}
	snap, ok := snapshotFromMetadata(intent.Metadata)
	if !ok {
		return errors.New("backup: intent metadata is incomplete")
	}
	settleSnapshot(snap, intent)

	log.Warn("no booking row after payment, running backup booking")
	out, err := s.book(ctx, intent, snap, domain.SourceWebhook)
	if err != nil {
		return err
	}
	log.Info("backup booking completed", zap.String("pms_reservation_id", out.PMSConfirmationCode))
	return nil
}

// HandlePaymentFailed records a declined card as a follow-up lead, once per intent.
func (s *BookingService) HandlePaymentFailed(ctx context.Context, intent *payment.Intent) error {
	snap, ok := snapshotFromMetadata(intent.Metadata)
	if !ok {
		return nil
	}
	raw, _ := json.Marshal(intent.Metadata)
	lead := &models.PaymentDeclinedLead{
		StripePaymentIntentID: intent.ID,
		OurReservationCode:    snap.Code,
		HotelID:               snap.HotelID,
		RoomName:              snap.RoomName,
		Checkin:               intent.Metadata[mdCheckin],
		Checkout:              intent.Metadata[mdCheckout],
		GuestName:             snap.Guest.name(),
		GuestEmail:            snap.Guest.Email,
		GuestPhone:            snap.Guest.Phone,
		AmountCents:           intent.Amount,
		DeclineCode:           intent.DeclineCode,
		DeclineMessage:        intent.DeclineMessage,
		Snapshot:              datatypes.JSON(raw),
	}
	created, err := s.leads.Create(lead)
	if err != nil {
		return fmt.Errorf("record declined lead: %w", err)
	}
	if !created {
		return nil
	}
	s.log.Info("payment declined lead recorded", zap.String("payment_intent_id", intent.ID), zap.String("decline_code", intent.DeclineCode))

	e, err := events.New(events.TypePaymentDeclined, events.PaymentDeclined{
		PaymentIntentID: intent.ID,
		ReservationCode: snap.Code,
		HotelID:         snap.HotelID,
		GuestName:       lead.GuestName,
		GuestPhone:      lead.GuestPhone,
		AmountCents:     intent.Amount,
		DeclineMessage:  intent.DeclineMessage,
	})
	if err == nil {
		s.bus.Publish(ctx, e)
	}
	return nil
}
