package service

import (
	"context"
	"errors"
	"fmt"

	"hotelbook/internal/domain"
	"hotelbook/internal/repository"
	"hotelbook/pkg/payment"

	"go.uber.org/zap"
)

// ReleaseHold cancels a pay-later card hold: active → released.
func (s *BookingService) ReleaseHold(ctx context.Context, bookingID uint) error {
	intentID, err := s.claimHold(ctx, bookingID, domain.HoldStatusReleased)
	if err != nil {
		return err
	}
	if _, err := s.gateway.CancelIntent(ctx, intentID); err != nil {
		s.restoreHold(ctx, bookingID, domain.HoldStatusReleased)
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	s.log.Info("hold released", zap.Uint("booking_id", bookingID), zap.String("payment_intent_id", intentID))
	return nil
}

// CaptureNoShowFee captures the authorised hold: active → captured. Any other hold state is rejected.
func (s *BookingService) CaptureNoShowFee(ctx context.Context, bookingID uint) (*payment.Intent, error) {
	intentID, err := s.claimHold(ctx, bookingID, domain.HoldStatusCaptured)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.CaptureIntent(ctx, intentID)
	if err != nil {
		s.restoreHold(ctx, bookingID, domain.HoldStatusCaptured)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	s.log.Info("no-show fee captured", zap.Uint("booking_id", bookingID), zap.String("payment_intent_id", intentID), zap.Int64("amount_cents", intent.Amount))
	return intent, nil
}

// claimHold moves the hold out of active before the gateway call, so a concurrent release and
// capture cannot both proceed.
func (s *BookingService) claimHold(ctx context.Context, bookingID uint, to string) (string, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b.HoldStatus != domain.HoldStatusActive {
		return "", ErrHoldNotActive
	}
	if b.StripePaymentIntentID == nil || *b.StripePaymentIntentID == "" {
		return "", ErrNoPaymentIntent
	}
	if err := s.bookings.SetHoldStatus(ctx, bookingID, domain.HoldStatusActive, to); err != nil {
		if errors.Is(err, repository.ErrHoldStateConflict) {
			return "", ErrHoldNotActive
		}
		return "", err
	}
	return *b.StripePaymentIntentID, nil
}

func (s *BookingService) restoreHold(ctx context.Context, bookingID uint, from string) {
	if err := s.bookings.SetHoldStatus(ctx, bookingID, from, domain.HoldStatusActive); err != nil {
		s.log.Error("restore hold status", zap.Uint("booking_id", bookingID), zap.Error(err))
	}
}
