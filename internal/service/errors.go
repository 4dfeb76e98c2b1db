package service

import (
	"errors"
	"fmt"
)

var (
	ErrPMSBookingFailed    = errors.New("the property could not confirm this reservation")
	ErrPaymentNotReleased  = errors.New("payment could not be released automatically")
	ErrReservationConflict = errors.New("reservation code already belongs to another payment")
	ErrPaymentNotCompleted = errors.New("payment has not been completed")
	ErrHoldNotAuthorized   = errors.New("card hold has not been authorised")
	ErrHoldNotActive       = errors.New("booking has no active card hold")
	ErrNoPaymentIntent     = errors.New("booking has no payment intent")
	ErrPaymentGateway      = errors.New("payment processor error")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// ValidationError is a bad client request; its message is safe to show.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
