package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hotelbook/internal/repository"
	"hotelbook/internal/service"

	"github.com/gin-gonic/gin"
)

const genericFailure = "Something went wrong. Please try again or call the property."

// errorWriter translates service errors into the {success:false, message} shape. Wrapped error text
// is only exposed when debug is set (non-production).
type errorWriter struct {
	debug bool
}

func (w errorWriter) fail(c *gin.Context, status int, message string, err error) {
	body := gin.H{"success": false, "message": message}
	if w.debug && err != nil {
		body["error"] = err.Error()
	}
	if err != nil {
		c.Error(err)
	}
	c.JSON(status, body)
}

func (w errorWriter) badRequest(c *gin.Context, message string) {
	w.fail(c, http.StatusBadRequest, message, nil)
}

func (w errorWriter) serviceError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		w.fail(c, http.StatusBadRequest, ve.Msg, nil)
	case errors.Is(err, repository.ErrNotFound):
		w.fail(c, http.StatusNotFound, "Not found", err)
	case errors.Is(err, service.ErrPMSBookingFailed), errors.Is(err, service.ErrReservationConflict):
		w.fail(c, bookingFailureStatus(err), bookingFailureMessage(err), err)
	case errors.Is(err, service.ErrPaymentNotCompleted),
		errors.Is(err, service.ErrHoldNotAuthorized),
		errors.Is(err, service.ErrHoldNotActive),
		errors.Is(err, service.ErrNoPaymentIntent):
		w.fail(c, http.StatusBadRequest, capitalize(err.Error()), err)
	case errors.Is(err, service.ErrPaymentGateway):
		w.fail(c, http.StatusInternalServerError, "Payment processing failed. Please try again or call the property.", err)
	case errors.Is(err, service.ErrInvalidCredentials):
		w.fail(c, http.StatusUnauthorized, "Invalid credentials", nil)
	default:
		w.fail(c, http.StatusInternalServerError, genericFailure, err)
	}
}

func bookingFailureStatus(err error) int {
	if errors.Is(err, service.ErrReservationConflict) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// bookingFailureMessage tells the guest what happened to their money, which depends on whether the
// payment could be cancelled automatically.
func bookingFailureMessage(err error) string {
	what := "We could not confirm this reservation with the property."
	if errors.Is(err, service.ErrReservationConflict) {
		what = "This reservation code is already in use."
	}
	if errors.Is(err, service.ErrPaymentNotReleased) {
		return what + " Your payment was taken and will be refunded; please call the property."
	}
	return what + " Your payment has been cancelled and any card hold released; please try again or call the property."
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
