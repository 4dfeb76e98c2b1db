package handler

import (
	"context"
	"math"
	"net/http"
	"strings"

	"hotelbook/internal/service"
	"hotelbook/pkg/payment"

	"github.com/gin-gonic/gin"
)

// BookingAPI is the guest checkout surface of service.BookingService.
type BookingAPI interface {
	CreatePaymentIntent(ctx context.Context, hotelID string, amountCents int64, d service.BookingDetails, g service.GuestInfo) (*service.IntentResult, error)
	UpdatePaymentIntent(ctx context.Context, clientSecret string, g service.GuestInfo) error
	CreatePreauthHold(ctx context.Context, hotelID string, d service.BookingDetails, g service.GuestInfo) (*service.IntentResult, error)
	CompleteBooking(ctx context.Context, hotelID, intentID string, d service.BookingDetails, g service.GuestInfo) (*service.BookingOutcome, error)
	CompletePayLaterBooking(ctx context.Context, hotelID, intentID string, d service.BookingDetails, g service.GuestInfo) (*service.BookingOutcome, error)
	ReleaseHold(ctx context.Context, bookingID uint) error
	CaptureNoShowFee(ctx context.Context, bookingID uint) (*payment.Intent, error)
}

type BookingHandler struct {
	errorWriter
	svc BookingAPI
}

func NewBookingHandler(svc BookingAPI, debug bool) *BookingHandler {
	return &BookingHandler{errorWriter: errorWriter{debug: debug}, svc: svc}
}

type createIntentRequest struct {
	Amount         float64                `json:"amount"`
	HotelID        string                 `json:"hotelId" binding:"required"`
	BookingDetails service.BookingDetails `json:"bookingDetails" binding:"required"`
	GuestInfo      service.GuestInfo      `json:"guestInfo"`
}

// CreatePaymentIntent handles POST /api/create-payment-intent. amount is in dollars.
func (h *BookingHandler) CreatePaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "hotelId, amount and bookingDetails (roomName, checkin, checkout) are required")
		return
	}
	res, err := h.svc.CreatePaymentIntent(c.Request.Context(), req.HotelID, int64(math.Round(req.Amount*100)), req.BookingDetails, req.GuestInfo)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": res.ClientSecret, "paymentIntentId": res.PaymentIntentID, "reservationCode": res.ReservationCode})
}

// UpdatePaymentIntent handles POST /api/update-payment-intent.
func (h *BookingHandler) UpdatePaymentIntent(c *gin.Context) {
	var req struct {
		ClientSecret string            `json:"clientSecret" binding:"required"`
		GuestInfo    service.GuestInfo `json:"guestInfo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "clientSecret is required")
		return
	}
	if err := h.svc.UpdatePaymentIntent(c.Request.Context(), req.ClientSecret, req.GuestInfo); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type holdRequest struct {
	HotelID        string                 `json:"hotelId" binding:"required"`
	BookingDetails service.BookingDetails `json:"bookingDetails" binding:"required"`
	GuestInfo      service.GuestInfo      `json:"guestInfo"`
}

// CreatePreauthHold handles POST /api/create-preauth-hold.
func (h *BookingHandler) CreatePreauthHold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "hotelId and bookingDetails (roomName, checkin, checkout) are required")
		return
	}
	res, err := h.svc.CreatePreauthHold(c.Request.Context(), req.HotelID, req.BookingDetails, req.GuestInfo)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": res.ClientSecret, "paymentIntentId": res.PaymentIntentID, "reservationCode": res.ReservationCode})
}

type completeRequest struct {
	HotelID         string                 `json:"hotelId" binding:"required"`
	PaymentIntentID string                 `json:"paymentIntentId" binding:"required"`
	BookingDetails  service.BookingDetails `json:"bookingDetails" binding:"required"`
	GuestInfo       service.GuestInfo      `json:"guestInfo"`
}

func (r *completeRequest) bind(c *gin.Context) bool {
	if err := c.ShouldBindJSON(r); err != nil {
		return false
	}
	r.PaymentIntentID = strings.TrimSpace(r.PaymentIntentID)
	return strings.HasPrefix(r.PaymentIntentID, "pi_")
}

// Book handles POST /api/book after the guest's payment succeeded.
func (h *BookingHandler) Book(c *gin.Context) {
	var req completeRequest
	if !req.bind(c) {
		h.badRequest(c, "hotelId, paymentIntentId and bookingDetails are required")
		return
	}
	out, err := h.svc.CompleteBooking(c.Request.Context(), req.HotelID, req.PaymentIntentID, req.BookingDetails, req.GuestInfo)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reservationCode": out.ReservationCode, "pmsConfirmationCode": out.PMSConfirmationCode})
}

// CompletePayLaterBooking handles POST /api/complete-pay-later-booking.
func (h *BookingHandler) CompletePayLaterBooking(c *gin.Context) {
	var req completeRequest
	if !req.bind(c) {
		h.badRequest(c, "hotelId, paymentIntentId and bookingDetails are required")
		return
	}
	out, err := h.svc.CompletePayLaterBooking(c.Request.Context(), req.HotelID, req.PaymentIntentID, req.BookingDetails, req.GuestInfo)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reservationCode": out.ReservationCode, "pmsConfirmationCode": out.PMSConfirmationCode})
}

type bookingIDRequest struct {
	BookingID uint `json:"bookingId" binding:"required"`
}

// ReleaseHold handles POST /api/release-hold.
func (h *BookingHandler) ReleaseHold(c *gin.Context) {
	var req bookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "bookingId is required")
		return
	}
	if err := h.svc.ReleaseHold(c.Request.Context(), req.BookingID); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "holdStatus": "released"})
}

// CaptureNoShowFee handles POST /api/capture-no-show-fee.
func (h *BookingHandler) CaptureNoShowFee(c *gin.Context) {
	var req bookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "bookingId is required")
		return
	}
	intent, err := h.svc.CaptureNoShowFee(c.Request.Context(), req.BookingID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "holdStatus": "captured", "amountCaptured": float64(intent.Amount) / 100})
}
