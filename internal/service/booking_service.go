package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelbook/internal/database"
	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/hotel"
	"hotelbook/internal/models"
	"hotelbook/internal/repository"
	"hotelbook/pkg/payment"
	"hotelbook/pkg/pms"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type BookingStore interface {
	CreateIfAbsent(ctx context.Context, b *models.Booking) (bool, error)
	FindByIntentOrCode(ctx context.Context, intentID, code string) (*models.Booking, error)
	GetByID(ctx context.Context, id uint) (*models.Booking, error)
	SetHoldStatus(ctx context.Context, id uint, from, to string) error
}

type LeadStore interface {
	Create(l *models.PaymentDeclinedLead) (bool, error)
}

// PMSBooker is satisfied by pms.Router.
type PMSBooker interface {
	CreateBooking(ctx context.Context, hotelID string, d pms.BookingDetails, g pms.GuestInfo) (*pms.BookingResult, error)
}

type BackupScheduler interface {
	ScheduleBackup(ctx context.Context, intentID, reservationCode string) error
}

type BookingConfig struct {
	Currency           string
	PreauthAmountCents int64
	RetryAttempts      int
	RetryDelay         time.Duration
}

// BookingService reconciles payments, PMS reservations and booking rows. A booking row is written
// only after the PMS confirmed the reservation; the reservation code in the intent metadata is the
// idempotency key shared by the client path and the webhook backup path.
type BookingService struct {
	hotels    *hotel.Catalog
	pms       PMSBooker
	gateway   payment.Gateway
	bookings  BookingStore
	leads     LeadStore
	bus       events.Bus
	scheduler BackupScheduler
	cfg       BookingConfig
	log       *zap.Logger
}

func NewBookingService(
	hotels *hotel.Catalog,
	pmsBooker PMSBooker,
	gateway payment.Gateway,
	bookings BookingStore,
	leads LeadStore,
	bus events.Bus,
	scheduler BackupScheduler,
	cfg BookingConfig,
	log *zap.Logger,
) *BookingService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.PreauthAmountCents <= 0 {
		cfg.PreauthAmountCents = 100
	}
	return &BookingService{
		hotels:    hotels,
		pms:       pmsBooker,
		gateway:   gateway,
		bookings:  bookings,
		leads:     leads,
		bus:       bus,
		scheduler: scheduler,
		cfg:       cfg,
		log:       log.Named("booking"),
	}
}

type IntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	ReservationCode string `json:"reservationCode"`
}

type BookingOutcome struct {
	ReservationCode     string `json:"reservationCode"`
	PMSConfirmationCode string `json:"pmsConfirmationCode,omitempty"`
	BookingID           uint   `json:"bookingId,omitempty"`
}

// buildSnapshot validates the requested stay against the catalogue and prices it server-side.
func (s *BookingService) buildSnapshot(hotelID string, d BookingDetails, g GuestInfo, bookingType string) (*snapshot, error) {
	h, ok := s.hotels.Get(hotelID)
	if !ok {
		return nil, invalid("unknown hotel %q", hotelID)
	}
	in, err := time.Parse(hotel.DateLayout, d.Checkin)
	if err != nil {
		return nil, invalid("checkin must be YYYY-MM-DD")
	}
	out, err := time.Parse(hotel.DateLayout, d.Checkout)
	if err != nil {
		return nil, invalid("checkout must be YYYY-MM-DD")
	}
	q, err := h.Quote(d.RoomName, in, out)
	if err != nil {
		return nil, invalid("%v", err)
	}
	guests := d.Guests
	if guests < 1 {
		guests = 1
	}
	if room, _ := h.Room(d.RoomName); room.MaxGuests > 0 && guests > room.MaxGuests {
		return nil, invalid("%s sleeps at most %d guests", room.Name, room.MaxGuests)
	}
	code := d.ReservationCode
	if !ValidReservationCode(code) {
		code = NewReservationCode()
	}
	return &snapshot{
		Code:          code,
		HotelID:       h.ID,
		RoomName:      q.RoomName,
		Checkin:       in,
		Checkout:      out,
		Nights:        q.Nights,
		Guests:        guests,
		BookingType:   bookingType,
		SubtotalCents: q.SubtotalCents,
		TaxesCents:    q.TaxesAndFeesCents,
		TotalCents:    q.GrandTotalCents,
		Notes:         strings.TrimSpace(d.Notes),
		Guest:         GuestInfo{}.overlay(g),
	}, nil
}

func bookingTypeFor(requested string) string {
	switch requested {
	case domain.BookingTypeTrial, domain.BookingTypeReserve:
		return requested
	default:
		return domain.BookingTypeStandard
	}
}

// CreatePaymentIntent assigns the reservation code and opens a capturable intent for amountCents.
func (s *BookingService) CreatePaymentIntent(ctx context.Context, hotelID string, amountCents int64, d BookingDetails, g GuestInfo) (*IntentResult, error) {
	snap, err := s.buildSnapshot(hotelID, d, g, bookingTypeFor(d.BookingType))
	if err != nil {
		return nil, err
	}
	if err := s.claimCode(ctx, snap, d.ReservationCode); err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, invalid("amount must be positive")
	}
	if amountCents > snap.TotalCents {
		return nil, invalid("amount exceeds the stay total")
	}
	snap.PaidNowCents = amountCents

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentParams{
		AmountCents:  amountCents,
		Currency:     s.cfg.Currency,
		Description:  describeStay(snap),
		ReceiptEmail: snap.Guest.Email,
		Metadata:     snap.metadata(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	s.log.Info("payment intent created",
		zap.String("reservation_code", snap.Code),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount_cents", amountCents))
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, ReservationCode: snap.Code}, nil
}

// UpdatePaymentIntent attaches guest details collected after the intent was created.
func (s *BookingService) UpdatePaymentIntent(ctx context.Context, clientSecret string, g GuestInfo) error {
	id, err := payment.IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return invalid("invalid client secret")
	}
	md := map[string]string{}
	for k, v := range guestMetadata(g) {
		if strings.TrimSpace(v) != "" {
			md[k] = strings.TrimSpace(v)
		}
	}
	if _, err := s.gateway.UpdateIntent(ctx, id, md, strings.TrimSpace(g.Email)); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return nil
}

// CreatePreauthHold authorises the nominal card-validation amount for a pay-later stay.
func (s *BookingService) CreatePreauthHold(ctx context.Context, hotelID string, d BookingDetails, g GuestInfo) (*IntentResult, error) {
	snap, err := s.buildSnapshot(hotelID, d, g, domain.BookingTypePayLater)
	if err != nil {
		return nil, err
	}
	if err := s.claimCode(ctx, snap, d.ReservationCode); err != nil {
		return nil, err
	}
	intent, err := s.gateway.CreateHold(ctx, payment.IntentParams{
		AmountCents:  s.cfg.PreauthAmountCents,
		Currency:     s.cfg.Currency,
		Description:  "Card hold: " + describeStay(snap),
		ReceiptEmail: snap.Guest.Email,
		Metadata:     snap.metadata(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	s.log.Info("preauth hold created", zap.String("reservation_code", snap.Code), zap.String("payment_intent_id", intent.ID))
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, ReservationCode: snap.Code}, nil
}

// CompleteBooking is the client-driven path after the guest paid.
func (s *BookingService) CompleteBooking(ctx context.Context, hotelID, intentID string, d BookingDetails, g GuestInfo) (*BookingOutcome, error) {
	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if !intent.Paid() {
		return nil, ErrPaymentNotCompleted
	}
	snap, err := s.snapshotForIntent(intent, hotelID, d, g, bookingTypeFor(d.BookingType))
	if err != nil {
		return nil, err
	}
	settleSnapshot(snap, intent)
	return s.book(ctx, intent, snap, domain.SourceWeb)
}

// settleSnapshot aligns the booking type and the amount paid now with the intent's state. An
// authorised hold is always a pay-later stay with nothing charged.
func settleSnapshot(snap *snapshot, intent *payment.Intent) {
	if intent.Status == payment.StatusRequiresCapture {
		snap.BookingType = domain.BookingTypePayLater
		snap.PaidNowCents = 0
		return
	}
	if snap.BookingType == domain.BookingTypePayLater {
		snap.BookingType = domain.BookingTypeStandard
	}
	if snap.PaidNowCents == 0 {
		snap.PaidNowCents = intent.Amount
	}
}

// CompletePayLaterBooking books against an authorised card hold; nothing is charged.
func (s *BookingService) CompletePayLaterBooking(ctx context.Context, hotelID, intentID string, d BookingDetails, g GuestInfo) (*BookingOutcome, error) {
	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if intent.Status != payment.StatusRequiresCapture {
		return nil, ErrHoldNotAuthorized
	}
	snap, err := s.snapshotForIntent(intent, hotelID, d, g, domain.BookingTypePayLater)
	if err != nil {
		return nil, err
	}
	snap.BookingType = domain.BookingTypePayLater
	snap.PaidNowCents = 0
	return s.book(ctx, intent, snap, domain.SourceWeb)
}

// snapshotForIntent prefers what was recorded on the intent (what the guest paid for) and overlays
// guest details from the request.
func (s *BookingService) snapshotForIntent(intent *payment.Intent, hotelID string, d BookingDetails, g GuestInfo, bookingType string) (*snapshot, error) {
	if snap, ok := snapshotFromMetadata(intent.Metadata); ok {
		snap.Guest = snap.Guest.overlay(g)
		if snap.BookingType == "" {
			snap.BookingType = bookingType
		}
		return snap, nil
	}
	snap, err := s.buildSnapshot(hotelID, d, g, bookingType)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// book runs the PMS call and persists the row. An existing row for the intent or code short-circuits,
// so a resubmitted request never books the room twice.
func (s *BookingService) book(ctx context.Context, intent *payment.Intent, snap *snapshot, source string) (*BookingOutcome, error) {
	log := s.log.With(zap.String("reservation_code", snap.Code), zap.String("payment_intent_id", intent.ID))

	existing, err := s.existingFor(ctx, intent.ID, snap.Code)
	switch {
	case errors.Is(err, ErrReservationConflict):
		log.Error("reservation code already booked under another payment")
		if !s.releasePayment(ctx, intent, log) {
			return nil, fmt.Errorf("%w: %w", err, ErrPaymentNotReleased)
		}
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("check existing booking: %w", err)
	case existing != nil:
		log.Info("booking already recorded", zap.Uint("booking_id", existing.ID))
		return &BookingOutcome{ReservationCode: existing.OurReservationCode, PMSConfirmationCode: existing.PMSConfirmationCode, BookingID: existing.ID}, nil
	}

	res, err := s.pms.CreateBooking(ctx, snap.HotelID, snap.pmsDetails(), snap.Guest.pms())
	if err == nil && (res == nil || !res.Success || res.ReservationID == "") {
		err = pms.ErrNoReservationID
	}
	if err != nil {
		log.Error("pms booking failed", zap.String("hotel_id", snap.HotelID), zap.Error(err))
		if !s.releasePayment(ctx, intent, log) {
			return nil, fmt.Errorf("%w: %w: %v", ErrPMSBookingFailed, ErrPaymentNotReleased, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPMSBookingFailed, err)
	}
	log.Info("pms booking confirmed", zap.String("pms_reservation_id", res.ReservationID))

	b := snap.booking(s.cfg.Currency)
	b.PMSConfirmationCode = res.ReservationID
	b.StripePaymentIntentID = &intent.ID
	b.Source = source
	b.CRMStage = domain.CRMStageNew
	b.CallStatus = domain.CallStatusNotCalled
	b.HoldStatus = domain.HoldStatusNone
	if snap.BookingType == domain.BookingTypePayLater {
		b.HoldStatus = domain.HoldStatusActive
	}
	if h, ok := s.hotels.Get(snap.HotelID); ok {
		if room, ok := h.Room(snap.RoomName); ok {
			b.RoomTypeID = room.RoomTypeID
			b.RateID = room.RateID(snap.Nights)
		}
	}
	if len(res.Raw) > 0 && len(res.Raw) < 64<<10 {
		b.PMSResponse = datatypes.JSON(jsonOrString(res.Raw))
	}

	out := &BookingOutcome{ReservationCode: snap.Code, PMSConfirmationCode: res.ReservationID}
	created, err := s.persist(ctx, b)
	if err != nil {
		// The PMS reservation is real; the webhook backup path recreates the row.
		log.Error("booking persist failed after pms success", zap.Error(err))
		return out, nil
	}
	out.BookingID = b.ID
	if created {
		s.publishBookingCreated(ctx, b)
	} else {
		log.Info("booking row written concurrently by another path")
	}
	return out, nil
}

func (s *BookingService) findExisting(ctx context.Context, intentID, code string) (*models.Booking, error) {
	var b *models.Booking
	err := database.WithRetry(ctx, s.cfg.RetryAttempts, s.cfg.RetryDelay, func() error {
		var err error
		b, err = s.bookings.FindByIntentOrCode(ctx, intentID, code)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

// existingFor returns the row already recorded for this intent, or nil when neither key has one.
// A row that holds the reservation code under a different intent is ErrReservationConflict.
func (s *BookingService) existingFor(ctx context.Context, intentID, code string) (*models.Booking, error) {
	b, err := s.findExisting(ctx, intentID, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.StripePaymentIntentID == nil || *b.StripePaymentIntentID != intentID {
		return nil, ErrReservationConflict
	}
	return b, nil
}

// claimCode swaps a client-supplied reservation code for a fresh one when a booking already uses it.
func (s *BookingService) claimCode(ctx context.Context, snap *snapshot, requested string) error {
	if requested == "" || snap.Code != requested {
		return nil
	}
	_, err := s.findExisting(ctx, "", snap.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check reservation code: %w", err)
	}
	s.log.Warn("reservation code already booked, assigning a new one", zap.String("reservation_code", requested))
	snap.Code = NewReservationCode()
	return nil
}

func (s *BookingService) persist(ctx context.Context, b *models.Booking) (bool, error) {
	var created bool
	err := database.WithRetry(ctx, s.cfg.RetryAttempts, s.cfg.RetryDelay, func() error {
		var err error
		created, err = s.bookings.CreateIfAbsent(ctx, b)
		return err
	})
	return created, err
}

// releasePayment cancels a hold or an uncaptured intent after a failed booking and reports whether
// it did. Charged intents cannot be cancelled and are left for a manual refund.
func (s *BookingService) releasePayment(ctx context.Context, intent *payment.Intent, log *zap.Logger) bool {
	if !intent.Cancellable() {
		log.Warn("payment not cancellable after failed booking; refund manually", zap.String("status", intent.Status))
		return false
	}
	if _, err := s.gateway.CancelIntent(ctx, intent.ID); err != nil {
		log.Error("cancel payment after failed booking", zap.Error(err))
		return false
	}
	log.Info("payment cancelled after failed booking")
	return true
}

func (s *BookingService) publishBookingCreated(ctx context.Context, b *models.Booking) {
	e, err := events.New(events.TypeBookingCreated, events.BookingCreated{
		BookingID:       b.ID,
		ReservationCode: b.OurReservationCode,
		HotelID:         b.HotelID,
		RoomName:        b.RoomName,
		Checkin:         b.CheckinDate.Format(hotel.DateLayout),
		Checkout:        b.CheckoutDate.Format(hotel.DateLayout),
		GuestName:       b.GuestName(),
		GrandTotalCents: b.GrandTotalCents,
		BookingType:     b.BookingType,
		Source:          b.Source,
	})
	if err != nil {
		s.log.Warn("build booking event", zap.Error(err))
		return
	}
	s.bus.Publish(ctx, e)
}

func describeStay(s *snapshot) string {
	return fmt.Sprintf("%s %s, %s to %s (%s)", s.HotelID, s.RoomName,
		s.Checkin.Format(hotel.DateLayout), s.Checkout.Format(hotel.DateLayout), s.Code)
}

// jsonOrString keeps JSON vendor responses as-is and wraps anything else (SOAP) in {"raw": ...}.
func jsonOrString(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	b, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return b
}
