package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/funnel"
	"hotelbook/internal/models"
	"hotelbook/internal/repository"
	"hotelbook/internal/service"
	"hotelbook/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

type fakeBookingAPI struct {
	completeBooking func(hotelID, intentID string, d service.BookingDetails) (*service.BookingOutcome, error)
	releaseHold     func(id uint) error
	captured        []uint
}

func (f *fakeBookingAPI) CreatePaymentIntent(_ context.Context, hotelID string, amountCents int64, d service.BookingDetails, _ service.GuestInfo) (*service.IntentResult, error) {
	if amountCents != 19470 {
		return nil, fmt.Errorf("unexpected amount %d", amountCents)
	}
	return &service.IntentResult{ClientSecret: "pi_1_secret_x", PaymentIntentID: "pi_1", ReservationCode: "HB-AAAABBBB"}, nil
}

func (f *fakeBookingAPI) UpdatePaymentIntent(context.Context, string, service.GuestInfo) error {
	return nil
}

func (f *fakeBookingAPI) CreatePreauthHold(context.Context, string, service.BookingDetails, service.GuestInfo) (*service.IntentResult, error) {
	return &service.IntentResult{ClientSecret: "pi_2_secret_x", PaymentIntentID: "pi_2"}, nil
}

func (f *fakeBookingAPI) CompleteBooking(_ context.Context, hotelID, intentID string, d service.BookingDetails, _ service.GuestInfo) (*service.BookingOutcome, error) {
	return f.completeBooking(hotelID, intentID, d)
}

func (f *fakeBookingAPI) CompletePayLaterBooking(_ context.Context, hotelID, intentID string, d service.BookingDetails, _ service.GuestInfo) (*service.BookingOutcome, error) {
	return f.completeBooking(hotelID, intentID, d)
}

func (f *fakeBookingAPI) ReleaseHold(_ context.Context, id uint) error {
	return f.releaseHold(id)
}

func (f *fakeBookingAPI) CaptureNoShowFee(_ context.Context, id uint) (*payment.Intent, error) {
	f.captured = append(f.captured, id)
	return &payment.Intent{ID: "pi_2", Amount: 100, Status: payment.StatusSucceeded}, nil
}

func bookingRouter(api BookingAPI, debug bool) *gin.Engine {
	h := NewBookingHandler(api, debug)
	r := gin.New()
	r.POST("/api/create-payment-intent", h.CreatePaymentIntent)
	r.POST("/api/book", h.Book)
	r.POST("/api/release-hold", h.ReleaseHold)
	r.POST("/api/capture-no-show-fee", h.CaptureNoShowFee)
	return r
}

var bookBody = map[string]interface{}{
	"hotelId":         "downtown",
	"paymentIntentId": "pi_1",
	"bookingDetails":  map[string]interface{}{"roomName": "King Suite", "checkin": "2026-11-02", "checkout": "2026-11-05"},
	"guestInfo":       map[string]interface{}{"firstName": "Ada"},
}

func TestBookSuccess(t *testing.T) {
	api := &fakeBookingAPI{completeBooking: func(hotelID, intentID string, d service.BookingDetails) (*service.BookingOutcome, error) {
		if hotelID != "downtown" || intentID != "pi_1" || d.RoomName != "King Suite" {
			return nil, fmt.Errorf("unexpected call %s %s %+v", hotelID, intentID, d)
		}
		return &service.BookingOutcome{ReservationCode: "HB-AAAABBBB", PMSConfirmationCode: "PMS1"}, nil
	}}
	w := doJSON(bookingRouter(api, false), http.MethodPost, "/api/book", bookBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	out := decode(t, w)
	if out["success"] != true || out["reservationCode"] != "HB-AAAABBBB" {
		t.Fatalf("body = %v", out)
	}
}

func TestBookErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		debug     bool
		wantCode  int
		wantError bool
	}{
		{"pms failure", fmt.Errorf("%w: no rooms", service.ErrPMSBookingFailed), false, http.StatusBadRequest, false},
		{"pms failure debug", fmt.Errorf("%w: no rooms", service.ErrPMSBookingFailed), true, http.StatusBadRequest, true},
		{"code conflict", service.ErrReservationConflict, false, http.StatusConflict, false},
		{"unpaid", service.ErrPaymentNotCompleted, false, http.StatusBadRequest, false},
		{"gateway", fmt.Errorf("%w: timeout", service.ErrPaymentGateway), false, http.StatusInternalServerError, false},
		{"unexpected", errors.New("boom"), false, http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBookingAPI{completeBooking: func(string, string, service.BookingDetails) (*service.BookingOutcome, error) {
				return nil, tt.err
			}}
			w := doJSON(bookingRouter(api, tt.debug), http.MethodPost, "/api/book", bookBody, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			out := decode(t, w)
			if out["success"] != false || out["message"] == "" {
				t.Fatalf("body = %v", out)
			}
			if _, has := out["error"]; has != tt.wantError {
				t.Fatalf("error detail present = %v, want %v", has, tt.wantError)
			}
		})
	}
}

func TestBookFailureMessageFollowsPayment(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"hold released", fmt.Errorf("%w: no rooms", service.ErrPMSBookingFailed), "cancelled"},
		{"charge kept", fmt.Errorf("%w: %w: no rooms", service.ErrPMSBookingFailed, service.ErrPaymentNotReleased), "refunded"},
		{"conflict charge kept", fmt.Errorf("%w: %w", service.ErrReservationConflict, service.ErrPaymentNotReleased), "refunded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBookingAPI{completeBooking: func(string, string, service.BookingDetails) (*service.BookingOutcome, error) {
				return nil, tt.err
			}}
			w := doJSON(bookingRouter(api, false), http.MethodPost, "/api/book", bookBody, nil)
			msg, _ := decode(t, w)["message"].(string)
			if !strings.Contains(msg, tt.want) {
				t.Fatalf("message = %q, want it to mention %q", msg, tt.want)
			}
		})
	}
}

func TestBookValidation(t *testing.T) {
	api := &fakeBookingAPI{}
	for name, body := range map[string]interface{}{
		"not json":       "{",
		"missing intent": map[string]interface{}{"hotelId": "downtown", "bookingDetails": bookBody["bookingDetails"]},
		"bad intent":     map[string]interface{}{"hotelId": "downtown", "paymentIntentId": "ch_1", "bookingDetails": bookBody["bookingDetails"]},
	} {
		t.Run(name, func(t *testing.T) {
			w := doJSON(bookingRouter(api, false), http.MethodPost, "/api/book", body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
		})
	}
}

func TestCreatePaymentIntentConvertsDollars(t *testing.T) {
	body := map[string]interface{}{"amount": 194.70, "hotelId": "downtown", "bookingDetails": bookBody["bookingDetails"]}
	w := doJSON(bookingRouter(&fakeBookingAPI{}, false), http.MethodPost, "/api/create-payment-intent", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	if out := decode(t, w); out["clientSecret"] != "pi_1_secret_x" {
		t.Fatalf("body = %v", out)
	}
}

func TestHoldEndpoints(t *testing.T) {
	api := &fakeBookingAPI{releaseHold: func(id uint) error {
		if id == 2 {
			return service.ErrHoldNotActive
		}
		return nil
	}}
	r := bookingRouter(api, false)

	if w := doJSON(r, http.MethodPost, "/api/release-hold", map[string]int{"bookingId": 1}, nil); w.Code != http.StatusOK {
		t.Fatalf("release status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/api/release-hold", map[string]int{"bookingId": 2}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("inactive release status = %d", w.Code)
	}
	w := doJSON(r, http.MethodPost, "/api/capture-no-show-fee", map[string]int{"bookingId": 3}, nil)
	if w.Code != http.StatusOK || len(api.captured) != 1 || api.captured[0] != 3 {
		t.Fatalf("capture status = %d captured = %v", w.Code, api.captured)
	}
	if out := decode(t, w); out["amountCaptured"] != 1.0 {
		t.Fatalf("body = %v", out)
	}
}

type fakeParser struct {
	evt *payment.WebhookEvent
}

func (f fakeParser) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if signature != "valid" {
		return nil, fmt.Errorf("%w: mismatch", payment.ErrInvalidSignature)
	}
	return f.evt, nil
}

type recordingEvents struct {
	succeeded, failed []string
	err               error
}

func (r *recordingEvents) HandlePaymentSucceeded(_ context.Context, in *payment.Intent) error {
	r.succeeded = append(r.succeeded, in.ID)
	return r.err
}

func (r *recordingEvents) HandlePaymentFailed(_ context.Context, in *payment.Intent) error {
	r.failed = append(r.failed, in.ID)
	return r.err
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name          string
		evt           *payment.WebhookEvent
		signature     string
		handlerErr    error
		wantCode      int
		wantSucceeded int
		wantFailed    int
	}{
		{"bad signature", nil, "forged", nil, http.StatusBadRequest, 0, 0},
		{"succeeded", &payment.WebhookEvent{Type: payment.EventPaymentSucceeded, Intent: &payment.Intent{ID: "pi_1"}}, "valid", nil, http.StatusOK, 1, 0},
		{"capturable", &payment.WebhookEvent{Type: payment.EventAmountCapturable, Intent: &payment.Intent{ID: "pi_1"}}, "valid", nil, http.StatusOK, 1, 0},
		{"failed", &payment.WebhookEvent{Type: payment.EventPaymentFailed, Intent: &payment.Intent{ID: "pi_1"}}, "valid", nil, http.StatusOK, 0, 1},
		{"handler error still acknowledged", &payment.WebhookEvent{Type: payment.EventPaymentFailed, Intent: &payment.Intent{ID: "pi_1"}}, "valid", errors.New("db down"), http.StatusOK, 0, 1},
		{"other event", &payment.WebhookEvent{Type: "charge.refunded"}, "valid", nil, http.StatusOK, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingEvents{err: tt.handlerErr}
			h := NewStripeWebhookHandler(fakeParser{evt: tt.evt}, rec, zap.NewNop())
			r := gin.New()
			r.POST("/api/stripe-webhook", h.Handle)
			w := doJSON(r, http.MethodPost, "/api/stripe-webhook", `{"id":"evt_1"}`, map[string]string{"Stripe-Signature": tt.signature})
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if len(rec.succeeded) != tt.wantSucceeded || len(rec.failed) != tt.wantFailed {
				t.Fatalf("succeeded = %v failed = %v", rec.succeeded, rec.failed)
			}
			if tt.wantCode == http.StatusOK {
				if out := decode(t, w); out["received"] != true {
					t.Fatalf("body = %v", out)
				}
			}
		})
	}
}

type countingParser struct {
	calls int
	evt   *payment.WebhookEvent
}

func (p *countingParser) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	p.calls++
	return p.evt, nil
}

func TestStripeWebhookBodyLimit(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantCode  int
		wantCalls int
	}{
		{"at limit", maxWebhookBody, http.StatusOK, 1},
		{"over limit", maxWebhookBody + 1, http.StatusRequestEntityTooLarge, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &countingParser{evt: &payment.WebhookEvent{Type: payment.EventPaymentSucceeded, Intent: &payment.Intent{ID: "pi_1"}}}
			rec := &recordingEvents{}
			r := gin.New()
			r.POST("/api/stripe-webhook", NewStripeWebhookHandler(p, rec, zap.NewNop()).Handle)
			w := doJSON(r, http.MethodPost, "/api/stripe-webhook", strings.Repeat("a", tt.size), map[string]string{"Stripe-Signature": "valid"})
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if p.calls != tt.wantCalls || len(rec.succeeded) != tt.wantCalls {
				t.Fatalf("parser calls = %d succeeded = %v", p.calls, rec.succeeded)
			}
		})
	}
}

type memBookings struct {
	rows    map[uint]*models.Booking
	updates map[string]interface{}
}

func (m *memBookings) List(_ context.Context, f repository.BookingFilter, page, limit int) ([]models.Booking, int64, error) {
	var out []models.Booking
	for _, b := range m.rows {
		if f.CRMStage == "" || b.CRMStage == f.CRMStage {
			out = append(out, *b)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memBookings) GetByID(_ context.Context, id uint) (*models.Booking, error) {
	b, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (m *memBookings) Update(_ context.Context, id uint, updates map[string]interface{}) error {
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	m.updates = updates
	return nil
}

func (m *memBookings) Delete(_ context.Context, id uint) error {
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Create(l *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *l)
	return nil
}

func (m *memAudit) ListByResource(resource, id string, limit int) ([]models.AuditLog, error) {
	return nil, nil
}

type noLeads struct{}

func (noLeads) List(*bool, int, int) ([]models.PaymentDeclinedLead, int64, error) { return nil, 0, nil }
func (noLeads) MarkCalled(uint) error                                              { return repository.ErrNotFound }
func (noLeads) Delete(uint) error                                                  { return repository.ErrNotFound }

func crmRouter(b *memBookings, audit *memAudit) *gin.Engine {
	h := NewCRMHandler(b, noLeads{}, nil, audit, nil, nil, funnel.NewRing(10), zap.NewNop(), false)
	r := gin.New()
	r.GET("/api/crm/bookings", h.ListBookings)
	r.GET("/api/crm/bookings/:id", h.GetBooking)
	r.PATCH("/api/crm/bookings/:id", h.UpdateBooking)
	r.DELETE("/api/crm/bookings/:id", h.DeleteBooking)
	r.POST("/api/crm/leads/:id/called", h.MarkLeadCalled)
	r.GET("/api/crm/funnel", h.Funnel)
	return r
}

func TestCRMUpdateBookingAllowlist(t *testing.T) {
	b := &memBookings{rows: map[uint]*models.Booking{1: {ID: 1, CRMStage: domain.CRMStageNew}}}
	audit := &memAudit{}
	r := crmRouter(b, audit)

	w := doJSON(r, http.MethodPatch, "/api/crm/bookings/1", map[string]interface{}{
		"crmStage":        "contacted",
		"notes":           " called twice ",
		"grandTotalCents": 1,
		"holdStatus":      "released",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	if len(b.updates) != 2 || b.updates["crm_stage"] != "contacted" || b.updates["notes"] != "called twice" {
		t.Fatalf("updates = %v", b.updates)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "booking_updated" || audit.entries[0].ResourceID != "1" {
		t.Fatalf("audit = %+v", audit.entries)
	}

	for name, body := range map[string]map[string]interface{}{
		"unknown stage":  {"crmStage": "vip"},
		"no fields":      {"holdStatus": "released"},
		"non-string":     {"notes": 5},
		"unknown status": {"callStatus": "maybe"},
	} {
		t.Run(name, func(t *testing.T) {
			if w := doJSON(r, http.MethodPatch, "/api/crm/bookings/1", body, nil); w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
		})
	}
	if w := doJSON(r, http.MethodPatch, "/api/crm/bookings/9", map[string]interface{}{"notes": "x"}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing booking status = %d", w.Code)
	}
}

func TestCRMBookingsListGetDelete(t *testing.T) {
	b := &memBookings{rows: map[uint]*models.Booking{
		1: {ID: 1, CRMStage: domain.CRMStageNew},
		2: {ID: 2, CRMStage: domain.CRMStageConfirmed},
	}}
	r := crmRouter(b, &memAudit{})

	w := doJSON(r, http.MethodGet, "/api/crm/bookings?stage=confirmed", nil, nil)
	if out := decode(t, w); w.Code != http.StatusOK || out["total"] != 1.0 {
		t.Fatalf("status = %d body = %v", w.Code, out)
	}
	if w := doJSON(r, http.MethodGet, "/api/crm/bookings?from=11-02-2026", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/api/crm/bookings/abc", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/api/crm/bookings/1", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodDelete, "/api/crm/bookings/1", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodDelete, "/api/crm/bookings/1", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/api/crm/leads/4/called", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("lead status = %d", w.Code)
	}
}

type captureBus struct {
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, e events.Event) {
	b.events = append(b.events, e)
}

func TestTrackEnrichesAndPublishes(t *testing.T) {
	ring := funnel.NewRing(10)
	bus := &captureBus{}
	h := NewTrackHandler(ring, bus, zap.NewNop(), false)
	h.now = func() time.Time { return time.Unix(1_800_000_000, 0) }
	r := gin.New()
	r.POST("/api/track", h.Track)

	if w := doJSON(r, http.MethodPost, "/api/track", map[string]interface{}{"value": 1}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing event_name status = %d", w.Code)
	}

	w := doJSON(r, http.MethodPost, "/api/track", map[string]interface{}{"event_name": "Purchase", "hotel_id": "downtown", "value": 194.7},
		map[string]string{"User-Agent": "test-agent"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	recent, _ := ring.Recent(context.Background(), 10)
	if len(recent) != 1 || recent[0].Name != "Purchase" || recent[0].HotelID != "downtown" || recent[0].UserAgent != "test-agent" {
		t.Fatalf("funnel = %+v", recent)
	}
	if len(bus.events) != 1 || bus.events[0].Type != events.TypeMarketingTrack {
		t.Fatalf("events = %+v", bus.events)
	}
	var mt service.MarketingTrack
	if err := bus.events[0].Decode(&mt); err != nil {
		t.Fatal(err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(mt.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if mt.EventName != "Purchase" || payload["event_time"] != 1.8e9 || payload["event_id"] == "" || payload["user_agent"] != "test-agent" {
		t.Fatalf("payload = %v", payload)
	}

	fw := doJSON(crmRouter(&memBookings{}, &memAudit{}), http.MethodGet, "/api/crm/funnel", nil, nil)
	if fw.Code != http.StatusOK {
		t.Fatalf("funnel status = %d", fw.Code)
	}
}
