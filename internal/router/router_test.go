package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"hotelbook/config"
	"hotelbook/internal/handler"
	"hotelbook/internal/middleware"
	"hotelbook/internal/models"
	"hotelbook/internal/service"
	"hotelbook/internal/ws"
	"hotelbook/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticAuth string

func (a staticAuth) Authenticate(token string) (string, bool) {
	if token == "" || token != string(a) {
		return "", false
	}
	return "frontdesk", true
}

type fakeLeads struct{ listed int }

func (f *fakeLeads) List(called *bool, page, limit int) ([]models.PaymentDeclinedLead, int64, error) {
	f.listed++
	return []models.PaymentDeclinedLead{{GuestEmail: "guest@example.com"}}, 1, nil
}
func (f *fakeLeads) MarkCalled(id uint) error { return nil }
func (f *fakeLeads) Delete(id uint) error     { return nil }

type rejectLogin struct{}

func (rejectLogin) Login(operator, password string) (*service.CRMSession, error) {
	return nil, service.ErrInvalidCredentials
}

type badSignature struct{}

func (badSignature) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	return nil, payment.ErrInvalidSignature
}

func newTestEngine(t *testing.T, burst int) (*gin.Engine, *fakeLeads) {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{Env: "test", AllowedOrigins: []string{"http://localhost:5173"}}}
	leads := &fakeLeads{}
	log := zap.NewNop()
	h := Handlers{
		Health:       handler.NewHealthHandler(nil),
		Availability: handler.NewAvailabilityHandler(nil, nil, true),
		Booking:      handler.NewBookingHandler(nil, true),
		Webhook:      handler.NewStripeWebhookHandler(badSignature{}, nil, log),
		Push:         handler.NewPushHandler(nil, true),
		Track:        handler.NewTrackHandler(nil, nil, log, true),
		CRM:          handler.NewCRMHandler(nil, leads, nil, nil, nil, rejectLogin{}, nil, log, true),
		CRMAuth:      staticAuth("secret"),
		Hub:          ws.NewHub(),
		Limiter:      middleware.NewIPRateLimiter(0.001, burst),
	}
	return Setup(cfg, h, log), leads
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestEngine(t, 10)
	if w := serve(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
}

func TestCRMRoutesRequireToken(t *testing.T) {
	r, leads := newTestEngine(t, 10)

	for _, path := range []string{"/api/crm/leads", "/api/crm/bookings", "/api/crm/stats"} {
		if w := serve(r, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: got %d", path, w.Code)
		}
		if w := serve(r, http.MethodGet, path, "", map[string]string{"x-crm-token": "wrong"}); w.Code != http.StatusUnauthorized {
			t.Errorf("%s with wrong token: got %d", path, w.Code)
		}
	}
	if w := serve(r, http.MethodPost, "/api/release-hold", `{"bookingId":1}`, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("release-hold without token: got %d", w.Code)
	}
	if leads.listed != 0 {
		t.Fatalf("store reached without auth")
	}

	w := serve(r, http.MethodGet, "/api/crm/leads", "", map[string]string{"x-crm-token": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("leads with token: got %d body=%s", w.Code, w.Body)
	}
	if w := serve(r, http.MethodGet, "/api/crm/leads?token=secret", "", nil); w.Code != http.StatusOK {
		t.Fatalf("leads with query token: got %d", w.Code)
	}
	if leads.listed != 2 {
		t.Fatalf("listed = %d, want 2", leads.listed)
	}
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	r, _ := newTestEngine(t, 1)
	body := `{"password":"nope"}`
	if w := serve(r, http.MethodPost, "/api/crm/login", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("first login: got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/api/crm/login", body, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second login: got %d, want 429", w.Code)
	}
}

func TestWebhookIsNotRateLimited(t *testing.T) {
	r, _ := newTestEngine(t, 1)
	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodPost, "/api/stripe-webhook", `{}`, map[string]string{"Stripe-Signature": "t=1,v1=bad"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("webhook call %d: got %d, want 400", i, w.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestEngine(t, 10)
	w := serve(r, http.MethodOptions, "/api/book", "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin = %q", got)
	}
}
