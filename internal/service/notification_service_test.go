package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"hotelbook/config"
	"hotelbook/internal/events"
	"hotelbook/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

type memPushStore struct {
	mu   sync.Mutex
	subs map[string]models.PushSubscription
}

func (m *memPushStore) Upsert(s *models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = map[string]models.PushSubscription{}
	}
	m.subs[s.Endpoint] = *s
	return nil
}

func (m *memPushStore) DeleteByEndpoint(endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, endpoint)
	return nil
}

func (m *memPushStore) List() ([]models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PushSubscription
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func subscribe(t *testing.T, svc *WebPushService, endpoint string) {
	t.Helper()
	var req PushSubscriptionRequest
	req.Endpoint = endpoint
	req.Keys.P256dh = "key"
	req.Keys.Auth = "auth"
	if err := svc.Subscribe(req, "test"); err != nil {
		t.Fatal(err)
	}
}

func TestWebPushRemovesGoneSubscriptions(t *testing.T) {
	store := &memPushStore{}
	svc := NewWebPushService(config.PushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", Subject: "mailto:a@b.c"}, store, zap.NewNop())
	svc.send = func(_ context.Context, msg []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		status := http.StatusCreated
		if strings.HasSuffix(sub.Endpoint, "/gone") {
			status = http.StatusGone
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	subscribe(t, svc, "https://push.example/live")
	subscribe(t, svc, "https://push.example/gone")
	subscribe(t, svc, "https://push.example/live")

	sent, err := svc.Broadcast(context.Background(), PushMessage{Title: "t", Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	subs, _ := store.List()
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/live" {
		t.Fatalf("subscriptions = %+v", subs)
	}
}

func TestWebPushDisabledWithoutKeys(t *testing.T) {
	svc := NewWebPushService(config.PushConfig{}, &memPushStore{}, zap.NewNop())
	svc.send = func(context.Context, []byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		t.Fatal("send must not be called")
		return nil, nil
	}
	if sent, err := svc.Broadcast(context.Background(), PushMessage{}); err != nil || sent != 0 {
		t.Fatalf("sent = %d err = %v", sent, err)
	}
}

type pushFunc func(ctx context.Context, m PushMessage) (int, error)

func (f pushFunc) Broadcast(ctx context.Context, m PushMessage) (int, error) { return f(ctx, m) }

type topicFunc func(ctx context.Context, title, body string, data map[string]string) error

func (f topicFunc) SendTopic(ctx context.Context, title, body string, data map[string]string) error {
	return f(ctx, title, body, data)
}

type feedFunc func(msgType string, payload json.RawMessage)

func (f feedFunc) Broadcast(msgType string, payload json.RawMessage) { f(msgType, payload) }

func TestNotificationServiceSwallowsChannelFailures(t *testing.T) {
	var pushed, topics, feeds []string
	svc := NewNotificationService(nil,
		pushFunc(func(_ context.Context, m PushMessage) (int, error) {
			pushed = append(pushed, m.Title)
			return 0, errors.New("push down")
		}),
		topicFunc(func(_ context.Context, title, _ string, _ map[string]string) error {
			topics = append(topics, title)
			return errors.New("fcm down")
		}),
		nil,
		feedFunc(func(msgType string, _ json.RawMessage) { feeds = append(feeds, msgType) }),
		zap.NewNop())

	e, _ := events.New(events.TypeBookingCreated, events.BookingCreated{BookingID: 1, ReservationCode: "HB-AAAABBBB", HotelID: "downtown", GrandTotalCents: 19470})
	if err := svc.Handle(context.Background(), e); err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(pushed) != 1 || pushed[0] != "New booking HB-AAAABBBB" || len(topics) != 1 || len(feeds) != 1 {
		t.Fatalf("pushed = %v topics = %v feeds = %v", pushed, topics, feeds)
	}

	track, _ := events.New(events.TypeMarketingTrack, MarketingTrack{EventName: "Purchase", Payload: json.RawMessage(`{}`)})
	if err := svc.Handle(context.Background(), track); err != nil {
		t.Fatalf("track without forwarder: %v", err)
	}
}

func TestMarketingForwarder(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewMarketingForwarder(map[string]string{"Purchase": srv.URL}, zap.NewNop())
	ok, err := f.Forward(context.Background(), "Purchase", json.RawMessage(`{"event_name":"Purchase","value":194.7}`))
	if err != nil || !ok {
		t.Fatalf("ok = %v err = %v", ok, err)
	}
	if string(got) != `{"event_name":"Purchase","value":194.7}` {
		t.Fatalf("body = %s", got)
	}
	if ok, err := f.Forward(context.Background(), "PageView", json.RawMessage(`{}`)); ok || err != nil {
		t.Fatalf("unconfigured event ok = %v err = %v", ok, err)
	}
}
