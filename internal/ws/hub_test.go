package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a, b := NewClient("a"), NewClient("b")
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast("booking.created", json.RawMessage(`{"booking_id":7}`))
	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.Send:
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatal(err)
			}
			if m.Type != "booking.created" || string(m.Payload) != `{"booking_id":7}` {
				t.Fatalf("message = %+v", m)
			}
		default:
			t.Fatalf("client %s got nothing", c.Operator)
		}
	}

	a.Close()
	a.Close()
	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
}

type staticAuth string

func (s staticAuth) Authenticate(token string) (string, bool) {
	return "frontdesk", token == string(s)
}

func TestUpgradeCRM(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", UpgradeCRM(staticAuth("good"), hub, []string{"*"}))
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(url+"?token=bad", nil); err == nil {
		t.Fatal("expected dial to fail with bad token")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=good", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Broadcast("payment.declined", json.RawMessage(`{}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"payment.declined"`) {
		t.Fatalf("data = %s", data)
	}
}
