package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLocalBusDelivers(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 2)
	bus := NewLocalBus(4, func(_ context.Context, e Event) error {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		done <- struct{}{}
		return errors.New("push provider down")
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	for _, typ := range []string{TypeBookingCreated, TypePaymentDeclined} {
		e, err := New(typ, map[string]string{"k": "v"})
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		bus.Publish(ctx, e)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != TypeBookingCreated {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestLocalBusPublishNeverBlocks(t *testing.T) {
	bus := NewLocalBus(1, func(context.Context, Event) error { return nil }, zap.NewNop())
	finished := make(chan struct{})
	go func() {
		// No worker running: the second and third publishes must be dropped, not block.
		for i := 0; i < 3; i++ {
			bus.Publish(context.Background(), Event{Type: TypeMarketingTrack})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
}

func TestEventDecode(t *testing.T) {
	e, err := New(TypeBookingCreated, BookingCreated{ReservationCode: "HB-12345678", GrandTotalCents: 100})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var p BookingCreated
	if err := e.Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ReservationCode != "HB-12345678" || e.ID == "" {
		t.Fatalf("unexpected event %+v / %+v", e, p)
	}
}
