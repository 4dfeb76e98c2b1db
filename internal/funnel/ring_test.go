package funnel

import (
	"context"
	"fmt"
	"testing"
)

func TestRingKeepsNewestWithinCapacity(t *testing.T) {
	r := NewRing(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		r.Record(ctx, Event{ID: fmt.Sprint(i)})
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
	got, _ := r.Recent(ctx, 0)
	want := []string{"5", "4", "3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestRingRecentLimit(t *testing.T) {
	r := NewRing(10)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		r.Record(ctx, Event{ID: fmt.Sprint(i)})
	}
	got, _ := r.Recent(ctx, 2)
	if len(got) != 2 || got[0].ID != "4" || got[1].ID != "3" {
		t.Fatalf("unexpected events %+v", got)
	}
	got, _ = r.Recent(ctx, 50)
	if len(got) != 4 {
		t.Fatalf("expected all 4 events, got %d", len(got))
	}
}

func TestRingEmpty(t *testing.T) {
	got, err := NewRing(5).Recent(context.Background(), 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}
