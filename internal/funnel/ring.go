package funnel

import (
	"context"
	"sync"
)

// Ring is an in-memory fixed-capacity ring buffer. The oldest event is overwritten once full.
type Ring struct {
	mu   sync.RWMutex
	buf  []Event
	next int
	size int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Event, capacity)}
}

func (r *Ring) Record(_ context.Context, e Event) error {
	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	r.mu.Unlock()
	return nil
}

// Recent returns up to n events, newest first. n <= 0 returns everything held.
func (r *Ring) Recent(_ context.Context, n int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out, nil
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}
