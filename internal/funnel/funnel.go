// Package funnel keeps the most recent marketing funnel events for the CRM dashboard.
package funnel

import (
	"context"
	"time"
)

type Event struct {
	ID        string                 `json:"event_id"`
	Name      string                 `json:"event_name"`
	Time      time.Time              `json:"event_time"`
	ClientIP  string                 `json:"client_ip,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	HotelID   string                 `json:"hotel_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Store is a bounded, newest-first log of funnel events.
type Store interface {
	Record(ctx context.Context, e Event) error
	Recent(ctx context.Context, n int) ([]Event, error)
}
