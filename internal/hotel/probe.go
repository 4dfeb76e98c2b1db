package hotel

import (
	"context"
	"fmt"
	"time"

	"hotelbook/pkg/pms"
)

// AvailabilitySource is satisfied by pms.Router.
type AvailabilitySource interface {
	Availability(ctx context.Context, hotelID string, checkin, checkout time.Time) ([]pms.RoomAvailability, error)
}

type ProbeResult struct {
	HotelID string
	Err     error    // the PMS call itself failed
	Missing []string // configured room names whose room type the PMS never mentioned
}

func (r ProbeResult) OK() bool {
	return r.Err == nil && len(r.Missing) == 0
}

func (r ProbeResult) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.HotelID, r.Err)
	case len(r.Missing) > 0:
		return fmt.Sprintf("%s: room types not reported by PMS: %v", r.HotelID, r.Missing)
	default:
		return r.HotelID + ": ok"
	}
}

// Probe asks each hotel's PMS for a one-night stay starting at from and reports configured rooms the
// PMS does not know about. A sold-out room still counts as known when the PMS lists it.
func Probe(ctx context.Context, c *Catalog, src AvailabilitySource, from time.Time) []ProbeResult {
	results := make([]ProbeResult, 0, len(c.hotels))
	for _, h := range c.List() {
		res := ProbeResult{HotelID: h.ID}
		rooms, err := src.Availability(ctx, h.ID, from, from.AddDate(0, 0, 1))
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		listed := make(map[string]bool, len(rooms))
		for _, r := range rooms {
			if r.Listed {
				listed[r.RoomName] = true
			}
		}
		for _, r := range h.Rooms {
			if !listed[r.Name] {
				res.Missing = append(res.Missing, r.Name)
			}
		}
		results = append(results, res)
	}
	return results
}
