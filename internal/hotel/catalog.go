// Package hotel holds the per-hotel catalogue: PMS wiring, room types, rate plans and list prices.
package hotel

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"hotelbook/pkg/pms"

	"gopkg.in/yaml.v3"
)

// Prices are list prices in dollars per tier: per night, per 7 nights, per 28 nights.
type Prices struct {
	Nightly float64 `yaml:"NIGHTLY" json:"NIGHTLY"`
	Weekly  float64 `yaml:"WEEKLY" json:"WEEKLY,omitempty"`
	Monthly float64 `yaml:"MONTHLY" json:"MONTHLY,omitempty"`
}

type Room struct {
	pms.Room  `yaml:",inline"`
	Prices    Prices `yaml:"prices" json:"prices"`
	MaxGuests int    `yaml:"maxGuests" json:"maxGuests,omitempty"`
}

type Hotel struct {
	ID         string  `yaml:"hotelId" json:"hotelId"`
	Name       string  `yaml:"name" json:"name"`
	PMS        string  `yaml:"pms" json:"-"`
	PropertyID string  `yaml:"propertyId" json:"-"`
	Timezone   string  `yaml:"timezone" json:"timezone,omitempty"`
	TaxRate    float64 `yaml:"taxRate" json:"taxRate"`
	Rooms      []Room  `yaml:"rooms" json:"rooms"`
}

func (h *Hotel) Room(name string) (*Room, bool) {
	for i := range h.Rooms {
		if h.Rooms[i].Name == name {
			return &h.Rooms[i], true
		}
	}
	return nil, false
}

// Property converts the hotel into the view the PMS adapters work with.
func (h *Hotel) Property() *pms.Property {
	p := &pms.Property{HotelID: h.ID, Kind: h.PMS, PropertyID: h.PropertyID}
	for _, r := range h.Rooms {
		p.Rooms = append(p.Rooms, r.Room)
	}
	return p
}

type Catalog struct {
	hotels map[string]*Hotel
}

type catalogFile struct {
	Hotels []Hotel `yaml:"hotels"`
}

func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hotel catalogue: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a catalogue document.
func Parse(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode hotel catalogue: %w", err)
	}
	return New(f.Hotels)
}

func New(hotels []Hotel) (*Catalog, error) {
	c := &Catalog{hotels: make(map[string]*Hotel, len(hotels))}
	var errs []error
	for i := range hotels {
		h := hotels[i]
		if _, dup := c.hotels[h.ID]; dup {
			errs = append(errs, fmt.Errorf("hotel %q: duplicate id", h.ID))
			continue
		}
		c.hotels[h.ID] = &h
	}
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Validate checks the static shape of every hotel. PMS cross-checks live in Probe.
func (c *Catalog) Validate() error {
	var errs []error
	for _, h := range c.List() {
		if h.ID == "" {
			errs = append(errs, errors.New("hotel with empty hotelId"))
		}
		switch h.PMS {
		case pms.KindCloudbeds, pms.KindBookingCenter:
		default:
			errs = append(errs, fmt.Errorf("hotel %q: unknown pms %q", h.ID, h.PMS))
		}
		if h.PropertyID == "" {
			errs = append(errs, fmt.Errorf("hotel %q: missing propertyId", h.ID))
		}
		if len(h.Rooms) == 0 {
			errs = append(errs, fmt.Errorf("hotel %q: no rooms", h.ID))
		}
		seen := map[string]bool{}
		for _, r := range h.Rooms {
			if seen[r.Name] {
				errs = append(errs, fmt.Errorf("hotel %q room %q: duplicate room name", h.ID, r.Name))
			}
			seen[r.Name] = true
			if r.RoomTypeID == "" {
				errs = append(errs, fmt.Errorf("hotel %q room %q: missing roomTypeId", h.ID, r.Name))
			}
			if r.Rates.Nightly == "" {
				errs = append(errs, fmt.Errorf("hotel %q room %q: missing nightly rate", h.ID, r.Name))
			}
			if r.Prices.Nightly <= 0 {
				errs = append(errs, fmt.Errorf("hotel %q room %q: missing NIGHTLY price", h.ID, r.Name))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) Get(id string) (*Hotel, bool) {
	h, ok := c.hotels[id]
	return h, ok
}

// Property implements pms.PropertyLookup.
func (c *Catalog) Property(hotelID string) (*pms.Property, bool) {
	h, ok := c.hotels[hotelID]
	if !ok {
		return nil, false
	}
	return h.Property(), true
}

// List returns hotels ordered by id.
func (c *Catalog) List() []*Hotel {
	out := make([]*Hotel, 0, len(c.hotels))
	for _, h := range c.hotels {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
