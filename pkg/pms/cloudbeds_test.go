package pms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func testProperty(kind string) *Property {
	return &Property{
		HotelID:    "downtown",
		Kind:       kind,
		PropertyID: "P100",
		Rooms: []Room{
			{Name: "King Suite", RoomTypeID: "RT1", Rates: RateSet{Nightly: "R-N", Weekly: "R-W", Monthly: "R-M"}, AlternateRateIDs: []string{"R-ALT"}},
			{Name: "Twin", RoomTypeID: "RT2", Rates: RateSet{Nightly: "T-N"}},
		},
	}
}

func newTestCloudbeds(t *testing.T, h http.HandlerFunc) *Cloudbeds {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-key"})
	return NewCloudbeds(context.Background(), srv.URL, ts, zap.NewNop())
}

func TestCloudbedsAvailability(t *testing.T) {
	c := newTestCloudbeds(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getAvailableRoomTypes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Query().Get("startDate") != "2026-11-01" {
			t.Errorf("unexpected startDate %q", r.URL.Query().Get("startDate"))
		}
		w.Write([]byte(`{"success":true,"data":[{"propertyID":100,"propertyRooms":[{"roomTypeID":"RT1","roomsAvailable":3,"rateID":99}]}]}`))
	})

	in := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	rooms, err := c.Availability(context.Background(), testProperty(KindCloudbeds), in, in.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if !rooms[0].Available || rooms[0].RoomsAvailable != 3 || rooms[0].RateID != "R-W" {
		t.Fatalf("unexpected king suite availability: %+v", rooms[0])
	}
	if rooms[1].Available {
		t.Fatalf("twin should be unavailable: %+v", rooms[1])
	}
}

func TestCloudbedsCreateBooking(t *testing.T) {
	c := newTestCloudbeds(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if got := r.PostForm.Get("rooms[0][roomRateID]"); got != "R-N" {
			t.Errorf("expected nightly rate, got %q", got)
		}
		if got := r.PostForm.Get("adults[0][quantity]"); got != "1" {
			t.Errorf("expected at least one adult, got %q", got)
		}
		if got := r.PostForm.Get("thirdPartyIdentifier"); got != "HB-TEST0001" {
			t.Errorf("unexpected third party id %q", got)
		}
		w.Write([]byte(`{"success":true,"reservationID":"CB-778899"}`))
	})

	in := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.CreateBooking(context.Background(), testProperty(KindCloudbeds),
		BookingDetails{ReservationCode: "HB-TEST0001", RoomName: "King Suite", Checkin: in, Checkout: in.AddDate(0, 0, 3)},
		GuestInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.ReservationID != "CB-778899" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCloudbedsCreateBookingFailure(t *testing.T) {
	c := newTestCloudbeds(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Room no longer available"}`))
	})
	in := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.CreateBooking(context.Background(), testProperty(KindCloudbeds),
		BookingDetails{ReservationCode: "HB-TEST0002", RoomName: "King Suite", Checkin: in, Checkout: in.AddDate(0, 0, 2)},
		GuestInfo{FirstName: "Ada"})
	if err == nil {
		t.Fatal("expected error for unsuccessful reservation")
	}
}
