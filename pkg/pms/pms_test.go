package pms

import "testing"

func TestTierForNights(t *testing.T) {
	tests := []struct {
		nights int
		want   Tier
	}{
		{1, TierNightly},
		{6, TierNightly},
		{7, TierWeekly},
		{27, TierWeekly},
		{28, TierMonthly},
		{90, TierMonthly},
	}
	for _, tt := range tests {
		if got := TierForNights(tt.nights); got != tt.want {
			t.Errorf("TierForNights(%d) = %s, want %s", tt.nights, got, tt.want)
		}
	}
}

func TestRoomRateIDFallsBackToNightly(t *testing.T) {
	full := Room{Rates: RateSet{Nightly: "n", Weekly: "w", Monthly: "m"}}
	if got := full.RateID(3); got != "n" {
		t.Errorf("3 nights: got %s", got)
	}
	if got := full.RateID(10); got != "w" {
		t.Errorf("10 nights: got %s", got)
	}
	if got := full.RateID(30); got != "m" {
		t.Errorf("30 nights: got %s", got)
	}

	nightlyOnly := Room{Rates: RateSet{Nightly: "n"}}
	if got := nightlyOnly.RateID(30); got != "n" {
		t.Errorf("monthly without plan: got %s, want nightly", got)
	}
}

func TestAlternateRateIDSkipsWeeklyAndFailed(t *testing.T) {
	r := Room{
		Rates:            RateSet{Nightly: "n", Weekly: "w"},
		AlternateRateIDs: []string{"w", "n", "promo"},
	}
	if got := r.AlternateRateID("n"); got != "promo" {
		t.Fatalf("got %q, want promo", got)
	}
	if got := (&Room{AlternateRateIDs: []string{"w"}, Rates: RateSet{Weekly: "w"}}).AlternateRateID("x"); got != "" {
		t.Fatalf("expected no alternate, got %q", got)
	}
}
