package anonymize

import (
	"testing"
	"time"

	"github.com/commutrace/tripsync-backend/internal/types"
)

func TestZoneForGridding(t *testing.T) {
	cases := []struct {
		name string
		lat  float64
		lon  float64
		cell float64
		want string
	}{
		{name: "origin_cell", lat: 0.005, lon: 0.005, cell: 0.01, want: "z0:0"},
		{name: "next_cell_east", lat: 0.005, lon: 0.015, cell: 0.01, want: "z0:1"},
		{name: "negative_floors_down", lat: -0.005, lon: 0.005, cell: 0.01, want: "z-1:0"},
		{name: "coarser_cell_merges", lat: 0.015, lon: 0.015, cell: 0.05, want: "z0:0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ZoneFor(tc.lat, tc.lon, tc.cell)
			if got != tc.want {
				t.Fatalf("ZoneFor(%v,%v,%v)=%s, want %s", tc.lat, tc.lon, tc.cell, got, tc.want)
			}
		})
	}
}

func TestZoneForCannotRecoverPrecision(t *testing.T) {
	a := ZoneFor(52.5001, 13.4001, 0.01)
	b := ZoneFor(52.5099, 13.4099, 0.01)
	if a != b {
		t.Fatalf("points in the same cell produced different zones: %s vs %s", a, b)
	}
}

func TestBinStart(t *testing.T) {
	at := time.Date(2026, 3, 4, 8, 37, 12, 0, time.UTC)
	got := BinStart(at, 15)
	want := time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("BinStart=%v, want %v", got, want)
	}
}

func tripAt(lat, lon float64, start time.Time, mode string) *types.Trip {
	return &types.Trip{
		OriginLat:       lat,
		OriginLon:       lon,
		DestinationLat:  lat + 0.001,
		DestinationLon:  lon + 0.001,
		StartTime:       start,
		EndTime:         start.Add(10 * time.Minute),
		DurationSeconds: 600,
		DistanceMeters:  1500,
		DetectedMode:    mode,
	}
}

func TestFromTripRespectsAllowedZones(t *testing.T) {
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	trip := tripAt(0.005, 0.005, start, types.ModeWalk)
	p := Params{ZoneCellDegrees: 0.01, BinMinutes: 15}

	if _, ok := FromTrip(trip, p); !ok {
		t.Fatalf("unrestricted params rejected trip")
	}
	p.AllowedZones = map[string]bool{"z99:99": true}
	if _, ok := FromTrip(trip, p); ok {
		t.Fatalf("trip outside allowed zones was accepted")
	}
}

func TestFromTripUsesCorrectedMode(t *testing.T) {
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	trip := tripAt(0.005, 0.005, start, types.ModeCar)
	corrected := types.ModeTransit
	trip.UserConfirmedMode = &corrected

	c, ok := FromTrip(trip, Params{ZoneCellDegrees: 0.01, BinMinutes: 15})
	if !ok {
		t.Fatalf("FromTrip rejected trip")
	}
	if c.Key.Mode != types.ModeTransit {
		t.Fatalf("mode=%s, want corrected %s", c.Key.Mode, types.ModeTransit)
	}
}

func TestSuppressDropsSmallGroups(t *testing.T) {
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	p := Params{ZoneCellDegrees: 0.01, BinMinutes: 15}

	var candidates []Candidate
	// Five walkers in the same cell and bin, one lone driver.
	for i := 0; i < 5; i++ {
		c, ok := FromTrip(tripAt(0.005, 0.005, start, types.ModeWalk), p)
		if !ok {
			t.Fatalf("walker %d rejected", i)
		}
		candidates = append(candidates, c)
	}
	driver, ok := FromTrip(tripAt(0.005, 0.005, start, types.ModeCar), p)
	if !ok {
		t.Fatalf("driver rejected")
	}
	candidates = append(candidates, driver)

	groups := Group(candidates)
	if len(groups) != 2 {
		t.Fatalf("groups=%d, want 2", len(groups))
	}
	kept, suppressedGroups, suppressedTrips := Suppress(groups, 5)
	if len(kept) != 1 {
		t.Fatalf("kept groups=%d, want 1", len(kept))
	}
	if suppressedGroups != 1 || suppressedTrips != 1 {
		t.Fatalf("suppressed groups=%d trips=%d, want 1/1", suppressedGroups, suppressedTrips)
	}
	for key, members := range kept {
		if key.Mode != types.ModeWalk {
			t.Fatalf("surviving group mode=%s, want walk", key.Mode)
		}
		if len(members) != 5 {
			t.Fatalf("surviving group size=%d, want 5", len(members))
		}
	}
}

func TestSuppressBoundary(t *testing.T) {
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	p := Params{ZoneCellDegrees: 0.01, BinMinutes: 15}
	var candidates []Candidate
	for i := 0; i < 4; i++ {
		c, _ := FromTrip(tripAt(0.005, 0.005, start, types.ModeWalk), p)
		candidates = append(candidates, c)
	}
	// Exactly k-1 members must vanish entirely, never be partially emitted.
	kept, suppressedGroups, _ := Suppress(Group(candidates), 5)
	if len(kept) != 0 || suppressedGroups != 1 {
		t.Fatalf("kept=%d suppressed=%d, want 0/1", len(kept), suppressedGroups)
	}
}

func TestCompanionCount(t *testing.T) {
	if got := companionCount(nil); got != 0 {
		t.Fatalf("companionCount(nil)=%d, want 0", got)
	}
	if got := companionCount([]byte(`[{"age_group":"adult"},{"age_group":"child"}]`)); got != 2 {
		t.Fatalf("companionCount=%d, want 2", got)
	}
	if got := companionCount([]byte(`not-json`)); got != 0 {
		t.Fatalf("companionCount(bad json)=%d, want 0", got)
	}
}
