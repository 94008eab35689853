package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/commutrace/tripsync-backend/internal/types"
)

func TestDefaultLevels(t *testing.T) {
	p := Default()
	basic, err := p.Level(types.AnonLevelBasic)
	if err != nil {
		t.Fatalf("Level(basic): %v", err)
	}
	if basic.MinGroupSize != 5 {
		t.Fatalf("basic MinGroupSize=%d, want 5", basic.MinGroupSize)
	}
	maximum, err := p.Level(types.AnonLevelMaximum)
	if err != nil {
		t.Fatalf("Level(maximum): %v", err)
	}
	if maximum.MinGroupSize <= basic.MinGroupSize {
		t.Fatalf("maximum threshold %d not stricter than basic %d", maximum.MinGroupSize, basic.MinGroupSize)
	}
	if maximum.ZoneCellDegrees <= basic.ZoneCellDegrees {
		t.Fatalf("maximum cell %v not coarser than basic %v", maximum.ZoneCellDegrees, basic.ZoneCellDegrees)
	}
}

func TestLevelUnknown(t *testing.T) {
	p := Default()
	if _, err := p.Level("paranoid"); err == nil {
		t.Fatalf("unknown level resolved")
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := []byte("levels:\n  basic:\n    min_group_size: 7\nreward:\n  max_points: 80\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	basic, _ := p.Level(types.AnonLevelBasic)
	if basic.MinGroupSize != 7 {
		t.Fatalf("overlay min_group_size=%d, want 7", basic.MinGroupSize)
	}
	// Untouched fields keep their defaults.
	if basic.ZoneCellDegrees != 0.01 {
		t.Fatalf("overlay clobbered zone_cell_degrees: %v", basic.ZoneCellDegrees)
	}
	if p.Reward.MaxPoints != 80 {
		t.Fatalf("overlay max_points=%d, want 80", p.Reward.MaxPoints)
	}
	if p.Reward.BasePoints != 10 {
		t.Fatalf("overlay clobbered base_points: %d", p.Reward.BasePoints)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if p.Reward.BasePoints != Default().Reward.BasePoints {
		t.Fatalf("empty path did not return defaults")
	}
}

func TestScorer(t *testing.T) {
	scorer := NewRewardScorer(Default().Reward)
	low := 10.0
	high := 90.0

	cases := []struct {
		name string
		trip *types.Trip
		want int64
	}{
		{name: "nil_trip", trip: nil, want: 0},
		{name: "short_walk", trip: &types.Trip{DistanceMeters: 500, PlausibilityScore: &high}, want: 10},
		{name: "per_km_bonus", trip: &types.Trip{DistanceMeters: 5200, PlausibilityScore: &high}, want: 15},
		{name: "capped", trip: &types.Trip{DistanceMeters: 900000, PlausibilityScore: &high}, want: 50},
		{name: "implausible_earns_nothing", trip: &types.Trip{DistanceMeters: 5200, PlausibilityScore: &low}, want: 0},
		{name: "no_score_counts_as_plausible", trip: &types.Trip{DistanceMeters: 500}, want: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scorer.Score(tc.trip)
			if got != tc.want {
				t.Fatalf("Score=%d, want %d", got, tc.want)
			}
		})
	}
}
