// Package policy holds the tunable parts the schema leaves open: reward
// scoring and per-level anonymization parameters. Defaults are compiled in;
// a YAML policy file overrides them.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/commutrace/tripsync-backend/internal/types"
)

// LevelPolicy configures one anonymization level. Stricter levels use larger
// minimum groups, coarser grid cells and wider time bins.
type LevelPolicy struct {
	// MinGroupSize is the k-anonymity threshold: groups with fewer
	// contributing trips are suppressed entirely.
	MinGroupSize int `yaml:"min_group_size"`
	// ZoneCellDegrees is the spatial grid cell edge, in degrees.
	ZoneCellDegrees float64 `yaml:"zone_cell_degrees"`
	// BinMultiplier scales the requested time-bin size.
	BinMultiplier int `yaml:"bin_multiplier"`
}

type RewardPolicy struct {
	BasePoints      int64   `yaml:"base_points"`
	PointsPerKm     int64   `yaml:"points_per_km"`
	MaxPoints       int64   `yaml:"max_points"`
	MinPlausibility float64 `yaml:"min_plausibility"`
}

type Policy struct {
	Levels map[string]LevelPolicy `yaml:"levels"`
	Reward RewardPolicy           `yaml:"reward"`
}

func Default() Policy {
	return Policy{
		Levels: map[string]LevelPolicy{
			types.AnonLevelBasic:    {MinGroupSize: 5, ZoneCellDegrees: 0.01, BinMultiplier: 1},
			types.AnonLevelEnhanced: {MinGroupSize: 10, ZoneCellDegrees: 0.02, BinMultiplier: 2},
			types.AnonLevelMaximum:  {MinGroupSize: 20, ZoneCellDegrees: 0.05, BinMultiplier: 4},
		},
		Reward: RewardPolicy{
			BasePoints:      10,
			PointsPerKm:     1,
			MaxPoints:       50,
			MinPlausibility: 30,
		},
	}
}

// Load reads the YAML policy file at path and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	var overlay Policy
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return p, fmt.Errorf("parse policy file: %w", err)
	}
	for name, lvl := range overlay.Levels {
		base, ok := p.Levels[name]
		if !ok {
			p.Levels[name] = lvl
			continue
		}
		if lvl.MinGroupSize > 0 {
			base.MinGroupSize = lvl.MinGroupSize
		}
		if lvl.ZoneCellDegrees > 0 {
			base.ZoneCellDegrees = lvl.ZoneCellDegrees
		}
		if lvl.BinMultiplier > 0 {
			base.BinMultiplier = lvl.BinMultiplier
		}
		p.Levels[name] = base
	}
	if overlay.Reward.BasePoints > 0 {
		p.Reward.BasePoints = overlay.Reward.BasePoints
	}
	if overlay.Reward.PointsPerKm > 0 {
		p.Reward.PointsPerKm = overlay.Reward.PointsPerKm
	}
	if overlay.Reward.MaxPoints > 0 {
		p.Reward.MaxPoints = overlay.Reward.MaxPoints
	}
	if overlay.Reward.MinPlausibility > 0 {
		p.Reward.MinPlausibility = overlay.Reward.MinPlausibility
	}
	return p, nil
}

// Level resolves a named anonymization level.
func (p Policy) Level(name string) (LevelPolicy, error) {
	lvl, ok := p.Levels[name]
	if !ok {
		return LevelPolicy{}, fmt.Errorf("unknown anonymization level %q", name)
	}
	return lvl, nil
}
