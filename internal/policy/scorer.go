package policy

import (
	"github.com/commutrace/tripsync-backend/internal/types"
)

// RewardScorer computes the earned-points amount for one accepted trip.
// The ledger engine treats this as opaque policy.
type RewardScorer interface {
	Score(trip *types.Trip) int64
}

type defaultScorer struct {
	cfg RewardPolicy
}

func NewRewardScorer(cfg RewardPolicy) RewardScorer {
	return &defaultScorer{cfg: cfg}
}

// Score awards a base amount plus one unit per whole kilometer, capped.
// Trips below the plausibility floor earn nothing.
func (s *defaultScorer) Score(trip *types.Trip) int64 {
	if trip == nil {
		return 0
	}
	if trip.PlausibilityScore != nil && *trip.PlausibilityScore < s.cfg.MinPlausibility {
		return 0
	}
	points := s.cfg.BasePoints + s.cfg.PointsPerKm*int64(trip.DistanceMeters/1000)
	if points > s.cfg.MaxPoints {
		points = s.cfg.MaxPoints
	}
	if points < 0 {
		points = 0
	}
	return points
}
