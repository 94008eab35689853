package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

const chainFoldRetries = 5

type ChainService interface {
	// FoldTrip merges a newly accepted trip into its chain aggregate,
	// creating the chain on first membership. The update is a versioned
	// compare-and-swap, so two members accepted concurrently never lose
	// each other's contribution.
	FoldTrip(ctx context.Context, tx *gorm.DB, trip *types.Trip) (*types.TripChain, error)
	// Recompute rebuilds a chain aggregate from its remaining member trips,
	// deleting the chain when no members are left.
	Recompute(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) error
	GetForUser(ctx context.Context, tx *gorm.DB, userID, chainID uuid.UUID) (*types.TripChain, error)
}

type chainService struct {
	db     *gorm.DB
	log    *logger.Logger
	chains repos.TripChainRepo
	trips  repos.TripRepo
}

func NewChainService(db *gorm.DB, baseLog *logger.Logger, chains repos.TripChainRepo, trips repos.TripRepo) ChainService {
	return &chainService{
		db:     db,
		log:    baseLog.With("service", "ChainService"),
		chains: chains,
		trips:  trips,
	}
}

func (s *chainService) FoldTrip(ctx context.Context, tx *gorm.DB, trip *types.Trip) (*types.TripChain, error) {
	if trip == nil || trip.ChainID == uuid.Nil {
		return nil, fmt.Errorf("missing chain_id")
	}
	for attempt := 0; attempt < chainFoldRetries; attempt++ {
		chain, err := s.chains.GetByID(ctx, tx, trip.ChainID)
		if err != nil {
			return nil, err
		}
		if chain == nil {
			chain = &types.TripChain{
				ID:                   trip.ChainID,
				UserID:               trip.UserID,
				StartTime:            trip.StartTime,
				EndTime:              trip.EndTime,
				TotalDistanceMeters:  trip.DistanceMeters,
				TotalDurationSeconds: trip.DurationSeconds,
				TripCount:            1,
			}
			if _, err := s.chains.Create(ctx, tx, chain); err != nil {
				return nil, err
			}
			return chain, nil
		}
		if chain.UserID != trip.UserID {
			return nil, fmt.Errorf("chain %s belongs to another user", trip.ChainID)
		}
		folded := *chain
		if trip.StartTime.Before(folded.StartTime) {
			folded.StartTime = trip.StartTime
		}
		if trip.EndTime.After(folded.EndTime) {
			folded.EndTime = trip.EndTime
		}
		folded.TotalDistanceMeters += trip.DistanceMeters
		folded.TotalDurationSeconds += trip.DurationSeconds
		folded.TripCount++
		applied, err := s.chains.UpdateIfVersion(ctx, tx, &folded, chain.Version)
		if err != nil {
			return nil, err
		}
		if applied {
			folded.Version = chain.Version + 1
			return &folded, nil
		}
		// Lost the version race to a concurrent member; fold again on top
		// of the fresher aggregate.
	}
	return nil, fmt.Errorf("chain %s: fold contention not resolved after %d attempts", trip.ChainID, chainFoldRetries)
}

func (s *chainService) Recompute(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) error {
	if chainID == uuid.Nil {
		return nil
	}
	members, err := s.trips.ListByChain(ctx, tx, chainID)
	if err != nil {
		return err
	}
	chain, err := s.chains.GetByID(ctx, tx, chainID)
	if err != nil {
		return err
	}
	if chain == nil {
		return nil
	}
	if len(members) == 0 {
		return s.chains.Delete(ctx, tx, chainID)
	}
	rebuilt := types.TripChain{
		ID:        chain.ID,
		UserID:    chain.UserID,
		StartTime: members[0].StartTime,
		EndTime:   members[0].EndTime,
		Version:   chain.Version + 1,
		CreatedAt: chain.CreatedAt,
	}
	for _, member := range members {
		if member.StartTime.Before(rebuilt.StartTime) {
			rebuilt.StartTime = member.StartTime
		}
		if member.EndTime.After(rebuilt.EndTime) {
			rebuilt.EndTime = member.EndTime
		}
		rebuilt.TotalDistanceMeters += member.DistanceMeters
		rebuilt.TotalDurationSeconds += member.DurationSeconds
		rebuilt.TripCount++
	}
	return s.chains.Replace(ctx, tx, &rebuilt)
}

func (s *chainService) GetForUser(ctx context.Context, tx *gorm.DB, userID, chainID uuid.UUID) (*types.TripChain, error) {
	chain, err := s.chains.GetByID(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}
	if chain == nil || chain.UserID != userID {
		return nil, nil
	}
	return chain, nil
}
