package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/types"
)

// racingChainRepo keeps one chain in memory and slips a rival member into
// the aggregate right before the first versioned update, so the caller's
// swap loses and it has to refold on top of the fresher aggregate.
type racingChainRepo struct {
	stored       *types.TripChain
	rival        *types.Trip
	alwaysReject bool
	rejections   int
}

func applyMember(chain *types.TripChain, trip *types.Trip) {
	if trip.StartTime.Before(chain.StartTime) {
		chain.StartTime = trip.StartTime
	}
	if trip.EndTime.After(chain.EndTime) {
		chain.EndTime = trip.EndTime
	}
	chain.TotalDistanceMeters += trip.DistanceMeters
	chain.TotalDurationSeconds += trip.DurationSeconds
	chain.TripCount++
}

func (r *racingChainRepo) Create(_ context.Context, _ *gorm.DB, chain *types.TripChain) (*types.TripChain, error) {
	cp := *chain
	r.stored = &cp
	return chain, nil
}

func (r *racingChainRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.TripChain, error) {
	if r.stored == nil || r.stored.ID != id {
		return nil, nil
	}
	cp := *r.stored
	return &cp, nil
}

func (r *racingChainRepo) UpdateIfVersion(_ context.Context, _ *gorm.DB, chain *types.TripChain, expectedVersion int64) (bool, error) {
	if r.alwaysReject {
		// A rival wins every round; the stored aggregate keeps moving.
		r.stored.Version++
		r.rejections++
		return false, nil
	}
	if r.rival != nil {
		applyMember(r.stored, r.rival)
		r.stored.Version++
		r.rival = nil
		r.rejections++
		return false, nil
	}
	if r.stored == nil || r.stored.Version != expectedVersion {
		r.rejections++
		return false, nil
	}
	cp := *chain
	cp.Version = expectedVersion + 1
	r.stored = &cp
	return true, nil
}

func (r *racingChainRepo) Replace(_ context.Context, _ *gorm.DB, chain *types.TripChain) error {
	cp := *chain
	r.stored = &cp
	return nil
}

func (r *racingChainRepo) Delete(_ context.Context, _ *gorm.DB, _ uuid.UUID) error {
	r.stored = nil
	return nil
}

func (r *racingChainRepo) ListByUser(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.TripChain, error) {
	return nil, nil
}

func TestFoldTripRetriesWhenVersionSwapLoses(t *testing.T) {
	log := newTestLogger(t)
	userID := uuid.New()
	chainID := uuid.New()
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	mkTrip := func(offset time.Duration, meters float64, secs int64) *types.Trip {
		start := base.Add(offset)
		return &types.Trip{
			ID:              uuid.New(),
			UserID:          userID,
			ChainID:         chainID,
			StartTime:       start,
			EndTime:         start.Add(time.Duration(secs) * time.Second),
			DistanceMeters:  meters,
			DurationSeconds: secs,
		}
	}
	first := mkTrip(0, 3200, 600)
	rival := mkTrip(2*time.Hour, 1800, 400)
	late := mkTrip(4*time.Hour, 2500, 500)

	repo := &racingChainRepo{rival: rival}
	svc := NewChainService(nil, log, repo, nil)

	if _, err := svc.FoldTrip(context.Background(), nil, first); err != nil {
		t.Fatalf("seed fold: %v", err)
	}
	folded, err := svc.FoldTrip(context.Background(), nil, late)
	if err != nil {
		t.Fatalf("contended fold: %v", err)
	}
	if repo.rejections != 1 {
		t.Fatalf("version swap rejected %d times, want 1", repo.rejections)
	}
	// The refolded aggregate carries all three members, including the rival
	// that won the first swap.
	if folded.TripCount != 3 {
		t.Fatalf("trip_count=%d, want 3", folded.TripCount)
	}
	if folded.TotalDistanceMeters != 3200+1800+2500 {
		t.Fatalf("total_distance=%v, want %v", folded.TotalDistanceMeters, 3200+1800+2500)
	}
	if folded.TotalDurationSeconds != 600+400+500 {
		t.Fatalf("total_duration=%d, want %d", folded.TotalDurationSeconds, 600+400+500)
	}
	if !folded.StartTime.Equal(first.StartTime) || !folded.EndTime.Equal(late.EndTime) {
		t.Fatalf("window [%s, %s], want [%s, %s]",
			folded.StartTime, folded.EndTime, first.StartTime, late.EndTime)
	}
	if folded.Version != repo.stored.Version {
		t.Fatalf("returned version %d disagrees with stored %d", folded.Version, repo.stored.Version)
	}
}

func TestFoldTripGivesUpOnPersistentContention(t *testing.T) {
	log := newTestLogger(t)
	trip := &types.Trip{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ChainID:   uuid.New(),
		StartTime: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 5, 10, 8, 10, 0, 0, time.UTC),
	}
	repo := &racingChainRepo{
		alwaysReject: true,
		stored: &types.TripChain{
			ID:     trip.ChainID,
			UserID: trip.UserID,
		},
	}
	svc := NewChainService(nil, log, repo, nil)

	if _, err := svc.FoldTrip(context.Background(), nil, trip); err == nil {
		t.Fatalf("unresolvable contention did not error")
	}
	if repo.rejections != chainFoldRetries {
		t.Fatalf("attempts=%d, want %d", repo.rejections, chainFoldRetries)
	}
}
