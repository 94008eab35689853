package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/keymutex"
	"github.com/commutrace/tripsync-backend/internal/logger"
	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/policy"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type RewardService interface {
	// CreditTripCompletion applies the earned-points delta for one accepted
	// trip, exactly once per trip id. Safe to call again for the same trip;
	// the replay is a no-op. Runs inside the caller's transaction.
	CreditTripCompletion(ctx context.Context, tx *gorm.DB, trip *types.Trip) (int64, error)
	// Redeem debits available points. Fails with ErrUnderflow, applying
	// nothing, when the balance does not cover the request.
	Redeem(ctx context.Context, userID uuid.UUID, points int64, description string) (*types.RewardTransaction, error)
	GetBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RewardPoints, error)
	ListTransactions(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.RewardTransaction, error)
}

type rewardService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.RewardRepo
	scorer policy.RewardScorer
	locks  *keymutex.KeyMutex
}

func NewRewardService(db *gorm.DB, baseLog *logger.Logger, repo repos.RewardRepo, scorer policy.RewardScorer, locks *keymutex.KeyMutex) RewardService {
	return &rewardService{
		db:     db,
		log:    baseLog.With("service", "RewardService"),
		repo:   repo,
		scorer: scorer,
		locks:  locks,
	}
}

func (s *rewardService) CreditTripCompletion(ctx context.Context, tx *gorm.DB, trip *types.Trip) (int64, error) {
	if trip == nil || trip.ID == uuid.Nil {
		return 0, fmt.Errorf("missing trip")
	}
	exists, err := s.repo.HasTripCompletion(ctx, tx, trip.ID)
	if err != nil {
		return 0, err
	}
	if exists {
		// Idempotent replay: the credit already landed.
		return 0, nil
	}
	if _, err := s.repo.GetOrCreatePoints(ctx, tx, trip.UserID); err != nil {
		return 0, err
	}
	earned := s.scorer.Score(trip)
	tripID := trip.ID
	txn := &types.RewardTransaction{
		ID:              uuid.New(),
		UserID:          trip.UserID,
		TripID:          &tripID,
		TransactionType: types.TxnTripCompletion,
		PointsEarned:    earned,
		Description:     fmt.Sprintf("trip %d completed", trip.TripNumber),
	}
	// The zero-point transaction still gets appended: it is the idempotency
	// marker for this trip id.
	if _, err := s.repo.AppendTransaction(ctx, tx, txn); err != nil {
		return 0, err
	}
	if earned > 0 {
		now := time.Now().UTC()
		err := s.repo.UpdateBalances(ctx, tx, trip.UserID, map[string]interface{}{
			"total_points":     gorm.Expr("total_points + ?", earned),
			"available_points": gorm.Expr("available_points + ?", earned),
			"last_earned":      now,
		})
		if err != nil {
			return 0, err
		}
	}
	return earned, nil
}

func (s *rewardService) Redeem(ctx context.Context, userID uuid.UUID, points int64, description string) (*types.RewardTransaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if points <= 0 {
		return nil, fmt.Errorf("%w: redemption must be positive", pkgerrors.ErrInvalidArgument)
	}
	var txn *types.RewardTransaction
	// Check-then-act on the balance, serialized per user ledger and applied
	// as one durable unit.
	err := s.locks.Do("ledger:"+userID.String(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			balance, err := s.repo.GetOrCreatePoints(ctx, tx, userID)
			if err != nil {
				return err
			}
			if balance.AvailablePoints < points {
				return fmt.Errorf("%w: available=%d requested=%d", pkgerrors.ErrUnderflow, balance.AvailablePoints, points)
			}
			txn = &types.RewardTransaction{
				ID:              uuid.New(),
				UserID:          userID,
				TransactionType: types.TxnRedemption,
				PointsRedeemed:  points,
				Description:     description,
			}
			if _, err := s.repo.AppendTransaction(ctx, tx, txn); err != nil {
				return err
			}
			return s.repo.UpdateBalances(ctx, tx, userID, map[string]interface{}{
				"available_points": gorm.Expr("available_points - ?", points),
				"redeemed_points":  gorm.Expr("redeemed_points + ?", points),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *rewardService) GetBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RewardPoints, error) {
	balance, err := s.repo.GetPoints(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return &types.RewardPoints{UserID: userID}, nil
	}
	return balance, nil
}

func (s *rewardService) ListTransactions(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.RewardTransaction, error) {
	return s.repo.ListTransactions(ctx, tx, userID, limit)
}
