package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type RewardRepo interface {
	GetOrCreatePoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RewardPoints, error)
	GetPoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RewardPoints, error)
	UpdateBalances(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error
	AppendTransaction(ctx context.Context, tx *gorm.DB, txn *types.RewardTransaction) (*types.RewardTransaction, error)
	HasTripCompletion(ctx context.Context, tx *gorm.DB, tripID uuid.UUID) (bool, error)
	ListTransactions(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.RewardTransaction, error)
	CountTripCompletions(ctx context.Context, tx *gorm.DB, tripID uuid.UUID) (int64, error)
	NullTripRefs(ctx context.Context, tx *gorm.DB, tripIDs []uuid.UUID) error
}

type rewardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRewardRepo(db *gorm.DB, baseLog *logger.Logger) RewardRepo {
	return &rewardRepo{
		db:  db,
		log: baseLog.With("repo", "RewardRepo"),
	}
}

func (r *rewardRepo) GetOrCreatePoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RewardPoints, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, errors.New("missing user_id")
	}
	var points types.RewardPoints
	err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&points).Error
	if err == nil {
		return &points, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	points = types.RewardPoints{ID: uuid.New(), UserID: userID}
	if cErr := transaction.WithContext(ctx).Create(&points).Error; cErr != nil {
		return nil, cErr
	}
	return &points, nil
}

func (r *rewardRepo) GetPoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RewardPoints, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var points types.RewardPoints
	err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&points).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &points, nil
}

func (r *rewardRepo) UpdateBalances(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.RewardPoints{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (r *rewardRepo) AppendTransaction(ctx context.Context, tx *gorm.DB, txn *types.RewardTransaction) (*types.RewardTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if txn == nil {
		return nil, errors.New("missing transaction")
	}
	if txn.PointsEarned != 0 && txn.PointsRedeemed != 0 {
		return nil, errors.New("ledger entry may carry either earned or redeemed points, not both")
	}
	if err := transaction.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *rewardRepo) HasTripCompletion(ctx context.Context, tx *gorm.DB, tripID uuid.UUID) (bool, error) {
	n, err := r.CountTripCompletions(ctx, tx, tripID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *rewardRepo) CountTripCompletions(ctx context.Context, tx *gorm.DB, tripID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if tripID == uuid.Nil {
		return 0, nil
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&types.RewardTransaction{}).
		Where("trip_id = ? AND transaction_type = ?", tripID, types.TxnTripCompletion).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *rewardRepo) ListTransactions(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.RewardTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RewardTransaction
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rewardRepo) NullTripRefs(ctx context.Context, tx *gorm.DB, tripIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(tripIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.RewardTransaction{}).
		Where("trip_id IN ?", tripIDs).
		Update("trip_id", gorm.Expr("NULL")).Error
}
