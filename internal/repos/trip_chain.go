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

type TripChainRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chain *types.TripChain) (*types.TripChain, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TripChain, error)
	// UpdateIfVersion applies the folded aggregate only when the stored
	// version still matches; reports whether the swap landed.
	UpdateIfVersion(ctx context.Context, tx *gorm.DB, chain *types.TripChain, expectedVersion int64) (bool, error)
	Replace(ctx context.Context, tx *gorm.DB, chain *types.TripChain) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.TripChain, error)
}

type tripChainRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTripChainRepo(db *gorm.DB, baseLog *logger.Logger) TripChainRepo {
	return &tripChainRepo{
		db:  db,
		log: baseLog.With("repo", "TripChainRepo"),
	}
}

func (r *tripChainRepo) Create(ctx context.Context, tx *gorm.DB, chain *types.TripChain) (*types.TripChain, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(chain).Error; err != nil {
		return nil, err
	}
	return chain, nil
}

func (r *tripChainRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TripChain, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var chain types.TripChain
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&chain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

func (r *tripChainRepo) UpdateIfVersion(ctx context.Context, tx *gorm.DB, chain *types.TripChain, expectedVersion int64) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if chain == nil || chain.ID == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.TripChain{}).
		Where("id = ? AND version = ?", chain.ID, expectedVersion).
		Updates(map[string]interface{}{
			"start_time":             chain.StartTime,
			"end_time":               chain.EndTime,
			"total_distance_meters":  chain.TotalDistanceMeters,
			"total_duration_seconds": chain.TotalDurationSeconds,
			"trip_count":             chain.TripCount,
			"version":                expectedVersion + 1,
			"updated_at":             time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *tripChainRepo) Replace(ctx context.Context, tx *gorm.DB, chain *types.TripChain) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if chain == nil || chain.ID == uuid.Nil {
		return nil
	}
	chain.UpdatedAt = time.Now()
	return transaction.WithContext(ctx).Save(chain).Error
}

func (r *tripChainRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.TripChain{}).Error
}

func (r *tripChainRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.TripChain, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TripChain
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
