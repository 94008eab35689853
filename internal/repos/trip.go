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

// Correction fields a client may touch after sync. Everything else on a
// synced trip is server-authoritative.
var TripCorrectionColumns = map[string]bool{
	"user_confirmed_mode": true,
	"trip_purpose":        true,
	"notes":               true,
	"is_private":          true,
}

type TripRepo interface {
	Create(ctx context.Context, tx *gorm.DB, trip *types.Trip) (*types.Trip, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Trip, error)
	ListByUserInRange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Trip, error)
	ListByChain(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) ([]*types.Trip, error)
	ListInRange(ctx context.Context, tx *gorm.DB, from, to time.Time, userIDs []uuid.UUID) ([]*types.Trip, error)
	UpdateCorrections(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	ListIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to *time.Time) ([]uuid.UUID, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) error
}

type tripRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTripRepo(db *gorm.DB, baseLog *logger.Logger) TripRepo {
	return &tripRepo{
		db:  db,
		log: baseLog.With("repo", "TripRepo"),
	}
}

func (r *tripRepo) Create(ctx context.Context, tx *gorm.DB, trip *types.Trip) (*types.Trip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(trip).Error; err != nil {
		return nil, err
	}
	return trip, nil
}

func (r *tripRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Trip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var trip types.Trip
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&trip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *tripRepo) ListByUserInRange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Trip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Trip
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).Where("user_id = ?", userID)
	if !from.IsZero() {
		q = q.Where("start_time >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("start_time < ?", to)
	}
	if err := q.Order("start_time ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tripRepo) ListByChain(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) ([]*types.Trip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Trip
	if chainID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("start_time ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tripRepo) ListInRange(ctx context.Context, tx *gorm.DB, from, to time.Time, userIDs []uuid.UUID) ([]*types.Trip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Trip
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Where("start_time >= ? AND start_time < ?", from, to).
		Where("is_private = ?", false).
		Order("start_time ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tripRepo) UpdateCorrections(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	filtered := map[string]interface{}{}
	for col, val := range updates {
		if TripCorrectionColumns[col] {
			filtered[col] = val
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	filtered["updated_at"] = time.Now()
	return transaction.WithContext(ctx).
		Model(&types.Trip{}).
		Where("id = ?", id).
		Updates(filtered).Error
}

func (r *tripRepo) ListIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to *time.Time) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if userID == uuid.Nil {
		return ids, nil
	}
	q := transaction.WithContext(ctx).Model(&types.Trip{}).Where("user_id = ?", userID)
	if from != nil {
		q = q.Where("start_time >= ?", *from)
	}
	if to != nil {
		q = q.Where("start_time < ?", *to)
	}
	if err := q.Order("start_time ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *tripRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&types.Trip{}).Error
}
