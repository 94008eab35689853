package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type AnonymizedTripRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.AnonymizedTrip) ([]*types.AnonymizedTrip, error)
	ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.AnonymizedTrip, error)
	CountByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error)
}

type anonymizedTripRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnonymizedTripRepo(db *gorm.DB, baseLog *logger.Logger) AnonymizedTripRepo {
	return &anonymizedTripRepo{
		db:  db,
		log: baseLog.With("repo", "AnonymizedTripRepo"),
	}
}

func (r *anonymizedTripRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.AnonymizedTrip) ([]*types.AnonymizedTrip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.AnonymizedTrip{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *anonymizedTripRepo) ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.AnonymizedTrip, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AnonymizedTrip
	if jobID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("job_id = ?", jobID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *anonymizedTripRepo) CountByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if jobID == uuid.Nil {
		return 0, nil
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&types.AnonymizedTrip{}).
		Where("job_id = ?", jobID).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}
