package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type ConsentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.ConsentRecord) (*types.ConsentRecord, error)
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, version string) (*types.ConsentRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ConsentRecord, error)
	// ListLatest returns each user's most recent consent record.
	ListLatest(ctx context.Context, tx *gorm.DB) ([]*types.ConsentRecord, error)
}

type consentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsentRepo(db *gorm.DB, baseLog *logger.Logger) ConsentRepo {
	return &consentRepo{
		db:  db,
		log: baseLog.With("repo", "ConsentRepo"),
	}
}

func (r *consentRepo) Create(ctx context.Context, tx *gorm.DB, record *types.ConsentRecord) (*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *consentRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, version string) (*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || version == "" {
		return nil, nil
	}
	var record types.ConsentRecord
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND consent_version = ?", userID, version).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *consentRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConsentRecord
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("consented_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *consentRepo) ListLatest(ctx context.Context, tx *gorm.DB) ([]*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConsentRecord
	// Correlated subquery instead of DISTINCT ON so the same statement runs
	// on both the postgres and sqlite drivers.
	err := transaction.WithContext(ctx).
		Where(`consented_at = (SELECT MAX(c2.consented_at) FROM consent_record c2 WHERE c2.user_id = consent_record.user_id)`).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
