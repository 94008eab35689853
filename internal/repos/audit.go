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

type AuditRepo interface {
	CreateExport(ctx context.Context, tx *gorm.DB, export *types.DataExport) (*types.DataExport, error)
	GetExportByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DataExport, error)
	ListExpiredExports(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.DataExport, error)
	DeleteExport(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CreateDeletion(ctx context.Context, tx *gorm.DB, deletion *types.DataDeletion) (*types.DataDeletion, error)
	ListDeletionsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.DataDeletion, error)
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return &auditRepo{
		db:  db,
		log: baseLog.With("repo", "AuditRepo"),
	}
}

func (r *auditRepo) CreateExport(ctx context.Context, tx *gorm.DB, export *types.DataExport) (*types.DataExport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(export).Error; err != nil {
		return nil, err
	}
	return export, nil
}

func (r *auditRepo) GetExportByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DataExport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var export types.DataExport
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&export).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &export, nil
}

func (r *auditRepo) ListExpiredExports(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.DataExport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DataExport
	q := transaction.WithContext(ctx).
		Where("expires_at < ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *auditRepo) DeleteExport(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.DataExport{}).Error
}

func (r *auditRepo) CreateDeletion(ctx context.Context, tx *gorm.DB, deletion *types.DataDeletion) (*types.DataDeletion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(deletion).Error; err != nil {
		return nil, err
	}
	return deletion, nil
}

func (r *auditRepo) ListDeletionsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.DataDeletion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DataDeletion
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
