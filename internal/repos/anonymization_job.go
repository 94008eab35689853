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

type AnonymizationJobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *types.AnonymizationJob) (*types.AnonymizationJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnonymizationJob, error)
	ListByRequester(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.AnonymizationJob, error)
	// ClaimNextRunnable atomically moves the oldest queued job to processing.
	// At most one caller wins a given job id.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB) (*types.AnonymizationJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	// AddProcessed bumps records_processed; the counter only ever grows.
	AddProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int64) error
	// FailStale marks processing jobs with an old heartbeat as failed.
	FailStale(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) (int64, error)
}

type anonymizationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnonymizationJobRepo(db *gorm.DB, baseLog *logger.Logger) AnonymizationJobRepo {
	return &anonymizationJobRepo{
		db:  db,
		log: baseLog.With("repo", "AnonymizationJobRepo"),
	}
}

func (r *anonymizationJobRepo) Create(ctx context.Context, tx *gorm.DB, job *types.AnonymizationJob) (*types.AnonymizationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *anonymizationJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnonymizationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.AnonymizationJob
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *anonymizationJobRepo) ListByRequester(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.AnonymizationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AnonymizationJob
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).
		Where("requested_by = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *anonymizationJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB) (*types.AnonymizationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// Conditional update rather than a row lock: the WHERE status='queued'
	// guard means a losing racer updates zero rows and moves on. Retried a
	// few times so one lost race does not stall the ticker a full period.
	for attempt := 0; attempt < 3; attempt++ {
		var job types.AnonymizationJob
		err := transaction.WithContext(ctx).
			Where("status = ?", types.JobStatusQueued).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		now := time.Now()
		res := transaction.WithContext(ctx).
			Model(&types.AnonymizationJob{}).
			Where("id = ? AND status = ?", job.ID, types.JobStatusQueued).
			Updates(map[string]interface{}{
				"status":       types.JobStatusProcessing,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"started_at":   now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		return r.GetByID(ctx, transaction, job.ID)
	}
	return nil, nil
}

func (r *anonymizationJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.AnonymizationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *anonymizationJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.AnonymizationJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusProcessing).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *anonymizationJobRepo) AddProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || delta <= 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.AnonymizationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"records_processed": gorm.Expr("records_processed + ?", delta),
			"updated_at":        time.Now(),
		}).Error
}

func (r *anonymizationJobRepo) FailStale(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	cutoff := time.Now().Add(-staleAfter)
	res := transaction.WithContext(ctx).
		Model(&types.AnonymizationJob{}).
		Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?", types.JobStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error_message": "worker lost: heartbeat expired",
			"completed_at":  time.Now(),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
