package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type DeviceKeyRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, key *types.DeviceKey) (*types.DeviceKey, error)
	GetByDeviceID(ctx context.Context, tx *gorm.DB, deviceID string) (*types.DeviceKey, error)
}

type deviceKeyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeviceKeyRepo(db *gorm.DB, baseLog *logger.Logger) DeviceKeyRepo {
	return &deviceKeyRepo{
		db:  db,
		log: baseLog.With("repo", "DeviceKeyRepo"),
	}
}

func (r *deviceKeyRepo) Upsert(ctx context.Context, tx *gorm.DB, key *types.DeviceKey) (*types.DeviceKey, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	key.UpdatedAt = time.Now()
	err := transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"key_material", "updated_at"}),
	}).Create(key).Error
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (r *deviceKeyRepo) GetByDeviceID(ctx context.Context, tx *gorm.DB, deviceID string) (*types.DeviceKey, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if deviceID == "" {
		return nil, nil
	}
	var key types.DeviceKey
	err := transaction.WithContext(ctx).Where("device_id = ?", deviceID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}
