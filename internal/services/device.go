package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/sealing"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type DeviceService interface {
	// Register binds a device's sealing key to the user. Re-registering the
	// same device id rotates the key material.
	Register(ctx context.Context, userID uuid.UUID, deviceID, keyBase64 string) (*types.DeviceKey, error)
}

type deviceService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.DeviceKeyRepo
}

func NewDeviceService(db *gorm.DB, baseLog *logger.Logger, repo repos.DeviceKeyRepo) DeviceService {
	return &deviceService{
		db:   db,
		log:  baseLog.With("service", "DeviceService"),
		repo: repo,
	}
}

func (s *deviceService) Register(ctx context.Context, userID uuid.UUID, deviceID, keyBase64 string) (*types.DeviceKey, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device_id", pkgerrors.ErrInvalidArgument)
	}
	material, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: key_material is not valid base64", pkgerrors.ErrInvalidArgument)
	}
	if len(material) != sealing.KeySize {
		return nil, fmt.Errorf("%w: key_material must be %d bytes", pkgerrors.ErrInvalidArgument, sealing.KeySize)
	}
	var out *types.DeviceKey
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.GetByDeviceID(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		if existing != nil && existing.UserID != userID {
			return fmt.Errorf("%w: device already registered to another user", pkgerrors.ErrConflict)
		}
		key := &types.DeviceKey{
			ID:          uuid.New(),
			UserID:      userID,
			DeviceID:    deviceID,
			KeyMaterial: material,
		}
		if existing != nil {
			key.ID = existing.ID
		}
		out, err = s.repo.Upsert(ctx, tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Device key registered", "user_id", userID, "device_id", deviceID)
	return out, nil
}
