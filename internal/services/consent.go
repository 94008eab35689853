package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type ConsentService interface {
	// Record stores the user's choices for one consent version. Versions are
	// write-once: re-recording identical choices is an idempotent success,
	// different choices for an already recorded version are rejected. A new
	// decision needs a new version string.
	Record(ctx context.Context, userID uuid.UUID, version string, dataSharing, analytics bool) (*types.ConsentRecord, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.ConsentRecord, error)
	Latest(ctx context.Context, userID uuid.UUID) (*types.ConsentRecord, error)
}

type consentService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ConsentRepo
}

func NewConsentService(db *gorm.DB, baseLog *logger.Logger, repo repos.ConsentRepo) ConsentService {
	return &consentService{
		db:   db,
		log:  baseLog.With("service", "ConsentService"),
		repo: repo,
	}
}

func (s *consentService) Record(ctx context.Context, userID uuid.UUID, version string, dataSharing, analytics bool) (*types.ConsentRecord, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: missing consent_version", pkgerrors.ErrInvalidArgument)
	}
	var out *types.ConsentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.Get(ctx, tx, userID, version)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.DataSharingConsent == dataSharing && existing.AnalyticsConsent == analytics {
				out = existing
				return nil
			}
			return fmt.Errorf("%w: consent version %s already recorded with different choices", pkgerrors.ErrConflict, version)
		}
		record := &types.ConsentRecord{
			ID:                 uuid.New(),
			UserID:             userID,
			ConsentVersion:     version,
			DataSharingConsent: dataSharing,
			AnalyticsConsent:   analytics,
			ConsentedAt:        time.Now().UTC(),
		}
		out, err = s.repo.Create(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *consentService) List(ctx context.Context, userID uuid.UUID) ([]*types.ConsentRecord, error) {
	return s.repo.ListByUser(ctx, nil, userID)
}

func (s *consentService) Latest(ctx context.Context, userID uuid.UUID) (*types.ConsentRecord, error) {
	records, err := s.repo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	var latest *types.ConsentRecord
	for _, r := range records {
		if latest == nil || r.ConsentedAt.After(latest.ConsentedAt) {
			latest = r
		}
	}
	return latest, nil
}
