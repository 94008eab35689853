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

// TripCorrection carries the user-editable fields of a stored trip. Nil
// means "leave unchanged". Sensor-derived fields are not correctable.
type TripCorrection struct {
	UserConfirmedMode *string `json:"user_confirmed_mode,omitempty"`
	TripPurpose       *string `json:"trip_purpose,omitempty"`
	Notes             *string `json:"notes,omitempty"`
	IsPrivate         *bool   `json:"is_private,omitempty"`
}

type TripService interface {
	Correct(ctx context.Context, userID, tripID uuid.UUID, correction TripCorrection) (*types.Trip, error)
	List(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*types.Trip, error)
	Get(ctx context.Context, userID, tripID uuid.UUID) (*types.Trip, error)
}

type tripService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.TripRepo
}

func NewTripService(db *gorm.DB, baseLog *logger.Logger, repo repos.TripRepo) TripService {
	return &tripService{
		db:   db,
		log:  baseLog.With("service", "TripService"),
		repo: repo,
	}
}

func (s *tripService) Correct(ctx context.Context, userID, tripID uuid.UUID, correction TripCorrection) (*types.Trip, error) {
	updates := map[string]interface{}{}
	if correction.UserConfirmedMode != nil {
		updates["user_confirmed_mode"] = *correction.UserConfirmedMode
	}
	if correction.TripPurpose != nil {
		updates["trip_purpose"] = *correction.TripPurpose
	}
	if correction.Notes != nil {
		updates["notes"] = *correction.Notes
	}
	if correction.IsPrivate != nil {
		updates["is_private"] = *correction.IsPrivate
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no correctable fields supplied", pkgerrors.ErrInvalidArgument)
	}
	var out *types.Trip
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trip, err := s.repo.GetByID(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return pkgerrors.ErrNotFound
		}
		if trip.UserID != userID {
			return pkgerrors.ErrForbidden
		}
		if err := s.repo.UpdateCorrections(ctx, tx, tripID, updates); err != nil {
			return err
		}
		out, err = s.repo.GetByID(ctx, tx, tripID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *tripService) List(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*types.Trip, error) {
	return s.repo.ListByUserInRange(ctx, nil, userID, from, to)
}

func (s *tripService) Get(ctx context.Context, userID, tripID uuid.UUID) (*types.Trip, error) {
	trip, err := s.repo.GetByID(ctx, nil, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, pkgerrors.ErrNotFound
	}
	if trip.UserID != userID {
		return nil, pkgerrors.ErrForbidden
	}
	return trip, nil
}
