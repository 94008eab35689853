package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/policy"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

// JobRequest is an operator's anonymization run request.
type JobRequest struct {
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Level            string    `json:"anonymization_level"`
	AggregationZones []string  `json:"aggregation_zones,omitempty"`
	TimeBinMinutes   int       `json:"time_bin_minutes"`
}

type AnonymizationService interface {
	// Submit validates and enqueues a job. The run itself happens on the
	// background worker; the returned job is in status queued with a rough
	// completion estimate.
	Submit(ctx context.Context, requestedBy uuid.UUID, req JobRequest) (*types.AnonymizationJob, time.Time, error)
	GetForRequester(ctx context.Context, requestedBy, jobID uuid.UUID) (*types.AnonymizationJob, error)
	List(ctx context.Context, requestedBy uuid.UUID, limit int) ([]*types.AnonymizationJob, error)
}

type anonymizationService struct {
	db       *gorm.DB
	log      *logger.Logger
	jobs     repos.AnonymizationJobRepo
	policy   policy.Policy
	notifier JobNotifier
}

func NewAnonymizationService(db *gorm.DB, baseLog *logger.Logger, jobs repos.AnonymizationJobRepo, pol policy.Policy, notifier JobNotifier) AnonymizationService {
	return &anonymizationService{
		db:       db,
		log:      baseLog.With("service", "AnonymizationService"),
		jobs:     jobs,
		policy:   pol,
		notifier: notifier,
	}
}

func (s *anonymizationService) Submit(ctx context.Context, requestedBy uuid.UUID, req JobRequest) (*types.AnonymizationJob, time.Time, error) {
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, time.Time{}, fmt.Errorf("%w: missing start_date or end_date", pkgerrors.ErrInvalidArgument)
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, time.Time{}, fmt.Errorf("%w: end_date must be after start_date", pkgerrors.ErrInvalidArgument)
	}
	if _, err := s.policy.Level(req.Level); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidArgument, err)
	}
	if req.TimeBinMinutes <= 0 {
		return nil, time.Time{}, fmt.Errorf("%w: time_bin_minutes must be positive", pkgerrors.ErrInvalidArgument)
	}

	var zones datatypes.JSON
	if len(req.AggregationZones) > 0 {
		raw, err := json.Marshal(req.AggregationZones)
		if err != nil {
			return nil, time.Time{}, err
		}
		zones = datatypes.JSON(raw)
	}
	job := &types.AnonymizationJob{
		ID:               uuid.New(),
		RequestedBy:      requestedBy,
		Status:           types.JobStatusQueued,
		StartDate:        req.StartDate.UTC(),
		EndDate:          req.EndDate.UTC(),
		Level:            req.Level,
		AggregationZones: zones,
		TimeBinMinutes:   req.TimeBinMinutes,
	}
	created, err := s.jobs.Create(ctx, nil, job)
	if err != nil {
		return nil, time.Time{}, err
	}
	s.notifier.JobQueued(requestedBy, created)
	s.log.Info("Anonymization job queued",
		"job_id", created.ID,
		"level", created.Level,
		"window_days", int(created.EndDate.Sub(created.StartDate).Hours()/24),
	)
	// Rough estimate: one day of window per second of processing, floor one
	// minute. Good enough for client polling intervals.
	estimate := time.Duration(created.EndDate.Sub(created.StartDate).Hours()/24) * time.Second
	if estimate < time.Minute {
		estimate = time.Minute
	}
	return created, time.Now().UTC().Add(estimate), nil
}

func (s *anonymizationService) GetForRequester(ctx context.Context, requestedBy, jobID uuid.UUID) (*types.AnonymizationJob, error) {
	job, err := s.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.RequestedBy != requestedBy {
		return nil, pkgerrors.ErrNotFound
	}
	return job, nil
}

func (s *anonymizationService) List(ctx context.Context, requestedBy uuid.UUID, limit int) ([]*types.AnonymizationJob, error) {
	return s.jobs.ListByRequester(ctx, nil, requestedBy, limit)
}
