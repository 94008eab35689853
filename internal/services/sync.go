package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/keymutex"
	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

const syncConcurrency = 8

// SyncFailure is the per-item rejection reported back to the client.
type SyncFailure struct {
	TripID  uuid.UUID `json:"trip_id"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// SyncResult is the outcome of one batch. ServerTimestamp lets the client
// re-anchor its clock for the next offline window.
type SyncResult struct {
	Synced          []uuid.UUID   `json:"synced_trip_ids"`
	Failed          []SyncFailure `json:"failed_trips"`
	ServerTimestamp time.Time     `json:"server_timestamp"`
}

type SyncService interface {
	// SyncBatch verifies and reconciles a batch of offline-recorded trips.
	// Items are independent: each one either lands fully (trip row, chain
	// fold, reward credit, all in one transaction) or is rejected with a
	// code. Re-sending an already stored trip with an identical payload is
	// a success with no side effects; a different payload under the same
	// trip id is a SYNC_CONFLICT and the stored version wins.
	SyncBatch(ctx context.Context, userID uuid.UUID, deviceID string, items []TripSubmission) (*SyncResult, error)
}

type syncService struct {
	db        *gorm.DB
	log       *logger.Logger
	ingestion IngestionService
	trips     repos.TripRepo
	chains    ChainService
	rewards   RewardService
	locks     *keymutex.KeyMutex
	opTimeout time.Duration
}

func NewSyncService(db *gorm.DB, baseLog *logger.Logger, ingestion IngestionService, trips repos.TripRepo, chains ChainService, rewards RewardService, locks *keymutex.KeyMutex, opTimeout time.Duration) SyncService {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &syncService{
		db:        db,
		log:       baseLog.With("service", "SyncService"),
		ingestion: ingestion,
		trips:     trips,
		chains:    chains,
		rewards:   rewards,
		locks:     locks,
		opTimeout: opTimeout,
	}
}

func (s *syncService) SyncBatch(ctx context.Context, userID uuid.UUID, deviceID string, items []TripSubmission) (*SyncResult, error) {
	judgments, err := s.ingestion.VerifyBatch(ctx, nil, userID, deviceID, items)
	if err != nil {
		return nil, err
	}

	outcomes := make([]*ItemError, len(judgments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i := range judgments {
		if judgments[i].Err != nil {
			outcomes[i] = judgments[i].Err
			continue
		}
		i := i
		g.Go(func() error {
			outcomes[i] = s.reconcileOne(gctx, judgments[i].Trip)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SyncResult{
		Synced:          make([]uuid.UUID, 0, len(judgments)),
		Failed:          make([]SyncFailure, 0),
		ServerTimestamp: time.Now().UTC(),
	}
	for i, j := range judgments {
		if outcomes[i] == nil {
			result.Synced = append(result.Synced, j.TripID)
			continue
		}
		result.Failed = append(result.Failed, SyncFailure{
			TripID:  j.TripID,
			Code:    outcomes[i].Code,
			Message: outcomes[i].Message,
		})
	}
	s.log.Info("Sync batch reconciled",
		"user_id", userID,
		"submitted", len(items),
		"synced", len(result.Synced),
		"failed", len(result.Failed),
	)
	return result, nil
}

// reconcileOne lands a single verified trip. Duplicate trip ids within one
// batch and across concurrent batches serialize on the trip lock, so the
// second arrival always observes the first one's stored row.
func (s *syncService) reconcileOne(ctx context.Context, trip *types.Trip) *ItemError {
	var itemErr *ItemError
	err := s.locks.Do("trip:"+trip.ID.String(), func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
		return s.db.WithContext(opCtx).Transaction(func(tx *gorm.DB) error {
			existing, err := s.trips.GetByID(opCtx, tx, trip.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.UserID == trip.UserID && existing.PayloadHash == trip.PayloadHash {
					// Replay of an already reconciled trip.
					return nil
				}
				itemErr = NewItemError(CodeSyncConflict, "trip already stored with different content")
				return nil
			}
			trip.Synced = true
			if _, err := s.trips.Create(opCtx, tx, trip); err != nil {
				return err
			}
			if _, err := s.chains.FoldTrip(opCtx, tx, trip); err != nil {
				return err
			}
			if _, err := s.rewards.CreditTripCompletion(opCtx, tx, trip); err != nil {
				return err
			}
			return nil
		})
	})
	if err != nil {
		s.log.Error("Trip reconciliation failed", "trip_id", trip.ID, "error", err)
		return NewItemError(CodeServerError, "trip could not be stored")
	}
	return itemErr
}
