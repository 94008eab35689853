package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/keymutex"
	"github.com/commutrace/tripsync-backend/internal/logger"
	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/sealing"
	"github.com/commutrace/tripsync-backend/internal/types"
)

// ExportRequest selects what goes into a personal data archive.
type ExportRequest struct {
	Format           string     `json:"format"`
	IncludeSensitive bool       `json:"include_sensitive"`
	RangeStart       *time.Time `json:"range_start,omitempty"`
	RangeEnd         *time.Time `json:"range_end,omitempty"`
}

// DeleteRequest scopes a deletion. Token must come from DeletionToken; the
// two-step flow keeps a single stray POST from wiping a user's history.
type DeleteRequest struct {
	ConfirmationToken string     `json:"confirmation_token"`
	DeleteAll         bool       `json:"delete_all"`
	RangeStart        *time.Time `json:"range_start,omitempty"`
	RangeEnd          *time.Time `json:"range_end,omitempty"`
}

// exportDocument is the archive layout written to object storage.
type exportDocument struct {
	UserID       uuid.UUID                  `json:"user_id"`
	GeneratedAt  time.Time                  `json:"generated_at"`
	Trips        []*types.Trip              `json:"trips"`
	Chains       []*types.TripChain         `json:"trip_chains"`
	Balance      *types.RewardPoints        `json:"reward_balance,omitempty"`
	Transactions []*types.RewardTransaction `json:"reward_transactions"`
	Consents     []*types.ConsentRecord     `json:"consent_records"`
}

type PrivacyService interface {
	// Export gathers the user's data into a JSON archive in object storage
	// and returns the audit row carrying a time-limited download url.
	Export(ctx context.Context, userID uuid.UUID, req ExportRequest) (*types.DataExport, error)
	// DeletionToken issues the confirmation token Delete requires.
	DeletionToken(userID uuid.UUID) string
	// Delete removes the selected trips, nulls their ledger references and
	// rebuilds or removes affected chains, in one transaction, recording an
	// audit row with the exact ids removed. Balances are never touched.
	Delete(ctx context.Context, userID uuid.UUID, req DeleteRequest) (*types.DataDeletion, error)
	// PurgeExpiredExports removes expired archives and their audit rows.
	PurgeExpiredExports(ctx context.Context, limit int) (int, error)
}

type privacyService struct {
	db        *gorm.DB
	log       *logger.Logger
	trips     repos.TripRepo
	chains    ChainService
	chainRepo repos.TripChainRepo
	rewards   repos.RewardRepo
	consents  repos.ConsentRepo
	audits    repos.AuditRepo
	bucket    BucketService
	locks     *keymutex.KeyMutex
	secret    []byte
	exportTTL time.Duration
}

func NewPrivacyService(
	db *gorm.DB,
	baseLog *logger.Logger,
	trips repos.TripRepo,
	chains ChainService,
	chainRepo repos.TripChainRepo,
	rewards repos.RewardRepo,
	consents repos.ConsentRepo,
	audits repos.AuditRepo,
	bucket BucketService,
	locks *keymutex.KeyMutex,
	secret []byte,
	exportTTL time.Duration,
) PrivacyService {
	if exportTTL <= 0 {
		exportTTL = 24 * time.Hour
	}
	return &privacyService{
		db:        db,
		log:       baseLog.With("service", "PrivacyService"),
		trips:     trips,
		chains:    chains,
		chainRepo: chainRepo,
		rewards:   rewards,
		consents:  consents,
		audits:    audits,
		bucket:    bucket,
		locks:     locks,
		secret:    secret,
		exportTTL: exportTTL,
	}
}

func (s *privacyService) Export(ctx context.Context, userID uuid.UUID, req ExportRequest) (*types.DataExport, error) {
	if req.Format == "" {
		req.Format = "json"
	}
	if req.Format != "json" {
		return nil, fmt.Errorf("%w: unsupported export format %q", pkgerrors.ErrInvalidArgument, req.Format)
	}
	if !s.bucket.Enabled() {
		return nil, fmt.Errorf("data export is not available: object storage is not configured")
	}

	from := time.Time{}
	to := time.Now().UTC().Add(time.Hour)
	if req.RangeStart != nil {
		from = req.RangeStart.UTC()
	}
	if req.RangeEnd != nil {
		to = req.RangeEnd.UTC()
	}

	doc := exportDocument{UserID: userID, GeneratedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trips, err := s.trips.ListByUserInRange(ctx, tx, userID, from, to)
		if err != nil {
			return err
		}
		for _, trip := range trips {
			if !req.IncludeSensitive {
				trip.Notes = ""
				trip.SensorSummary = nil
			}
			doc.Trips = append(doc.Trips, trip)
		}
		if doc.Chains, err = s.chainRepo.ListByUser(ctx, tx, userID); err != nil {
			return err
		}
		if doc.Balance, err = s.rewards.GetPoints(ctx, tx, userID); err != nil {
			return err
		}
		if doc.Transactions, err = s.rewards.ListTransactions(ctx, tx, userID, 0); err != nil {
			return err
		}
		doc.Consents, err = s.consents.ListByUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	exportID := uuid.New()
	key := fmt.Sprintf("exports/%s/%s.json", userID, exportID)
	size, err := s.bucket.UploadFile(ctx, key, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	url, err := s.bucket.SignedURL(key, s.exportTTL)
	if err != nil {
		_ = s.bucket.DeleteFile(ctx, key)
		return nil, err
	}

	export := &types.DataExport{
		ID:               exportID,
		UserID:           userID,
		Format:           req.Format,
		IncludeSensitive: req.IncludeSensitive,
		RangeStart:       req.RangeStart,
		RangeEnd:         req.RangeEnd,
		BucketKey:        key,
		DownloadURL:      url,
		FileSize:         size,
		ExpiresAt:        time.Now().UTC().Add(s.exportTTL),
	}
	if _, err := s.audits.CreateExport(ctx, nil, export); err != nil {
		_ = s.bucket.DeleteFile(ctx, key)
		return nil, err
	}
	s.log.Info("Data export created", "user_id", userID, "export_id", exportID, "trips", len(doc.Trips), "bytes", size)
	return export, nil
}

func (s *privacyService) DeletionToken(userID uuid.UUID) string {
	return sealing.Sign(s.secret, []byte(userID.String()+":delete"))
}

func (s *privacyService) Delete(ctx context.Context, userID uuid.UUID, req DeleteRequest) (*types.DataDeletion, error) {
	if req.ConfirmationToken != s.DeletionToken(userID) {
		return nil, fmt.Errorf("%w: invalid confirmation token", pkgerrors.ErrForbidden)
	}
	if !req.DeleteAll && req.RangeStart == nil && req.RangeEnd == nil {
		return nil, fmt.Errorf("%w: either delete_all or a date range is required", pkgerrors.ErrInvalidArgument)
	}
	var from, to *time.Time
	if !req.DeleteAll {
		from, to = req.RangeStart, req.RangeEnd
	}

	var deletion *types.DataDeletion
	// Serialized against the user's redemptions so the ledger reference
	// nulling and any concurrent balance math never interleave.
	err := s.locks.Do("ledger:"+userID.String(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ids, err := s.trips.ListIDsByUser(ctx, tx, userID, from, to)
			if err != nil {
				return err
			}
			affected, err := s.affectedChains(ctx, tx, userID, ids)
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				// Earned history stays; only the trip reference is cut.
				if err := s.rewards.NullTripRefs(ctx, tx, ids); err != nil {
					return err
				}
				if err := s.trips.DeleteByIDs(ctx, tx, userID, ids); err != nil {
					return err
				}
			}
			for _, chainID := range affected {
				if err := s.chains.Recompute(ctx, tx, chainID); err != nil {
					return err
				}
			}
			rawIDs, err := json.Marshal(ids)
			if err != nil {
				return err
			}
			deletion = &types.DataDeletion{
				ID:         uuid.New(),
				UserID:     userID,
				DeleteAll:  req.DeleteAll,
				RangeStart: req.RangeStart,
				RangeEnd:   req.RangeEnd,
				TripIDs:    datatypes.JSON(rawIDs),
				TripCount:  len(ids),
			}
			deletion, err = s.audits.CreateDeletion(ctx, tx, deletion)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Trips deleted", "user_id", userID, "count", deletion.TripCount, "delete_all", req.DeleteAll)
	return deletion, nil
}

// affectedChains collects the distinct chain ids of the trips about to be
// removed, so their aggregates can be rebuilt afterwards.
func (s *privacyService) affectedChains(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tripIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(tripIDs) == 0 {
		return nil, nil
	}
	doomed := make(map[uuid.UUID]struct{}, len(tripIDs))
	for _, id := range tripIDs {
		doomed[id] = struct{}{}
	}
	chains, err := s.chainRepo.ListByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0)
	for _, chain := range chains {
		members, err := s.trips.ListByChain(ctx, tx, chain.ID)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			if _, ok := doomed[member.ID]; ok {
				out = append(out, chain.ID)
				break
			}
		}
	}
	return out, nil
}

func (s *privacyService) PurgeExpiredExports(ctx context.Context, limit int) (int, error) {
	expired, err := s.audits.ListExpiredExports(ctx, nil, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, export := range expired {
		if err := s.bucket.DeleteFile(ctx, export.BucketKey); err != nil {
			s.log.Warn("Failed to delete expired export object", "export_id", export.ID, "error", err)
			continue
		}
		if err := s.audits.DeleteExport(ctx, nil, export.ID); err != nil {
			s.log.Warn("Failed to delete expired export row", "export_id", export.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}
