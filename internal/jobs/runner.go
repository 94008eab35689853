package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/anonymize"
	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/policy"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

const processedBatch = 200

// Runner executes one anonymization job: select consenting users' trips in
// the window, bin them onto zones and time bins, suppress every group below
// the level's minimum size and persist the survivors. Output rows carry no
// user or trip identifiers, so a completed run cannot be reversed.
type Runner struct {
	db       *gorm.DB
	log      *logger.Logger
	jobs     repos.AnonymizationJobRepo
	trips    repos.TripRepo
	consents repos.ConsentRepo
	output   repos.AnonymizedTripRepo
	policy   policy.Policy
}

func NewRunner(db *gorm.DB, baseLog *logger.Logger, jobs repos.AnonymizationJobRepo, trips repos.TripRepo, consents repos.ConsentRepo, output repos.AnonymizedTripRepo, pol policy.Policy) *Runner {
	return &Runner{
		db:       db,
		log:      baseLog.With("component", "JobRunner"),
		jobs:     jobs,
		trips:    trips,
		consents: consents,
		output:   output,
		policy:   pol,
	}
}

func (r *Runner) Run(ctx context.Context, job *types.AnonymizationJob) error {
	lvl, err := r.policy.Level(job.Level)
	if err != nil {
		return err
	}
	params := anonymize.Params{
		ZoneCellDegrees: lvl.ZoneCellDegrees,
		BinMinutes:      job.TimeBinMinutes * lvl.BinMultiplier,
		AllowedZones:    allowedZones(job.AggregationZones),
	}

	userIDs, err := r.consentingUsers(ctx)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		r.log.Info("No users with data-sharing consent, emitting nothing", "job_id", job.ID)
		return r.complete(ctx, job, 0, 0)
	}

	trips, err := r.trips.ListInRange(ctx, r.db, job.StartDate, job.EndDate, userIDs)
	if err != nil {
		return err
	}

	candidates := make([]anonymize.Candidate, 0, len(trips))
	pending := int64(0)
	for _, trip := range trips {
		if c, ok := anonymize.FromTrip(trip, params); ok {
			candidates = append(candidates, c)
		}
		pending++
		// records_processed only ever grows, so progress reads stay
		// monotonic even if the run dies between batches.
		if pending == processedBatch {
			if err := r.jobs.AddProcessed(ctx, r.db, job.ID, pending); err != nil {
				return err
			}
			job.RecordsProcessed += pending
			pending = 0
		}
	}
	if pending > 0 {
		if err := r.jobs.AddProcessed(ctx, r.db, job.ID, pending); err != nil {
			return err
		}
		job.RecordsProcessed += pending
	}

	groups := anonymize.Group(candidates)
	kept, suppressedGroups, suppressedTrips := anonymize.Suppress(groups, lvl.MinGroupSize)
	if suppressedGroups > 0 {
		// Suppression is the privacy gate doing its job, not a failure.
		r.log.Info("Groups suppressed below minimum size",
			"job_id", job.ID,
			"min_group_size", lvl.MinGroupSize,
			"suppressed_groups", suppressedGroups,
			"suppressed_trips", suppressedTrips,
		)
	}

	emitted := int64(0)
	for key, members := range kept {
		if err := ctx.Err(); err != nil {
			// Already written groups stay: output rows are write-once and
			// individually safe to publish.
			return fmt.Errorf("interrupted after %d rows: %w", emitted, err)
		}
		rows := make([]*types.AnonymizedTrip, 0, len(members))
		for _, m := range members {
			rows = append(rows, &types.AnonymizedTrip{
				ID:              uuid.New(),
				JobID:           job.ID,
				OriginZone:      key.OriginZone,
				DestinationZone: key.DestinationZone,
				StartBin:        key.StartBin,
				EndBin:          key.EndBin,
				Mode:            key.Mode,
				Purpose:         key.Purpose,
				DurationSeconds: m.DurationSeconds,
				DistanceMeters:  m.DistanceMeters,
				CompanionCount:  m.CompanionCount,
				SensorSummary:   m.SensorSummary,
			})
		}
		if _, err := r.output.CreateBatch(ctx, r.db, rows); err != nil {
			return fmt.Errorf("persist group: %w", err)
		}
		emitted += int64(len(rows))
	}

	return r.complete(ctx, job, emitted, int64(suppressedGroups))
}

func (r *Runner) complete(ctx context.Context, job *types.AnonymizationJob, emitted, suppressedGroups int64) error {
	now := time.Now().UTC()
	err := r.jobs.UpdateFields(ctx, r.db, job.ID, map[string]interface{}{
		"status":            types.JobStatusCompleted,
		"emitted_rows":      emitted,
		"suppressed_groups": suppressedGroups,
		"completed_at":      now,
		"locked_at":         nil,
	})
	if err != nil {
		return err
	}
	job.Status = types.JobStatusCompleted
	job.EmittedRows = emitted
	job.SuppressedGroups = suppressedGroups
	job.CompletedAt = &now
	return nil
}

// consentingUsers returns the users whose most recent consent record grants
// data sharing. A later record withdrawing consent removes the user even if
// an older version granted it.
func (r *Runner) consentingUsers(ctx context.Context) ([]uuid.UUID, error) {
	latest, err := r.consents.ListLatest(ctx, r.db)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(latest))
	for _, record := range latest {
		if record.DataSharingConsent {
			out = append(out, record.UserID)
		}
	}
	return out, nil
}

func allowedZones(raw []byte) map[string]bool {
	if len(raw) == 0 {
		return nil
	}
	var zones []string
	if err := json.Unmarshal(raw, &zones); err != nil || len(zones) == 0 {
		return nil
	}
	out := make(map[string]bool, len(zones))
	for _, z := range zones {
		out[z] = true
	}
	return out
}
