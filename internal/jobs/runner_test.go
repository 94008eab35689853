package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/policy"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

type runnerFixture struct {
	db       *gorm.DB
	users    repos.UserRepo
	trips    repos.TripRepo
	consents repos.ConsentRepo
	jobs     repos.AnonymizationJobRepo
	output   repos.AnonymizedTripRepo
	runner   *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.User{},
		&types.Trip{},
		&types.ConsentRecord{},
		&types.AnonymizationJob{},
		&types.AnonymizedTrip{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	f := &runnerFixture{
		db:       db,
		users:    repos.NewUserRepo(db, log),
		trips:    repos.NewTripRepo(db, log),
		consents: repos.NewConsentRepo(db, log),
		jobs:     repos.NewAnonymizationJobRepo(db, log),
		output:   repos.NewAnonymizedTripRepo(db, log),
	}
	f.runner = NewRunner(db, log, f.jobs, f.trips, f.consents, f.output, policy.Default())
	return f
}

func (f *runnerFixture) addUser(t *testing.T, sharing bool) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	if _, err := f.users.Create(context.Background(), nil, &types.User{ID: userID, Pseudonym: "u-" + userID.String()[:8]}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := f.consents.Create(context.Background(), nil, &types.ConsentRecord{
		ID:                 uuid.New(),
		UserID:             userID,
		ConsentVersion:     "v1",
		DataSharingConsent: sharing,
		ConsentedAt:        time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create consent: %v", err)
	}
	return userID
}

func (f *runnerFixture) addTrip(t *testing.T, userID uuid.UUID, start time.Time, private bool) uuid.UUID {
	t.Helper()
	trip := &types.Trip{
		ID:              uuid.New(),
		UserID:          userID,
		TripNumber:      1,
		ChainID:         uuid.New(),
		OriginLat:       52.5205,
		OriginLon:       13.4005,
		DestinationLat:  52.5305,
		DestinationLon:  13.4205,
		StartTime:       start,
		EndTime:         start.Add(10 * time.Minute),
		DurationSeconds: 600,
		DistanceMeters:  2500,
		DetectedMode:    types.ModeBicycle,
		ModeConfidence:  0.9,
		TripPurpose:     "work",
		Synced:          true,
		IsPrivate:       private,
		PayloadHash:     "h-" + uuid.NewString(),
	}
	if _, err := f.trips.Create(context.Background(), nil, trip); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return trip.ID
}

func (f *runnerFixture) addJob(t *testing.T, level string, window time.Time) *types.AnonymizationJob {
	t.Helper()
	job := &types.AnonymizationJob{
		ID:             uuid.New(),
		RequestedBy:    uuid.New(),
		Status:         types.JobStatusProcessing,
		StartDate:      window.Add(-24 * time.Hour),
		EndDate:        window.Add(24 * time.Hour),
		Level:          level,
		TimeBinMinutes: 15,
	}
	created, err := f.jobs.Create(context.Background(), nil, job)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return created
}

func TestRunnerSuppressesSmallGroupsAndCompletes(t *testing.T) {
	f := newRunnerFixture(t)
	start := time.Date(2026, 5, 10, 8, 2, 0, 0, time.UTC)

	// Five identical commutes form a publishable group.
	for i := 0; i < 5; i++ {
		f.addTrip(t, f.addUser(t, true), start, false)
	}
	// One commute hours later lands in its own bin and must be suppressed.
	loner := f.addUser(t, true)
	f.addTrip(t, loner, start.Add(6*time.Hour), false)

	job := f.addJob(t, types.AnonLevelBasic, start)
	if err := f.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, _ := f.jobs.GetByID(context.Background(), nil, job.ID)
	if stored.Status != types.JobStatusCompleted {
		t.Fatalf("status=%s, want completed", stored.Status)
	}
	if stored.RecordsProcessed != 6 {
		t.Fatalf("records_processed=%d, want 6", stored.RecordsProcessed)
	}
	if stored.EmittedRows != 5 || stored.SuppressedGroups != 1 {
		t.Fatalf("emitted=%d suppressed=%d, want 5/1", stored.EmittedRows, stored.SuppressedGroups)
	}
	rows, err := f.output.ListByJob(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("output rows=%d, want 5", len(rows))
	}
	for _, row := range rows {
		if row.OriginZone == "" || row.StartBin.IsZero() {
			t.Fatalf("output row missing binning: %+v", row)
		}
	}
}

func TestRunnerIgnoresUsersWithoutSharingConsent(t *testing.T) {
	f := newRunnerFixture(t)
	start := time.Date(2026, 5, 10, 8, 2, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		f.addTrip(t, f.addUser(t, false), start, false)
	}

	job := f.addJob(t, types.AnonLevelBasic, start)
	if err := f.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, _ := f.jobs.GetByID(context.Background(), nil, job.ID)
	if stored.RecordsProcessed != 0 || stored.EmittedRows != 0 {
		t.Fatalf("non-consenting trips were processed: %+v", stored)
	}
	if stored.Status != types.JobStatusCompleted {
		t.Fatalf("status=%s, want completed", stored.Status)
	}
}

func TestRunnerHonorsConsentWithdrawal(t *testing.T) {
	f := newRunnerFixture(t)
	start := time.Date(2026, 5, 10, 8, 2, 0, 0, time.UTC)

	// Five users granted sharing; one of them later withdrew it.
	var users []uuid.UUID
	for i := 0; i < 5; i++ {
		userID := f.addUser(t, true)
		users = append(users, userID)
		f.addTrip(t, userID, start, false)
	}
	_, err := f.consents.Create(context.Background(), nil, &types.ConsentRecord{
		ID:                 uuid.New(),
		UserID:             users[0],
		ConsentVersion:     "v2",
		DataSharingConsent: false,
		ConsentedAt:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("withdraw consent: %v", err)
	}

	job := f.addJob(t, types.AnonLevelBasic, start)
	if err := f.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, _ := f.jobs.GetByID(context.Background(), nil, job.ID)
	// Only four contributors remain, below basic's threshold of five.
	if stored.RecordsProcessed != 4 {
		t.Fatalf("records_processed=%d, want 4", stored.RecordsProcessed)
	}
	if stored.EmittedRows != 0 || stored.SuppressedGroups != 1 {
		t.Fatalf("emitted=%d suppressed=%d, want 0/1", stored.EmittedRows, stored.SuppressedGroups)
	}
}

func TestRunnerSkipsPrivateTrips(t *testing.T) {
	f := newRunnerFixture(t)
	start := time.Date(2026, 5, 10, 8, 2, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		f.addTrip(t, f.addUser(t, true), start, false)
	}
	f.addTrip(t, f.addUser(t, true), start, true)

	job := f.addJob(t, types.AnonLevelBasic, start)
	if err := f.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, _ := f.jobs.GetByID(context.Background(), nil, job.ID)
	if stored.RecordsProcessed != 5 {
		t.Fatalf("private trip was processed: records=%d", stored.RecordsProcessed)
	}
}

func TestRunnerUnknownLevelErrors(t *testing.T) {
	f := newRunnerFixture(t)
	start := time.Date(2026, 5, 10, 8, 2, 0, 0, time.UTC)
	f.addTrip(t, f.addUser(t, true), start, false)

	job := f.addJob(t, "paranoid", start)
	if err := f.runner.Run(context.Background(), job); err == nil {
		t.Fatalf("unknown level did not error")
	}
}

func TestRunnerOutputCarriesNoIdentifiers(t *testing.T) {
	f := newRunnerFixture(t)
	start := time.Date(2026, 5, 10, 8, 2, 0, 0, time.UTC)
	var tripIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		tripIDs = append(tripIDs, f.addTrip(t, f.addUser(t, true), start, false))
	}

	job := f.addJob(t, types.AnonLevelMaximum, start)
	// Five contributors is below maximum's threshold of twenty.
	if err := f.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, _ := f.jobs.GetByID(context.Background(), nil, job.ID)
	if stored.EmittedRows != 0 {
		t.Fatalf("maximum level emitted a small group: %d rows", stored.EmittedRows)
	}

	// At basic level the group is published, but never with raw ids.
	job2 := f.addJob(t, types.AnonLevelBasic, start)
	if err := f.runner.Run(context.Background(), job2); err != nil {
		t.Fatalf("Run basic: %v", err)
	}
	rows, _ := f.output.ListByJob(context.Background(), nil, job2.ID)
	known := map[uuid.UUID]bool{}
	for _, id := range tripIDs {
		known[id] = true
	}
	for _, row := range rows {
		if known[row.ID] {
			t.Fatalf("output row reuses a trip id")
		}
	}
}
