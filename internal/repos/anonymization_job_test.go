package repos

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
	"github.com/commutrace/tripsync-backend/internal/types"
)

func newJobRepo(t *testing.T) (AnonymizationJobRepo, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.AnonymizationJob{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return NewAnonymizationJobRepo(db, log), db
}

func queueJob(t *testing.T, repo AnonymizationJobRepo) *types.AnonymizationJob {
	t.Helper()
	job, err := repo.Create(context.Background(), nil, &types.AnonymizationJob{
		ID:             uuid.New(),
		RequestedBy:    uuid.New(),
		Status:         types.JobStatusQueued,
		StartDate:      time.Now().UTC().Add(-48 * time.Hour),
		EndDate:        time.Now().UTC(),
		Level:          types.AnonLevelBasic,
		TimeBinMinutes: 15,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestClaimNextRunnableHasSingleWinner(t *testing.T) {
	repo, _ := newJobRepo(t)
	job := queueJob(t, repo)

	first, err := repo.ClaimNextRunnable(context.Background(), nil)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first == nil || first.ID != job.ID {
		t.Fatalf("first claim got %+v, want job %s", first, job.ID)
	}
	if first.Status != types.JobStatusProcessing || first.Attempts != 1 {
		t.Fatalf("claimed job status=%s attempts=%d, want processing/1", first.Status, first.Attempts)
	}
	// A second worker polling right after finds nothing.
	second, err := repo.ClaimNextRunnable(context.Background(), nil)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("second claim also won job %s", second.ID)
	}
}

func TestClaimNextRunnableOrdersByCreation(t *testing.T) {
	repo, _ := newJobRepo(t)
	older := queueJob(t, repo)
	queueJob(t, repo)

	claimed, err := repo.ClaimNextRunnable(context.Background(), nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != older.ID {
		t.Fatalf("claimed %v, want oldest job %s", claimed, older.ID)
	}
}

func TestHeartbeatOnlyWhileProcessing(t *testing.T) {
	repo, _ := newJobRepo(t)
	job := queueJob(t, repo)

	// Before the claim the guard matches nothing; heartbeat_at stays unset.
	if err := repo.Heartbeat(context.Background(), nil, job.ID); err != nil {
		t.Fatalf("heartbeat on queued job: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), nil, job.ID)
	if stored.HeartbeatAt != nil {
		t.Fatalf("heartbeat wrote to a queued job")
	}

	claimed, err := repo.ClaimNextRunnable(context.Background(), nil)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Heartbeat(context.Background(), nil, job.ID); err != nil {
		t.Fatalf("heartbeat while processing: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), nil, job.ID)
	if stored.HeartbeatAt == nil {
		t.Fatalf("heartbeat missing after claim")
	}
}

func TestFailStaleRecoversLostWorker(t *testing.T) {
	repo, db := newJobRepo(t)
	job := queueJob(t, repo)
	if _, err := repo.ClaimNextRunnable(context.Background(), nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Simulate a worker that died minutes ago.
	old := time.Now().UTC().Add(-10 * time.Minute)
	if err := db.Model(&types.AnonymizationJob{}).Where("id = ?", job.ID).
		Update("heartbeat_at", old).Error; err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	n, err := repo.FailStale(context.Background(), nil, 2*time.Minute)
	if err != nil {
		t.Fatalf("FailStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("failed over %d jobs, want 1", n)
	}
	stored, _ := repo.GetByID(context.Background(), nil, job.ID)
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("status=%s, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatalf("stale failover left no error message")
	}
}

func TestAddProcessedIsMonotonic(t *testing.T) {
	repo, _ := newJobRepo(t)
	job := queueJob(t, repo)

	for _, delta := range []int64{200, 200, 37} {
		if err := repo.AddProcessed(context.Background(), nil, job.ID, delta); err != nil {
			t.Fatalf("AddProcessed: %v", err)
		}
	}
	stored, _ := repo.GetByID(context.Background(), nil, job.ID)
	if stored.RecordsProcessed != 437 {
		t.Fatalf("records_processed=%d, want 437", stored.RecordsProcessed)
	}
}
