package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/services"
	"github.com/commutrace/tripsync-backend/internal/types"
)

func TestWorkerMarksErroredRunFailed(t *testing.T) {
	f := newRunnerFixture(t)
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	worker := NewWorker(f.db, log, f.jobs, f.runner, nil, services.NewJobNotifier(log, nil), 0)

	// Queue a job the runner cannot execute.
	queued, err := f.jobs.Create(context.Background(), nil, &types.AnonymizationJob{
		ID:             uuid.New(),
		RequestedBy:    uuid.New(),
		Status:         types.JobStatusQueued,
		StartDate:      time.Now().UTC().Add(-24 * time.Hour),
		EndDate:        time.Now().UTC(),
		Level:          "paranoid",
		TimeBinMinutes: 15,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	claimed, err := f.jobs.ClaimNextRunnable(context.Background(), nil)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	// Progress recorded before the error must survive the failover.
	if err := f.jobs.AddProcessed(context.Background(), nil, claimed.ID, 3); err != nil {
		t.Fatalf("AddProcessed: %v", err)
	}

	worker.runClaimed(context.Background(), claimed)

	stored, err := f.jobs.GetByID(context.Background(), nil, queued.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("status=%s, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatalf("failed job carries no error message")
	}
	if stored.RecordsProcessed != 3 {
		t.Fatalf("records_processed=%d, want 3 retained", stored.RecordsProcessed)
	}
	if stored.LockedAt != nil {
		t.Fatalf("failed job still holds its claim")
	}
	if stored.CompletedAt == nil {
		t.Fatalf("failed job missing completed_at")
	}
}
