package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/types"
)

const jobEventsChannel = "tripsync:anonymization:events"

// JobNotifier publishes anonymization job lifecycle events so operator
// dashboards can follow runs without polling. Best-effort: a publish failure
// never fails the job.
type JobNotifier interface {
	JobQueued(requestedBy uuid.UUID, job *types.AnonymizationJob)
	JobStarted(job *types.AnonymizationJob)
	JobCompleted(job *types.AnonymizationJob)
	JobFailed(job *types.AnonymizationJob, errorMessage string)
}

type jobNotifier struct {
	log    *logger.Logger
	client *redis.Client
}

// NewJobNotifier wires the redis publisher. A nil client yields a no-op
// notifier, which keeps single-node deployments redis-free.
func NewJobNotifier(baseLog *logger.Logger, client *redis.Client) JobNotifier {
	return &jobNotifier{
		log:    baseLog.With("service", "JobNotifier"),
		client: client,
	}
}

type jobEvent struct {
	Event       string     `json:"event"`
	JobID       uuid.UUID  `json:"job_id"`
	RequestedBy *uuid.UUID `json:"requested_by,omitempty"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	At          time.Time  `json:"at"`
}

func (n *jobNotifier) publish(ev jobEvent) {
	if n.client == nil {
		return
	}
	ev.At = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.client.Publish(ctx, jobEventsChannel, payload).Err(); err != nil {
		n.log.Warn("Failed to publish job event", "event", ev.Event, "job_id", ev.JobID, "error", err)
	}
}

func (n *jobNotifier) JobQueued(requestedBy uuid.UUID, job *types.AnonymizationJob) {
	n.publish(jobEvent{Event: "job_queued", JobID: job.ID, RequestedBy: &requestedBy, Status: job.Status})
}

func (n *jobNotifier) JobStarted(job *types.AnonymizationJob) {
	n.publish(jobEvent{Event: "job_started", JobID: job.ID, Status: job.Status})
}

func (n *jobNotifier) JobCompleted(job *types.AnonymizationJob) {
	n.publish(jobEvent{Event: "job_completed", JobID: job.ID, Status: job.Status})
}

func (n *jobNotifier) JobFailed(job *types.AnonymizationJob, errorMessage string) {
	n.publish(jobEvent{Event: "job_failed", JobID: job.ID, Status: job.Status, Error: errorMessage})
}
