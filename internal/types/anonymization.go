package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Anonymization job statuses.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Anonymization levels, coarsest last.
const (
	AnonLevelBasic    = "basic"
	AnonLevelEnhanced = "enhanced"
	AnonLevelMaximum  = "maximum"
)

// AnonymizationJob is one run of the anonymization pipeline.
// records_processed counts every input trip the run consumed, suppressed or
// emitted, and only ever grows until the job reaches a terminal status.
type AnonymizationJob struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RequestedBy      uuid.UUID      `gorm:"type:uuid;not null;index;column:requested_by" json:"requested_by"`
	Status           string         `gorm:"not null;index;column:status" json:"status"`
	StartDate        time.Time      `gorm:"not null;column:start_date" json:"start_date"`
	EndDate          time.Time      `gorm:"not null;column:end_date" json:"end_date"`
	Level            string         `gorm:"not null;column:level" json:"anonymization_level"`
	AggregationZones datatypes.JSON `gorm:"type:jsonb;column:aggregation_zones" json:"aggregation_zones,omitempty"`
	TimeBinMinutes   int            `gorm:"not null;column:time_bin_minutes" json:"time_bin_minutes"`
	RecordsProcessed int64          `gorm:"not null;default:0;column:records_processed" json:"records_processed"`
	EmittedRows      int64          `gorm:"not null;default:0;column:emitted_rows" json:"emitted_rows"`
	SuppressedGroups int64          `gorm:"not null;default:0;column:suppressed_groups" json:"suppressed_groups"`
	ErrorMessage     string         `gorm:"column:error_message" json:"error_message,omitempty"`
	Attempts         int            `gorm:"not null;default:0;column:attempts" json:"-"`
	LockedAt         *time.Time     `gorm:"column:locked_at" json:"-"`
	HeartbeatAt      *time.Time     `gorm:"column:heartbeat_at" json:"-"`
	StartedAt        *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (AnonymizationJob) TableName() string { return "anonymization_job" }

func (j *AnonymizationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// AnonymizedTrip is the irreversible research-export row. It deliberately
// carries no user id, no trip id and no raw coordinates or timestamps, only
// zone ids and bin boundaries. Write-once.
type AnonymizedTrip struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	OriginZone      string         `gorm:"not null;index;column:origin_zone" json:"origin_zone"`
	DestinationZone string         `gorm:"not null;column:destination_zone" json:"destination_zone"`
	StartBin        time.Time      `gorm:"not null;column:start_bin" json:"start_bin"`
	EndBin          time.Time      `gorm:"not null;column:end_bin" json:"end_bin"`
	Mode            string         `gorm:"not null;column:mode" json:"mode"`
	Purpose         string         `gorm:"column:purpose" json:"purpose"`
	DurationSeconds int64          `gorm:"not null;column:duration_seconds" json:"duration_seconds"`
	DistanceMeters  float64        `gorm:"not null;column:distance_meters" json:"distance_meters"`
	CompanionCount  int            `gorm:"not null;default:0;column:companion_count" json:"companion_count"`
	SensorSummary   datatypes.JSON `gorm:"type:jsonb;column:sensor_summary" json:"sensor_summary,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
}

func (AnonymizedTrip) TableName() string { return "anonymized_trip" }
