package types

import (
	"time"

	"github.com/google/uuid"
)

// TripChain is the rolling aggregate over all trips sharing a chain id for
// one user. It is recomputed by folding in each newly accepted trip; the
// Version column guards the fold against concurrent members.
type TripChain struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User                 *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	StartTime            time.Time `gorm:"not null;column:start_time" json:"start_time"`
	EndTime              time.Time `gorm:"not null;column:end_time" json:"end_time"`
	TotalDistanceMeters  float64   `gorm:"not null;column:total_distance_meters" json:"total_distance_meters"`
	TotalDurationSeconds int64     `gorm:"not null;column:total_duration_seconds" json:"total_duration_seconds"`
	TripCount            int       `gorm:"not null;default:0;column:trip_count" json:"trip_count"`
	Version              int64     `gorm:"not null;default:0;column:version" json:"-"`
	CreatedAt            time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null" json:"updated_at"`
}

func (TripChain) TableName() string { return "trip_chain" }
