package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Travel modes the on-device detector emits.
const (
	ModeWalk    = "walk"
	ModeBicycle = "bicycle"
	ModeCar     = "car"
	ModeTransit = "transit"
	ModeOther   = "other"
)

// Trip is a single recorded journey. The row is created on-device and
// immutable once synced, except for the explicit correction fields
// (travel mode, purpose, notes, privacy flag).
type Trip struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	TripNumber        int            `gorm:"not null;column:trip_number" json:"trip_number"`
	ChainID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"chain_id"`
	OriginLat         float64        `gorm:"not null;column:origin_lat" json:"origin_lat"`
	OriginLon         float64        `gorm:"not null;column:origin_lon" json:"origin_lon"`
	OriginName        string         `gorm:"column:origin_name" json:"origin_name"`
	DestinationLat    float64        `gorm:"not null;column:destination_lat" json:"destination_lat"`
	DestinationLon    float64        `gorm:"not null;column:destination_lon" json:"destination_lon"`
	DestinationName   string         `gorm:"column:destination_name" json:"destination_name"`
	StartTime         time.Time      `gorm:"not null;index;column:start_time" json:"start_time"`
	EndTime           time.Time      `gorm:"not null;column:end_time" json:"end_time"`
	DurationSeconds   int64          `gorm:"not null;column:duration_seconds" json:"duration_seconds"`
	DistanceMeters    float64        `gorm:"not null;column:distance_meters" json:"distance_meters"`
	DetectedMode      string         `gorm:"not null;column:detected_mode" json:"detected_mode"`
	UserConfirmedMode *string        `gorm:"column:user_confirmed_mode" json:"user_confirmed_mode,omitempty"`
	ModeConfidence    float64        `gorm:"not null;column:mode_confidence" json:"mode_confidence"`
	TripPurpose       string         `gorm:"column:trip_purpose" json:"trip_purpose"`
	Companions        datatypes.JSON `gorm:"type:jsonb;column:companions" json:"companions,omitempty"`
	SensorSummary     datatypes.JSON `gorm:"type:jsonb;column:sensor_summary" json:"sensor_summary,omitempty"`
	Notes             string         `gorm:"column:notes" json:"notes"`
	RecordedOffline   bool           `gorm:"not null;default:false;column:recorded_offline" json:"recorded_offline"`
	Synced            bool           `gorm:"not null;default:false;column:synced" json:"synced"`
	IsPrivate         bool           `gorm:"not null;default:false;column:is_private" json:"is_private"`
	PlausibilityScore *float64       `gorm:"column:plausibility_score" json:"plausibility_score,omitempty"`
	PayloadHash       string         `gorm:"not null;column:payload_hash" json:"-"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (Trip) TableName() string { return "trip" }

// EffectiveMode prefers the user's correction over the detector output.
func (t *Trip) EffectiveMode() string {
	if t.UserConfirmedMode != nil && *t.UserConfirmedMode != "" {
		return *t.UserConfirmedMode
	}
	return t.DetectedMode
}
