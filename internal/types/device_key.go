package types

import (
	"time"

	"github.com/google/uuid"
)

// DeviceKey holds the symmetric key material a device seals and signs its
// offline trip payloads with. One row per registered device.
type DeviceKey struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	DeviceID    string    `gorm:"uniqueIndex;not null;column:device_id" json:"device_id"`
	KeyMaterial []byte    `gorm:"not null;column:key_material" json:"-"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (DeviceKey) TableName() string { return "device_key" }
