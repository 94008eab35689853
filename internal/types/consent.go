package types

import (
	"time"

	"github.com/google/uuid"
)

// ConsentRecord is write-once per (user, consent_version). DataSharingConsent
// gates the anonymization pipeline; AnalyticsConsent gates analytics use.
type ConsentRecord struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_consent_user_version" json:"user_id"`
	User               *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ConsentVersion     string    `gorm:"not null;uniqueIndex:idx_consent_user_version;column:consent_version" json:"consent_version"`
	DataSharingConsent bool      `gorm:"not null;default:false;column:data_sharing_consent" json:"data_sharing_consent"`
	AnalyticsConsent   bool      `gorm:"not null;default:false;column:analytics_consent" json:"analytics_consent"`
	ConsentedAt        time.Time `gorm:"not null;column:consented_at" json:"consented_at"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
}

func (ConsentRecord) TableName() string { return "consent_record" }
