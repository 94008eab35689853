package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DataExport is the immutable audit row for one export request. The exported
// file lives in object storage until ExpiresAt, after which object and row
// are purged.
type DataExport struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"export_id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User             *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Format           string     `gorm:"not null;column:format" json:"format"`
	IncludeSensitive bool       `gorm:"not null;default:false;column:include_sensitive" json:"include_sensitive"`
	RangeStart       *time.Time `gorm:"column:range_start" json:"range_start,omitempty"`
	RangeEnd         *time.Time `gorm:"column:range_end" json:"range_end,omitempty"`
	BucketKey        string     `gorm:"not null;column:bucket_key" json:"-"`
	DownloadURL      string     `gorm:"not null;column:download_url" json:"download_url"`
	FileSize         int64      `gorm:"not null;column:file_size" json:"file_size"`
	ExpiresAt        time.Time  `gorm:"not null;index;column:expires_at" json:"expires_at"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
}

func (DataExport) TableName() string { return "data_export" }

// DataDeletion is the immutable audit row for one deletion request,
// recording the exact set of trip ids removed.
type DataDeletion struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"deletion_id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	DeleteAll  bool           `gorm:"not null;default:false;column:delete_all" json:"delete_all"`
	RangeStart *time.Time     `gorm:"column:range_start" json:"range_start,omitempty"`
	RangeEnd   *time.Time     `gorm:"column:range_end" json:"range_end,omitempty"`
	TripIDs    datatypes.JSON `gorm:"type:jsonb;not null;column:trip_ids" json:"trip_ids"`
	TripCount  int            `gorm:"not null;column:trip_count" json:"trip_count"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (DataDeletion) TableName() string { return "data_deletion" }
