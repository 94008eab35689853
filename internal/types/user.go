package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the pseudonymous owner of trips and ledger rows. Account
// provisioning and credentials live outside this service; the row exists so
// cascades and ownership checks have something to hang off.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Pseudonym string    `gorm:"uniqueIndex;not null;column:pseudonym" json:"pseudonym"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "user" }
