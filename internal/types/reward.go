package types

import (
	"time"

	"github.com/google/uuid"
)

// Reward transaction types.
const (
	TxnTripCompletion = "trip_completion"
	TxnCorrection     = "correction"
	TxnRedemption     = "redemption"
	TxnBonus          = "bonus"
	TxnPenalty        = "penalty"
)

// RewardPoints is the per-user balance row. Invariant at all times:
// total_points = available_points + redeemed_points.
type RewardPoints struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User            *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	TotalPoints     int64      `gorm:"not null;default:0;column:total_points" json:"total_points"`
	AvailablePoints int64      `gorm:"not null;default:0;column:available_points" json:"available_points"`
	RedeemedPoints  int64      `gorm:"not null;default:0;column:redeemed_points" json:"redeemed_points"`
	LastEarned      *time.Time `gorm:"column:last_earned" json:"last_earned,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (RewardPoints) TableName() string { return "reward_points" }

// RewardTransaction is an immutable ledger entry. At most one of
// PointsEarned / PointsRedeemed is non-zero. TripID survives as NULL when
// the referenced trip is deleted; balances are never silently rewritten.
type RewardTransaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	TripID          *uuid.UUID `gorm:"type:uuid;index:idx_reward_txn_trip_type" json:"trip_id,omitempty"`
	TransactionType string     `gorm:"not null;index:idx_reward_txn_trip_type;column:transaction_type" json:"transaction_type"`
	PointsEarned    int64      `gorm:"not null;default:0;column:points_earned" json:"points_earned"`
	PointsRedeemed  int64      `gorm:"not null;default:0;column:points_redeemed" json:"points_redeemed"`
	Description     string     `gorm:"column:description" json:"description"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (RewardTransaction) TableName() string { return "reward_transaction" }
