package app

import (
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/repos"
)

type Repos struct {
	User             repos.UserRepo
	DeviceKey        repos.DeviceKeyRepo
	Trip             repos.TripRepo
	TripChain        repos.TripChainRepo
	Reward           repos.RewardRepo
	Consent          repos.ConsentRepo
	AnonymizationJob repos.AnonymizationJobRepo
	AnonymizedTrip   repos.AnonymizedTripRepo
	Audit            repos.AuditRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:             repos.NewUserRepo(db, log),
		DeviceKey:        repos.NewDeviceKeyRepo(db, log),
		Trip:             repos.NewTripRepo(db, log),
		TripChain:        repos.NewTripChainRepo(db, log),
		Reward:           repos.NewRewardRepo(db, log),
		Consent:          repos.NewConsentRepo(db, log),
		AnonymizationJob: repos.NewAnonymizationJobRepo(db, log),
		AnonymizedTrip:   repos.NewAnonymizedTripRepo(db, log),
		Audit:            repos.NewAuditRepo(db, log),
	}
}
