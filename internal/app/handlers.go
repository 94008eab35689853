package app

import (
	"github.com/commutrace/tripsync-backend/internal/handlers"
)

type Handlers struct {
	Healthcheck   *handlers.HealthcheckHandler
	Sync          *handlers.SyncHandler
	Trips         *handlers.TripsHandler
	Rewards       *handlers.RewardsHandler
	Consent       *handlers.ConsentHandler
	Anonymization *handlers.AnonymizationHandler
	Privacy       *handlers.PrivacyHandler
	Device        *handlers.DeviceHandler
}

func wireHandlers(serviceset Services) Handlers {
	return Handlers{
		Healthcheck:   handlers.NewHealthcheckHandler(),
		Sync:          handlers.NewSyncHandler(serviceset.Sync),
		Trips:         handlers.NewTripsHandler(serviceset.Trip, serviceset.Chain),
		Rewards:       handlers.NewRewardsHandler(serviceset.Reward),
		Consent:       handlers.NewConsentHandler(serviceset.Consent),
		Anonymization: handlers.NewAnonymizationHandler(serviceset.Anonymization),
		Privacy:       handlers.NewPrivacyHandler(serviceset.Privacy),
		Device:        handlers.NewDeviceHandler(serviceset.Device),
	}
}
