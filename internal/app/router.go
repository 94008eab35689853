package app

import (
	"github.com/gin-gonic/gin"

	"github.com/commutrace/tripsync-backend/internal/server"
)

func wireRouter(handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		HealthcheckHandler:   handlerset.Healthcheck,
		SyncHandler:          handlerset.Sync,
		TripsHandler:         handlerset.Trips,
		RewardsHandler:       handlerset.Rewards,
		ConsentHandler:       handlerset.Consent,
		AnonymizationHandler: handlerset.Anonymization,
		PrivacyHandler:       handlerset.Privacy,
		DeviceHandler:        handlerset.Device,
		AuthMiddleware:       mw.Auth,
		RateLimitMiddleware:  mw.RateLimit,
	})
}
