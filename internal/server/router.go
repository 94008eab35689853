package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/commutrace/tripsync-backend/internal/handlers"
	"github.com/commutrace/tripsync-backend/internal/middleware"
)

type RouterConfig struct {
	HealthcheckHandler   *handlers.HealthcheckHandler
	SyncHandler          *handlers.SyncHandler
	TripsHandler         *handlers.TripsHandler
	RewardsHandler       *handlers.RewardsHandler
	ConsentHandler       *handlers.ConsentHandler
	AnonymizationHandler *handlers.AnonymizationHandler
	PrivacyHandler       *handlers.PrivacyHandler
	DeviceHandler        *handlers.DeviceHandler
	AuthMiddleware       *middleware.AuthMiddleware
	RateLimitMiddleware  *middleware.RateLimitMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("tripsync"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Sync
	protected.POST("/trips/sync", cfg.RateLimitMiddleware.Limit(), cfg.SyncHandler.Sync)
	// Trips
	protected.GET("/trips", cfg.TripsHandler.List)
	protected.GET("/trips/:id", cfg.TripsHandler.Get)
	protected.PATCH("/trips/:id", cfg.TripsHandler.Correct)
	protected.GET("/chains/:id", cfg.TripsHandler.GetChain)
	// Rewards
	protected.GET("/rewards/balance", cfg.RewardsHandler.Balance)
	protected.GET("/rewards/transactions", cfg.RewardsHandler.Transactions)
	protected.POST("/rewards/redeem", cfg.RewardsHandler.Redeem)
	// Consent
	protected.PUT("/consent", cfg.ConsentHandler.Record)
	protected.GET("/consent", cfg.ConsentHandler.List)
	// Anonymization
	protected.POST("/anonymization/jobs", cfg.AnonymizationHandler.Submit)
	protected.GET("/anonymization/jobs", cfg.AnonymizationHandler.List)
	protected.GET("/anonymization/jobs/:id", cfg.AnonymizationHandler.Get)
	// Privacy
	protected.POST("/privacy/export", cfg.PrivacyHandler.Export)
	protected.GET("/privacy/deletion-token", cfg.PrivacyHandler.DeletionToken)
	protected.POST("/privacy/delete", cfg.PrivacyHandler.Delete)
	// Devices
	protected.POST("/devices/register", cfg.DeviceHandler.Register)

	return router
}
