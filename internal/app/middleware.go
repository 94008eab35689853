package app

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/middleware"
)

type Middleware struct {
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config, serviceset Services, redisClient *redis.Client) Middleware {
	return Middleware{
		Auth:      middleware.NewAuthMiddleware(log, serviceset.Auth),
		RateLimit: middleware.NewRateLimitMiddleware(log, redisClient, cfg.RateLimitPerMin, time.Minute),
	}
}
