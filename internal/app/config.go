package app

import (
	"time"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/utils"
)

type Config struct {
	JWTSecretKey    string
	PolicyFile      string
	RedisAddr       string
	WorkerPollEvery time.Duration
	SyncOpTimeout   time.Duration
	ExportTTL       time.Duration
	RateLimitPerMin int
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	policyFile := utils.GetEnv("POLICY_FILE", "", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	workerPoll := utils.GetEnvAsDuration("WORKER_POLL_INTERVAL", 2*time.Second, log)
	syncOpTimeout := utils.GetEnvAsDuration("SYNC_OP_TIMEOUT", 10*time.Second, log)
	exportTTL := utils.GetEnvAsDuration("EXPORT_TTL", 24*time.Hour, log)
	rateLimit := utils.GetEnvAsInt("SYNC_RATE_LIMIT_PER_MIN", 60, log)
	return Config{
		JWTSecretKey:    jwtSecretKey,
		PolicyFile:      policyFile,
		RedisAddr:       redisAddr,
		WorkerPollEvery: workerPoll,
		SyncOpTimeout:   syncOpTimeout,
		ExportTTL:       exportTTL,
		RateLimitPerMin: rateLimit,
	}
}
