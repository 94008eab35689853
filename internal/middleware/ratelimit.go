package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/requestdata"
)

// RateLimitMiddleware throttles sync traffic per user with a fixed redis
// window. Without redis it passes everything through, so single-node
// deployments are unthrottled rather than broken.
type RateLimitMiddleware struct {
	log    *logger.Logger
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimitMiddleware(log *logger.Logger, client *redis.Client, limit int, window time.Duration) *RateLimitMiddleware {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimitMiddleware{
		log:    log.With("Middleware", "RateLimitMiddleware"),
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.client == nil {
			c.Next()
			return
		}
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("tripsync:ratelimit:%s:%d", rd.UserID, time.Now().Unix()/int64(rl.window.Seconds()))
		count, err := rl.client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis trouble must not take the API down with it.
			rl.log.Warn("Rate limit check failed", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(c.Request.Context(), key, rl.window)
		}
		if count > int64(rl.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "RATE_LIMITED", "message": "too many requests, retry later"},
			})
			return
		}
		c.Next()
	}
}
