package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aimerfeng/SkillStage/internal/cache"
	"github.com/aimerfeng/SkillStage/internal/config"
	apierrors "github.com/aimerfeng/SkillStage/internal/errors"
	"github.com/aimerfeng/SkillStage/internal/middleware"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter implements sliding window rate limiting on a Redis sorted set
type Limiter struct {
	redis  *cache.Redis
	limit  int
	window time.Duration
	now    func() time.Time
}

// Result contains the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// New creates a limiter. It returns nil when limiting is disabled or Redis
// is not configured; a nil Limiter allows everything.
func New(r *cache.Redis, cfg *config.RateLimitConfig) *Limiter {
	if cfg == nil || !cfg.Enabled || !r.Available() {
		return nil
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		redis:  r,
		limit:  cfg.Requests,
		window: window,
		now:    time.Now,
	}
}

func key(identity string) string {
	return fmt.Sprintf("ratelimit:sliding:%s", identity)
}

// Check records one call for identity and reports whether it is allowed.
// Redis errors allow the call.
func (l *Limiter) Check(ctx context.Context, identity string) *Result {
	if l == nil {
		return &Result{Allowed: true}
	}

	now := l.now()
	windowStart := now.Add(-l.window)
	k := key(identity)

	pipe := l.redis.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to check rate limit")
		return &Result{Allowed: true, Remaining: int64(l.limit), Limit: l.limit}
	}

	count := countCmd.Val()
	result := &Result{
		Limit:   l.limit,
		ResetAt: now.Add(l.window),
	}

	if count >= int64(l.limit) {
		result.RetryAfter = l.window
		oldest, err := l.redis.Client.ZRangeWithScores(ctx, k, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			result.RetryAfter = time.Unix(0, int64(oldest[0].Score)).Add(l.window).Sub(now)
			if result.RetryAfter < time.Second {
				result.RetryAfter = time.Second
			}
		}
		return result
	}

	pipe = l.redis.Client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.New().String(),
	})
	pipe.Expire(ctx, k, l.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("identity", identity).Msg("Failed to add rate limit entry")
	}

	result.Allowed = true
	result.Remaining = int64(l.limit) - count - 1
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result
}

// Reset clears the window of identity
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	if l == nil {
		return nil
	}
	return l.redis.Client.Del(ctx, key(identity)).Err()
}

// Middleware limits calls per authenticated identity, falling back to the
// client IP. It must run after authentication.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		identity := middleware.GetUserIDFromContext(c)
		if identity == "" {
			identity = "ip:" + c.ClientIP()
		}

		result := l.Check(c.Request.Context(), identity)
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			retryAfter := int64(result.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			monitoring.RecordRateLimitHit(c.FullPath())
			middleware.RespondWithError(c, apierrors.NewRateLimitError(retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}
