package profile

import (
	"context"
	"time"

	"github.com/aimerfeng/SkillStage/internal/cache"
	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/rs/zerolog"
)

const cacheType = "profile"

// Cached is a read-through Redis cache in front of another Directory.
// Redis failures degrade to a direct lookup.
type Cached struct {
	next   Directory
	cache  *cache.Redis
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached wraps next with a Redis cache. A nil cache disables caching.
func NewCached(next Directory, c *cache.Redis, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: logging.NewLogger("profile-cache")}
}

func cacheKey(id string) string {
	return "profile:" + id
}

func (c *Cached) Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	ids = unique(ids)
	if !c.cache.Available() {
		return c.next.Lookup(ctx, ids)
	}

	out := make(map[string]models.Profile, len(ids))
	var missing []string
	for _, id := range ids {
		var p models.Profile
		found, err := c.cache.GetJSON(ctx, cacheKey(id), &p)
		if err != nil {
			c.logger.Debug().Err(err).Str("user_id", id).Msg("Profile cache read failed")
		}
		if found {
			monitoring.RecordCacheHit(cacheType)
			out[id] = p
			continue
		}
		monitoring.RecordCacheMiss(cacheType)
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.next.Lookup(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		out[id] = p
		if err := c.cache.SetJSON(ctx, cacheKey(id), p, c.ttl); err != nil {
			c.logger.Debug().Err(err).Str("user_id", id).Msg("Profile cache write failed")
		}
	}
	return out, nil
}

// Invalidate drops cached profiles
func (c *Cached) Invalidate(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cacheKey(id))
	}
	return c.cache.Delete(ctx, keys...)
}
