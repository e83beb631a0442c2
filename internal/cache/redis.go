package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/SkillStage/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when no Redis connection is configured
var ErrUnavailable = errors.New("redis unavailable")

// Redis wraps a go-redis client. A nil *Redis is valid and behaves as an
// always-missing cache.
type Redis struct {
	Client *redis.Client
}

// New connects to Redis. It returns nil without error when Redis is disabled.
func New(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Redis connection established")
	return &Redis{Client: client}, nil
}

// NewFromClient wraps an existing client
func NewFromClient(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

// Available reports whether a connection is configured
func (r *Redis) Available() bool {
	return r != nil && r.Client != nil
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Available() {
		return ErrUnavailable
	}
	return r.Client.Ping(ctx).Err()
}

// GetJSON decodes the value at key into out. It reports false on a miss.
func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !r.Available() {
		return false, nil
	}
	b, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value at key for ttl
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !r.Available() {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, b, ttl).Err()
}

// Delete removes keys
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if !r.Available() || len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

// Close closes the connection
func (r *Redis) Close() error {
	if !r.Available() {
		return nil
	}
	return r.Client.Close()
}
