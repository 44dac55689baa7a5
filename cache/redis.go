// Package cache is the gateway's response cache: a planning request's
// three ingest tables plus weights file are often re-submitted verbatim
// while an operator tweaks one OB, so the gateway keys a cached run
// summary off a hash of the request body and skips re-running the
// scheduler when nothing changed. One Redis client, connected once at
// startup, with Get/Set/health/stats on top.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/naojsoft/qplan-core/log"
)

var logger = log.Logger()

// RedisCache is a Redis-backed cache of rendered plan runs, keyed by a
// hash of the request that produced them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// PlanCacheData is what gets cached for one planning request: the
// rendered summary text, the scheduled fraction, and which OBs were left
// over, plus when it was computed (for the staleness check Get applies on
// top of Redis's own TTL).
type PlanCacheData struct {
	Summary          string    `json:"summary"`
	PercentScheduled float64   `json:"percent_scheduled"`
	ResidualOBIDs    []string  `json:"residual_ob_ids"`
	CachedAt         time.Time `json:"cached_at"`
}

const keyPrefix = "qplan:run:"

// NewRedisCache dials addr and pings it once; a failed ping is returned
// as an error, failing fast at construction (the gateway treats a cache
// it could not construct as "cache disabled", see cmd/planner-server).
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("plan cache connected", "addr", addr, "db", db, "ttl", ttl)

	return &RedisCache{client: rdb, ttl: ttl}, nil
}

// Key derives the cache key for a request signature (a hash of its
// ingest tables plus weights, computed by the caller so this package
// stays agnostic to how the hash is taken).
func (r *RedisCache) Key(requestHash string) string {
	return keyPrefix + requestHash
}

// Get retrieves a cached plan run, or (nil, nil) on a miss.
func (r *RedisCache) Get(ctx context.Context, key string) (*PlanCacheData, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	var data PlanCacheData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		logger.Error("failed to unmarshal cached plan", "key", key, "error", err)
		r.client.Del(ctx, key)
		return nil, nil
	}

	if time.Since(data.CachedAt) > r.ttl {
		logger.Debug("plan cache entry expired", "key", key, "cached_at", data.CachedAt)
		r.client.Del(ctx, key)
		return nil, nil
	}

	return &data, nil
}

// Set stores a plan run's result under key.
func (r *RedisCache) Set(ctx context.Context, key string, data *PlanCacheData) error {
	data.CachedAt = time.Now()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := r.client.Set(ctx, key, jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	return nil
}

// Delete removes a cache entry.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Clear removes every cached plan run.
func (r *RedisCache) Clear(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to get cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logger.Info("plan cache cleared", "keys_deleted", len(keys))
	return nil
}

// Stats returns basic cache statistics for the gateway's health/stats
// endpoints.
func (r *RedisCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	info, err := r.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis stats: %w", err)
	}
	keys, err := r.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count cache keys: %w", err)
	}
	return map[string]interface{}{
		"cache_keys_count": len(keys),
		"ttl_seconds":      int(r.ttl.Seconds()),
		"redis_info":       info,
	}, nil
}

// HealthCheck pings the underlying Redis connection.
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
