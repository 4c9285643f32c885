// Package cache provides Redis-backed skip lists with graceful
// degradation: when Redis is disabled or unreachable, lookups behave
// as misses and writes are dropped.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smartmoney-tracker/config"
)

const rejectKeyPrefix = "discovery:rejected:%s"

// RejectCache remembers wallets that failed discovery evaluation so a
// leaderboard scan does not re-fetch their whole position history
// every tick. A nil *RejectCache is a valid no-op instance.
type RejectCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time
}

const (
	maxCacheFailures    = 3
	cacheRecoveryPeriod = 30 * time.Second
)

// NewRejectCache connects to Redis. Returns nil (the no-op instance)
// when Redis is disabled in config. A failed initial connection still
// returns a usable instance in degraded mode.
func NewRejectCache(cfg config.RedisConfig, ttl time.Duration, log zerolog.Logger) *RejectCache {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	rc := &RejectCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "cache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rc.log.Warn().Err(err).Msg("[CACHE] Initial Redis connection failed, running degraded")
		return rc
	}

	rc.healthy = true
	rc.log.Info().Str("addr", cfg.Addr).Msg("[CACHE] Redis connected")
	return rc
}

// IsRejected reports whether the wallet was recently rejected.
func (rc *RejectCache) IsRejected(ctx context.Context, proxyWallet string) bool {
	if rc == nil || !rc.isHealthy() {
		return false
	}
	n, err := rc.client.Exists(ctx, fmt.Sprintf(rejectKeyPrefix, proxyWallet)).Result()
	if err != nil {
		rc.recordFailure(err)
		return false
	}
	rc.recordSuccess()
	return n > 0
}

// MarkRejected records a failed evaluation for the configured TTL.
func (rc *RejectCache) MarkRejected(ctx context.Context, proxyWallet, reason string) {
	if rc == nil || !rc.isHealthy() {
		return
	}
	key := fmt.Sprintf(rejectKeyPrefix, proxyWallet)
	if err := rc.client.Set(ctx, key, reason, rc.ttl).Err(); err != nil {
		rc.recordFailure(err)
		return
	}
	rc.recordSuccess()
}

// Close releases the Redis connection.
func (rc *RejectCache) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// isHealthy reports the circuit state, periodically re-pinging Redis
// so a recovered server brings the skip list back.
func (rc *RejectCache) isHealthy() bool {
	rc.mu.RLock()
	healthy := rc.healthy
	lastCheck := rc.lastCheck
	rc.mu.RUnlock()
	if healthy {
		return true
	}
	if time.Since(lastCheck) < cacheRecoveryPeriod {
		return false
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if time.Since(rc.lastCheck) < cacheRecoveryPeriod {
		return rc.healthy
	}
	rc.lastCheck = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return false
	}
	rc.healthy = true
	rc.failureCount = 0
	rc.log.Info().Msg("[CACHE] Redis recovered, skip list re-enabled")
	return true
}

func (rc *RejectCache) recordFailure(err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.failureCount++
	if rc.failureCount >= maxCacheFailures && rc.healthy {
		rc.log.Warn().Err(err).Msg("[CACHE] Redis marked unhealthy, skip list disabled")
		rc.healthy = false
	}
}

func (rc *RejectCache) recordSuccess() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.failureCount = 0
}
