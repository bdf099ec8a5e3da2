package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sweepLockKey = "ledger:recurrence:sweep"

// releaseScript deletes the lock only when it still carries our token, so a
// lock that expired and was re-acquired by another instance is never removed.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSweepLock serializes recurrence sweeps across instances using a
// SETNX lease with a TTL. It implements the application layer's SweepLock
// port.
type RedisSweepLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSweepLock creates a sweep lock backed by a new Redis connection
func NewRedisSweepLock(redisCfg config.RedisConfig, sweepCfg config.SweepConfig, logger *zap.Logger) (*RedisSweepLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSweepLockWithClient(client, sweepCfg.LockTTL, logger), nil
}

// NewRedisSweepLockWithClient creates a sweep lock with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisSweepLockWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSweepLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSweepLock{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire takes the sweep lease. ok is false without error when another
// instance holds it. The returned release function is safe to call once.
func (l *RedisSweepLock) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, sweepLockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release = func() {
		// releasing is best effort: the TTL reclaims an unreleased lease
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{sweepLockKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release sweep lock", zap.Error(err))
		}
	}
	return release, true, nil
}

// Close closes the underlying Redis client
func (l *RedisSweepLock) Close() error {
	return l.client.Close()
}

// Ensure RedisSweepLock implements SweepLock
var _ ledger.SweepLock = (*RedisSweepLock)(nil)
