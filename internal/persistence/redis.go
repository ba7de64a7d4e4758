package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/repository"
)

const defaultRedisDialTimeout = 2 * time.Second

// Redis wraps the go-redis client backing the credential store.
type Redis struct {
	Client    redis.UniversalClient
	keyPrefix string
}

// NewRedis builds a client for cfg. A single address gives a plain client and
// several give a cluster client. The startup ping is bounded by the dial
// timeout; an unreachable server is logged, not fatal, and readiness reports it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultRedisDialTimeout
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Strings("addrs", cfg.Addrs), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.Strings("addrs", cfg.Addrs), zap.Int("db", cfg.DB))
	}

	return &Redis{Client: client, keyPrefix: cfg.KeyPrefix}
}

// Credentials returns the credential store kept in this Redis under the
// configured key prefix.
func (r *Redis) Credentials() repository.CredentialRepository {
	return repository.NewRedisCredentialRepository(r.Client, r.keyPrefix)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
