package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/domain"
)

func TestRedisCredentialsUseKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	core, logs := observer.New(zap.InfoLevel)

	rdb := NewRedis(context.Background(), config.RedisConfig{
		Addrs:     []string{mr.Addr()},
		KeyPrefix: "gate-cred",
	}, zap.New(core))
	defer rdb.Close()

	assert.Equal(t, 1, logs.FilterMessage("connected to redis").Len())
	require.NoError(t, rdb.Ping(context.Background()))

	store := rdb.Credentials()
	require.NoError(t, store.Upsert(context.Background(), &domain.Credential{
		Username: "user", PasswordHash: "hash", Roles: []string{"ROLE_USER"},
	}))
	assert.True(t, mr.Exists("gate-cred:user"))

	cred, err := store.Lookup(context.Background(), "user")
	require.NoError(t, err)
	assert.Equal(t, "hash", cred.PasswordHash)
}

func TestRedisStartupPingIsBounded(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	core, logs := observer.New(zap.WarnLevel)
	start := time.Now()
	rdb := NewRedis(context.Background(), config.RedisConfig{
		Addrs:       []string{addr},
		DialTimeout: 200 * time.Millisecond,
	}, zap.New(core))
	defer rdb.Close()

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, logs.FilterMessage("unable to reach redis").Len())
	assert.Error(t, rdb.Ping(context.Background()))
}

func TestNilRedisPing(t *testing.T) {
	var rdb *Redis
	assert.Error(t, rdb.Ping(context.Background()))
}
