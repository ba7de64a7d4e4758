package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/token-gate/internal/domain"
)

const (
	fieldPasswordHash = "password_hash"
	fieldRoles        = "roles"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
)

type redisCredentialRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCredentialRepository stores each credential as a hash at "<prefix>:<username>".
func NewRedisCredentialRepository(client redis.UniversalClient, prefix string) CredentialRepository {
	if prefix == "" {
		prefix = "cred"
	}
	return &redisCredentialRepository{client: client, prefix: prefix}
}

func (r *redisCredentialRepository) key(username string) string {
	return r.prefix + ":" + normalizeUsername(username)
}

func (r *redisCredentialRepository) Lookup(ctx context.Context, username string) (*domain.Credential, error) {
	fields, err := r.client.HGetAll(ctx, r.key(username)).Result()
	if err != nil {
		return nil, err
	}
	hash, ok := fields[fieldPasswordHash]
	if !ok || hash == "" {
		return nil, ErrCredentialNotFound
	}

	cred := &domain.Credential{
		Username:     normalizeUsername(username),
		PasswordHash: hash,
		Roles:        splitRoles(fields[fieldRoles]),
	}
	if cred.CreatedAt, err = parseStamp(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("credential %s: %w", cred.Username, err)
	}
	if cred.UpdatedAt, err = parseStamp(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("credential %s: %w", cred.Username, err)
	}
	return cred, nil
}

func (r *redisCredentialRepository) Upsert(ctx context.Context, cred *domain.Credential) error {
	cred.Username = normalizeUsername(cred.Username)
	now := time.Now().UTC()
	key := r.key(cred.Username)

	var created *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, now.Format(time.RFC3339Nano))
		pipe.HSet(ctx, key,
			fieldPasswordHash, cred.PasswordHash,
			fieldRoles, strings.Join(cred.Roles, ","),
			fieldUpdatedAt, now.Format(time.RFC3339Nano),
		)
		created = pipe.HGet(ctx, key, fieldCreatedAt)
		return nil
	})
	if err != nil {
		return err
	}

	cred.UpdatedAt = now
	if cred.CreatedAt, err = parseStamp(created.Val()); err != nil {
		return err
	}
	return nil
}

func splitRoles(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}

func parseStamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
