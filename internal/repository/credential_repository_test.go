package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/token-gate/internal/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("scan arity mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]string:
			*d = v.([]string)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeQuerier struct {
	row       fakeRow
	lastQuery string
	lastArgs  []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastQuery = sql
	q.lastArgs = args
	return q.row
}

func TestPostgresLookup(t *testing.T) {
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeQuerier{row: fakeRow{values: []any{"user", "$2a$hash", []string{"ROLE_USER"}, stamp, stamp}}}
	repo := NewCredentialRepository(db)

	cred, err := repo.Lookup(context.Background(), " user ")
	require.NoError(t, err)
	assert.Equal(t, "user", cred.Username)
	assert.Equal(t, "$2a$hash", cred.PasswordHash)
	assert.Equal(t, []string{"ROLE_USER"}, cred.Roles)
	assert.Equal(t, []any{"user"}, db.lastArgs)
}

func TestPostgresLookupNotFound(t *testing.T) {
	repo := NewCredentialRepository(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := repo.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestPostgresLookupPropagatesDriverErrors(t *testing.T) {
	boom := errors.New("connection refused")
	repo := NewCredentialRepository(&fakeQuerier{row: fakeRow{err: boom}})

	_, err := repo.Lookup(context.Background(), "user")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCredentialNotFound)
}

func TestPostgresUpsertSendsEmptyRoles(t *testing.T) {
	stamp := time.Now().UTC()
	db := &fakeQuerier{row: fakeRow{values: []any{stamp, stamp}}}
	repo := NewCredentialRepository(db)

	cred := &domain.Credential{Username: "user ", PasswordHash: "h"}
	require.NoError(t, repo.Upsert(context.Background(), cred))
	assert.Equal(t, "user", cred.Username)
	assert.Equal(t, []any{"user", "h", []string{}}, db.lastArgs)
	assert.True(t, cred.CreatedAt.Equal(stamp))
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCredentialStores(t *testing.T) {
	stores := map[string]func(t *testing.T) CredentialRepository{
		"memory": func(t *testing.T) CredentialRepository { return NewMemoryCredentialRepository() },
		"redis": func(t *testing.T) CredentialRepository {
			return NewRedisCredentialRepository(newTestRedis(t), "test")
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := build(t)

			_, err := repo.Lookup(ctx, "user")
			assert.ErrorIs(t, err, ErrCredentialNotFound)

			cred := &domain.Credential{Username: "user", PasswordHash: "h1", Roles: []string{"ROLE_USER", "ROLE_ADMIN"}}
			require.NoError(t, repo.Upsert(ctx, cred))
			created := cred.CreatedAt
			assert.False(t, created.IsZero())

			got, err := repo.Lookup(ctx, "user")
			require.NoError(t, err)
			assert.Equal(t, "h1", got.PasswordHash)
			assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, got.Roles)

			got.Roles[0] = "mutated"
			again, err := repo.Lookup(ctx, "user")
			require.NoError(t, err)
			assert.Equal(t, "ROLE_USER", again.Roles[0])

			update := &domain.Credential{Username: "user", PasswordHash: "h2"}
			require.NoError(t, repo.Upsert(ctx, update))
			assert.True(t, update.CreatedAt.Equal(created), "created-at survives an update")

			got, err = repo.Lookup(ctx, "user")
			require.NoError(t, err)
			assert.Equal(t, "h2", got.PasswordHash)
			assert.Empty(t, got.Roles)
		})
	}
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	repo := NewMemoryCredentialRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Lookup(ctx, "user")
	assert.ErrorIs(t, err, context.Canceled)
}
