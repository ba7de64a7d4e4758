package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/token-gate/internal/domain"
)

// ErrCredentialNotFound is returned when no credential exists for a username.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore resolves a username to its stored credential.
type CredentialStore interface {
	Lookup(ctx context.Context, username string) (*domain.Credential, error)
}

// CredentialWriter provisions credentials.
type CredentialWriter interface {
	Upsert(ctx context.Context, cred *domain.Credential) error
}

// CredentialRepository is a store that can also be provisioned.
type CredentialRepository interface {
	CredentialStore
	CredentialWriter
}

// pgxQuerier is the subset of *pgxpool.Pool the repository uses.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type credentialRepository struct {
	db pgxQuerier
}

// NewCredentialRepository returns a Postgres-backed implementation. It accepts a *pgxpool.Pool.
func NewCredentialRepository(db pgxQuerier) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Lookup(ctx context.Context, username string) (*domain.Credential, error) {
	const query = `
        SELECT username, password_hash, roles, created_at, updated_at
        FROM credentials WHERE username=$1`

	var cred domain.Credential
	if err := r.db.QueryRow(ctx, query, normalizeUsername(username)).Scan(
		&cred.Username,
		&cred.PasswordHash,
		&cred.Roles,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *domain.Credential) error {
	const query = `
        INSERT INTO credentials (username, password_hash, roles)
        VALUES ($1, $2, $3)
        ON CONFLICT (username) DO UPDATE
        SET password_hash=EXCLUDED.password_hash, roles=EXCLUDED.roles, updated_at=NOW()
        RETURNING created_at, updated_at`

	cred.Username = normalizeUsername(cred.Username)
	roles := cred.Roles
	if roles == nil {
		roles = []string{}
	}
	return r.db.QueryRow(ctx, query,
		cred.Username,
		cred.PasswordHash,
		roles,
	).Scan(&cred.CreatedAt, &cred.UpdatedAt)
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}
