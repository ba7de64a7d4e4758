package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/token-gate/internal/domain"
)

type memoryCredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]domain.Credential
}

// NewMemoryCredentialRepository returns a process-local store, used for development and tests.
func NewMemoryCredentialRepository() CredentialRepository {
	return &memoryCredentialRepository{creds: make(map[string]domain.Credential)}
}

func (r *memoryCredentialRepository) Lookup(ctx context.Context, username string) (*domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	cred, ok := r.creds[normalizeUsername(username)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cred.Roles = append([]string{}, cred.Roles...)
	return &cred, nil
}

func (r *memoryCredentialRepository) Upsert(ctx context.Context, cred *domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cred.Username = normalizeUsername(cred.Username)
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.creds[cred.Username]; ok {
		cred.CreatedAt = existing.CreatedAt
	} else {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	stored := *cred
	stored.Roles = append([]string{}, cred.Roles...)
	r.creds[cred.Username] = stored
	return nil
}
