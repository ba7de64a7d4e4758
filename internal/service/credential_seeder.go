package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
)

// SeedSpec is one parsed entry of AUTH_SEED_CREDENTIALS.
type SeedSpec struct {
	Username string
	Password string
	Roles    []string
}

// ParseSeedSpecs parses entries of the form "username:password[:ROLE_A|ROLE_B]".
// Entries without roles get auth.RoleUser.
func ParseSeedSpecs(entries []string) ([]SeedSpec, error) {
	specs := make([]SeedSpec, 0, len(entries))
	for i, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
			return nil, fmt.Errorf("seed entry %d: expected username:password[:roles]", i)
		}
		spec := SeedSpec{Username: strings.TrimSpace(parts[0]), Password: parts[1]}
		if len(parts) == 3 {
			for _, role := range strings.Split(parts[2], "|") {
				if role = strings.TrimSpace(role); role != "" {
					spec.Roles = append(spec.Roles, role)
				}
			}
		}
		if len(spec.Roles) == 0 {
			spec.Roles = []string{auth.RoleUser}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// SeedCredentials hashes and upserts each spec.
func SeedCredentials(ctx context.Context, writer repository.CredentialWriter, specs []SeedSpec, bcryptCost int) error {
	for _, spec := range specs {
		hash, err := auth.HashPassword(spec.Password, bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", spec.Username, err)
		}
		cred := &domain.Credential{Username: spec.Username, PasswordHash: hash, Roles: spec.Roles}
		if err := writer.Upsert(ctx, cred); err != nil {
			return fmt.Errorf("seed %s: %w", spec.Username, err)
		}
	}
	return nil
}
