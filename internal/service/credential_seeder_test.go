package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/repository"
)

func TestParseSeedSpecs(t *testing.T) {
	specs, err := ParseSeedSpecs([]string{
		"user:password",
		" admin :s3cret:ROLE_USER|ROLE_ADMIN",
		"colon:pa:ss:ROLE_X",
	})
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, SeedSpec{Username: "user", Password: "password", Roles: []string{auth.RoleUser}}, specs[0])
	assert.Equal(t, SeedSpec{Username: "admin", Password: "s3cret", Roles: []string{auth.RoleUser, auth.RoleAdmin}}, specs[1])
	// the third field is always roles
	assert.Equal(t, "pa", specs[2].Password)
	assert.Equal(t, []string{"ss:ROLE_X"}, specs[2].Roles)
}

func TestParseSeedSpecsRejectsBadEntries(t *testing.T) {
	for _, entry := range []string{"", "user", ":password", "user:"} {
		_, err := ParseSeedSpecs([]string{entry})
		assert.Error(t, err, entry)
	}
}

func TestSeedCredentialsHashesPasswords(t *testing.T) {
	store := repository.NewMemoryCredentialRepository()
	err := SeedCredentials(context.Background(), store, []SeedSpec{
		{Username: "user", Password: "password", Roles: []string{auth.RoleUser}},
	}, bcrypt.MinCost)
	require.NoError(t, err)

	cred, err := store.Lookup(context.Background(), "user")
	require.NoError(t, err)
	assert.NotEqual(t, "password", cred.PasswordHash)
	assert.True(t, auth.BcryptVerifier{}.Check("password", cred.PasswordHash))
	assert.Equal(t, []string{auth.RoleUser}, cred.Roles)
}
