package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalHasAnyRole(t *testing.T) {
	p := &Principal{Subject: "user", Roles: []string{"ROLE_USER"}}

	assert.True(t, p.HasAnyRole("ROLE_ADMIN", "ROLE_USER"))
	assert.False(t, p.HasAnyRole("ROLE_ADMIN"))
	assert.False(t, p.HasAnyRole())

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasAnyRole("ROLE_USER"))
}
