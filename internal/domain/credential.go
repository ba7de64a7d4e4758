package domain

import "time"

// Credential is the stored secret material for a principal.
type Credential struct {
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
