package auth

import "golang.org/x/crypto/bcrypt"

// SecretVerifier compares a presented plaintext secret with a stored hash.
type SecretVerifier interface {
	Check(plaintext, hash string) bool
}

// BcryptVerifier verifies bcrypt hashes.
type BcryptVerifier struct{}

// Check reports whether plaintext matches hash.
func (BcryptVerifier) Check(plaintext, hash string) bool {
	return ComparePassword(hash, plaintext) == nil
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
