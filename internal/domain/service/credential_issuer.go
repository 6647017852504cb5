// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// CredentialIssuer generates and verifies merchant credentials.
// This abstracts the underlying hashing algorithm (e.g., bcrypt), keeping the domain pure.
type CredentialIssuer interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash to see if they match.
	Check(password, hash string) bool

	// ValidatePasswordStrength returns a PasswordPolicyError listing every unmet rule.
	ValidatePasswordStrength(password string) error

	// GenerateTemporaryPassword returns a random password that satisfies the password policy.
	GenerateTemporaryPassword() (string, error)

	// GenerateSetupToken returns a new opaque setup token and the hash to persist for it.
	GenerateSetupToken() (raw string, hash string, err error)

	// HashToken derives the stored lookup hash of a raw setup token.
	HashToken(raw string) string
}
