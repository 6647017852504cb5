// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"onboarding/config"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Password policy rule names reported in PasswordPolicyError.
const (
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleLowercase = "lowercase"
	RuleUppercase = "uppercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

const bcryptMaxBytes = 72

const (
	lowerAlphabet = "abcdefghijkmnopqrstuvwxyz"
	upperAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitAlphabet = "23456789"

	defaultTempPasswordLength = 16
	defaultTokenBytes         = 32
)

//nolint:gochecknoglobals
var randomReader = rand.Reader

// Policy is the password policy enforced at setup and met by generated passwords.
type Policy struct {
	MinLength         int
	MaxLength         int
	RequireUppercase  bool
	RequireLowercase  bool
	RequireNumbers    bool
	RequireSpecial    bool
	SpecialCharacters string
}

// DefaultPolicy requires 8+ characters with one lowercase, uppercase, digit and special character.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:         8,
		RequireUppercase:  true,
		RequireLowercase:  true,
		RequireNumbers:    true,
		RequireSpecial:    true,
		SpecialCharacters: "!@#$%^&*()-_=+[]{};:,.<>?/~",
	}
}

// bcryptIssuer is a concrete implementation of the CredentialIssuer interface using bcrypt.
type bcryptIssuer struct {
	cost               int
	policy             Policy
	tempPasswordLength int
	tokenBytes         int
}

// NewBcryptIssuer builds the credential issuer from configuration.
func NewBcryptIssuer(cfg *config.Config) service.CredentialIssuer {
	issuer := &bcryptIssuer{
		cost:               bcrypt.DefaultCost,
		policy:             DefaultPolicy(),
		tempPasswordLength: defaultTempPasswordLength,
		tokenBytes:         defaultTokenBytes,
	}
	if cfg == nil {
		return issuer
	}

	if cfg.Auth != nil && cfg.Auth.BcryptCost >= bcrypt.MinCost {
		issuer.cost = cfg.Auth.BcryptCost
	}
	if ps := cfg.PasswordStrength; ps != nil {
		issuer.policy = Policy{
			MinLength:         ps.MinLength,
			MaxLength:         ps.MaxLength,
			RequireUppercase:  ps.RequireUppercase,
			RequireLowercase:  ps.RequireLowercase,
			RequireNumbers:    ps.RequireNumbers,
			RequireSpecial:    ps.RequireSpecial,
			SpecialCharacters: ps.SpecialCharacters,
		}
		if issuer.policy.SpecialCharacters == "" {
			issuer.policy.SpecialCharacters = DefaultPolicy().SpecialCharacters
		}
	}
	if cfg.Onboarding != nil {
		if cfg.Onboarding.TemporaryPasswordLength > 0 {
			issuer.tempPasswordLength = cfg.Onboarding.TemporaryPasswordLength
		}
		if cfg.Onboarding.TokenBytes > 0 {
			issuer.tokenBytes = cfg.Onboarding.TokenBytes
		}
	}

	return issuer
}

// NewBcryptIssuerWithCost creates an issuer with the default policy and a custom bcrypt cost.
func NewBcryptIssuerWithCost(cost int) service.CredentialIssuer {
	return &bcryptIssuer{
		cost:               cost,
		policy:             DefaultPolicy(),
		tempPasswordLength: defaultTempPasswordLength,
		tokenBytes:         defaultTokenBytes,
	}
}

// Hash generates a salted hash from a plaintext password using bcrypt.
func (i *bcryptIssuer) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), i.cost)
	if err != nil {
		return "", errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	return string(bytes), nil
}

// Check compares a plaintext password with a bcrypt hash.
func (i *bcryptIssuer) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength checks every rule and reports all failures at once.
func (i *bcryptIssuer) ValidatePasswordStrength(password string) error {
	var failed []string

	length := utf8.RuneCountInString(password)
	if length < i.policy.MinLength {
		failed = append(failed, RuleMinLength)
	}
	// bcrypt refuses more than 72 bytes, which multi-byte runes reach before MaxLength.
	if (i.policy.MaxLength > 0 && length > i.policy.MaxLength) || len(password) > bcryptMaxBytes {
		failed = append(failed, RuleMaxLength)
	}
	if i.policy.RequireLowercase && !i.hasLowercase(password) {
		failed = append(failed, RuleLowercase)
	}
	if i.policy.RequireUppercase && !i.hasUppercase(password) {
		failed = append(failed, RuleUppercase)
	}
	if i.policy.RequireNumbers && !i.hasNumbers(password) {
		failed = append(failed, RuleDigit)
	}
	if i.policy.RequireSpecial && !i.hasSpecialChars(password) {
		failed = append(failed, RuleSpecial)
	}

	if len(failed) > 0 {
		return &domainerrors.PasswordPolicyError{Rules: failed}
	}

	return nil
}

// GenerateTemporaryPassword draws one character from each required class, fills the rest
// from the combined alphabet and shuffles, all from crypto/rand.
func (i *bcryptIssuer) GenerateTemporaryPassword() (string, error) {
	length := max(i.tempPasswordLength, i.policy.MinLength, 4)
	if i.policy.MaxLength > 0 && length > i.policy.MaxLength {
		length = i.policy.MaxLength
	}

	classes := []string{lowerAlphabet, upperAlphabet, digitAlphabet, i.policy.SpecialCharacters}
	all := strings.Join(classes, "")

	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the guaranteed characters do not sit at fixed positions.
	for j := len(out) - 1; j > 0; j-- {
		k, err := randomIndex(j + 1)
		if err != nil {
			return "", err
		}
		out[j], out[k] = out[k], out[j]
	}

	return string(out), nil
}

// GenerateSetupToken returns a URL-safe random token and its SHA-256 hex digest.
func (i *bcryptIssuer) GenerateSetupToken() (raw string, hash string, err error) {
	buf := make([]byte, i.tokenBytes)
	if _, err := io.ReadFull(randomReader, buf); err != nil {
		return "", "", errors.Wrap(domainerrors.ErrCredentialGenerationFailed, err.Error())
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)

	return raw, i.HashToken(raw), nil
}

// HashToken derives the stored lookup hash of a raw token.
func (i *bcryptIssuer) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))

	return hex.EncodeToString(sum[:])
}

func (i *bcryptIssuer) hasUppercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}

func (i *bcryptIssuer) hasLowercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsLower) >= 0
}

func (i *bcryptIssuer) hasNumbers(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func (i *bcryptIssuer) hasSpecialChars(s string) bool {
	return strings.ContainsAny(s, i.policy.SpecialCharacters)
}

func randomChar(alphabet string) (byte, error) {
	idx, err := randomIndex(len(alphabet))
	if err != nil {
		return 0, err
	}

	return alphabet[idx], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(randomReader, big.NewInt(int64(n)))
	if err != nil {
		return 0, errors.Wrap(domainerrors.ErrCredentialGenerationFailed, err.Error())
	}

	return int(v.Int64()), nil
}
