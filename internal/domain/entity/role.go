// Package entity contains the core business objects of the project.
package entity

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Role is a claim carried by an access token. Admins operate the review queue;
// merchants may only act on their own account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMerchant Role = "merchant"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMerchant
}

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}

	return r, nil
}

// CheckSubject reports whether subject can carry r. A merchant token's subject is
// the merchant ID it is scoped to, so it must be a UUID; admin subjects are free-form.
func (r Role) CheckSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("empty subject for role %s", r)
	}
	if r == RoleMerchant {
		if _, err := uuid.Parse(subject); err != nil {
			return fmt.Errorf("merchant subject must be a UUID, got %q", subject)
		}
	}

	return nil
}

// Roles is the role claim list of a token.
type Roles []Role

func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to the []string form stored in token claims.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}

// RolesFromStrings keeps the recognised roles in ss, dropping unknown and repeated ones.
func RolesFromStrings(ss []string) Roles {
	result := make(Roles, 0, len(ss))
	for _, s := range ss {
		if role := Role(s); role.IsValid() && !result.Contains(role) {
			result = append(result, role)
		}
	}

	return result
}
