package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role determines the default capability set of an identity.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleBoardMember Role = "BOARD_MEMBER"
	RoleOwner       Role = "OWNER"
	RoleTenant      Role = "TENANT"
)

// Roles lists every known role in privilege order.
var Roles = []Role{RoleAdmin, RoleBoardMember, RoleOwner, RoleTenant}

// ParseRole normalizes raw input into a known Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBoardMember, RoleOwner, RoleTenant:
		return true
	}
	return false
}

// AuditInfo carries entity timestamps. The store layer populates it; domain
// code treats it as read-only.
type AuditInfo struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is a stored account. Identities are never deleted, only
// deactivated, so email uniqueness spans active and inactive records.
type Identity struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Role         Role   `json:"role"`
	BuildingID   *int64 `json:"building_id,omitempty"`
	PasswordHash string `json:"-"`
	TokenVersion int64  `json:"-"`
	Active       bool   `json:"active"`
	AuditInfo
}

// Principal is the request-scoped view of an authenticated identity used for
// authorization decisions. It is reconstructed fresh on every request and
// never cached across requests.
type Principal struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	BuildingID *int64 `json:"building_id,omitempty"`
}

// Principal returns the authorization view of the identity.
func (i *Identity) Principal() Principal {
	return Principal{
		ID:         i.ID,
		Email:      i.Email,
		Name:       i.Name,
		Role:       i.Role,
		BuildingID: i.BuildingID,
	}
}

// NormalizeEmail lower-cases and trims an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
