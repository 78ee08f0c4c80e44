package domain

import "strings"

// Role is the account flavour of an actor. Roles only gate quantity limits.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleTemporary  Role = "temporary"
	RoleRegistered Role = "registered"
)

// ParseRole maps a claim value to a Role. Unknown values fall back to guest.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleRegistered:
		return RoleRegistered
	case RoleTemporary:
		return RoleTemporary
	default:
		return RoleGuest
	}
}

// Actor is the identity the session acts as.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
