package permission

import "strings"

// Role is the canonical, closed set of account types. The free-form userType string
// carried by tokens and sessions is converted once, at the boundary, with [ParseRole].
type Role uint8

const (
	// RoleUnknown is the least privileged role. Any unrecognised userType maps here.
	RoleUnknown Role = iota
	RoleCreator
	RoleInvestor
	RoleProduction
	RoleAdmin
)

var roleNames = [...]string{
	RoleUnknown:    "unknown",
	RoleCreator:    "creator",
	RoleInvestor:   "investor",
	RoleProduction: "production",
	RoleAdmin:      "admin",
}

// ParseRole maps a userType string to a [Role], case-insensitively. Unrecognised
// values yield [RoleUnknown], never [RoleAdmin].
func ParseRole(userType string) Role {
	switch strings.ToLower(strings.TrimSpace(userType)) {
	case "creator":
		return RoleCreator
	case "investor":
		return RoleInvestor
	case "production":
		return RoleProduction
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return roleNames[RoleUnknown]
}

// IsAdmin reports whether r is the administrative role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Roles returns every known role, including [RoleUnknown].
func Roles() []Role {
	return []Role{RoleUnknown, RoleCreator, RoleInvestor, RoleProduction, RoleAdmin}
}
