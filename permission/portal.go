package permission

import (
	"fmt"
	"strings"
)

const apiPrefix = "/api/"

// Portals maps portal namespaces (the segment after /api/) to the role allowed in them.
type Portals map[string]Role

// NewPortals builds a portal set from names. Every name must parse to a non-admin,
// non-unknown role.
func NewPortals(names []string) (Portals, error) {
	portals := make(Portals, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		role := ParseRole(name)
		if role == RoleUnknown || role.IsAdmin() {
			return nil, fmt.Errorf("portal %q does not name a portal role", name)
		}
		portals[name] = role
	}
	return portals, nil
}

// Match reports the portal a path belongs to. Only /api/{portal} and
// /api/{portal}/... are portal paths; the path is cleaned and lower-cased the same way
// route lookups are.
func (p Portals) Match(path string) (string, Role, bool) {
	path = normalizePath(path)
	if !strings.HasPrefix(path, apiPrefix) {
		return "", RoleUnknown, false
	}
	rest := path[len(apiPrefix):]
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	role, ok := p[rest]
	if !ok {
		return "", RoleUnknown, false
	}
	return rest, role, true
}

// Allows reports whether role may enter the portal owned by portalRole.
func (p Portals) Allows(portalRole, role Role) bool {
	return role.IsAdmin() || role == portalRole
}
