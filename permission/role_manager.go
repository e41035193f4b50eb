package permission

import (
	"errors"
	"sync"
)

// RoleManager compiles each [Role] into a [Mask64] of registered permissions.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[Role]Mask64
	frozen bool
}

// NewRoleManager creates a [RoleManager] resolving permission names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[Role]Mask64),
	}
}

// RegisterRole compiles the permission list of a role. Every permission must already
// be registered; a role can only be registered once.
func (rm *RoleManager) RegisterRole(role Role, permissions []Permission) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if _, exists := rm.roles[role]; exists {
		return errors.New("role already registered: " + role.String())
	}

	var mask Mask64
	for _, p := range permissions {
		bit, ok := rm.registry.Bit(p)
		if !ok {
			return errors.New("permission not registered: " + string(p))
		}
		mask.Set(bit)
	}

	rm.roles[role] = mask
	return nil
}

/*
====================================
LOOKUP
*/

// Mask returns the compiled mask of a role. Unregistered roles have an empty mask.
func (rm *RoleManager) Mask(role Role) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[role]
	return mask, ok
}

// Has reports whether role holds p directly, without any admin or ownership rule.
func (rm *RoleManager) Has(role Role, p Permission) bool {
	bit, ok := rm.registry.Bit(p)
	if !ok {
		return false
	}
	mask, _ := rm.Mask(role)
	return mask.Has(bit)
}

// Permissions lists the permissions held by role.
func (rm *RoleManager) Permissions(role Role) []Permission {
	mask, _ := rm.Mask(role)
	return rm.registry.Expand(mask)
}

/*
====================================
FREEZE
*/

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
