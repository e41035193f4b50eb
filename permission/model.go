package permission

import "fmt"

// ConditionNDA is the metadata flag set when the caller has signed the NDA covering
// the requested resource.
const ConditionNDA = "hasNDA"

// ModelConfig is the compiled-in description of a [Model].
type ModelConfig struct {
	Permissions []Permission
	Roles       map[Role][]Permission
	Routes      []Binding
	Portals     []string
	// Conditions maps a condition flag to the message shown when it is missing.
	Conditions map[string]string
}

// Model is the frozen authorization model: registry, role masks, route table,
// portals and condition messages.
type Model struct {
	registry   *Registry
	roles      *RoleManager
	routes     *RouteTable
	portals    Portals
	conditions map[string]string
}

// NewModel compiles cfg. Every permission referenced by a role or a route must be
// part of cfg.Permissions, and every route condition must have a message. Public
// bindings may not sit under a portal prefix, so the portal gate always applies there.
func NewModel(cfg ModelConfig) (*Model, error) {
	registry := NewRegistry()
	for _, p := range cfg.Permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	roles := NewRoleManager(registry)
	for _, role := range Roles() {
		if err := roles.RegisterRole(role, cfg.Roles[role]); err != nil {
			return nil, err
		}
	}
	roles.Freeze()

	portals, err := NewPortals(cfg.Portals)
	if err != nil {
		return nil, err
	}

	routes := NewRouteTable()
	for _, b := range cfg.Routes {
		for _, p := range b.Permissions {
			if _, ok := registry.Bit(p); !ok {
				return nil, fmt.Errorf("route %s %s: permission not registered: %s", b.Method, b.Pattern, p)
			}
		}
		if b.Condition != "" {
			if _, ok := cfg.Conditions[b.Condition]; !ok {
				return nil, fmt.Errorf("route %s %s: condition %q has no message", b.Method, b.Pattern, b.Condition)
			}
		}
		if b.Public {
			if portal, _, ok := portals.Match(b.Pattern); ok {
				return nil, fmt.Errorf("route %s %s: public route inside the %s portal", b.Method, b.Pattern, portal)
			}
		}
		if err := routes.Add(b); err != nil {
			return nil, err
		}
	}
	routes.Freeze()

	conditions := make(map[string]string, len(cfg.Conditions))
	for k, v := range cfg.Conditions {
		conditions[k] = v
	}

	return &Model{
		registry:   registry,
		roles:      roles,
		routes:     routes,
		portals:    portals,
		conditions: conditions,
	}, nil
}

// Has reports whether role holds p. Admin satisfies every registered _ANY permission
// even when it is not listed in the admin role table.
func (m *Model) Has(role Role, p Permission) bool {
	if role.IsAdmin() && p.Scope() == ScopeAny && m.Known(p) {
		return true
	}
	return m.roles.Has(role, p)
}

// Known reports whether p is part of the registered catalogue.
func (m *Model) Known(p Permission) bool {
	_, ok := m.registry.Bit(p)
	return ok
}

// Permissions lists the permissions held by role, as compiled from the role table.
func (m *Model) Permissions(role Role) []Permission {
	return m.roles.Permissions(role)
}

// Lookup finds the route binding for method and path.
func (m *Model) Lookup(method, path string) (Binding, bool) {
	return m.routes.Lookup(method, path)
}

// Routes enumerates every registered route binding.
func (m *Model) Routes() []Binding {
	return m.routes.Bindings()
}

// Portal reports the portal a path belongs to and the role that owns it.
func (m *Model) Portal(path string) (string, Role, bool) {
	return m.portals.Match(path)
}

// PortalAllows reports whether role may use a portal owned by portalRole.
func (m *Model) PortalAllows(portalRole, role Role) bool {
	return m.portals.Allows(portalRole, role)
}

// ConditionMessage returns the user-facing message for a missing condition flag.
func (m *Model) ConditionMessage(condition string) string {
	if msg, ok := m.conditions[condition]; ok {
		return msg
	}
	return "Access to this content requires additional authorization"
}
