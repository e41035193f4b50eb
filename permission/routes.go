package permission

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

// Match selects how a [Requirement] combines its permissions.
type Match uint8

const (
	// AnyOf is satisfied when at least one permission is held.
	AnyOf Match = iota
	// AllOf is satisfied only when every permission is held.
	AllOf
)

// Requirement is the fine-grained part of an authorization check.
//
// Ownership marks the check as ownership-aware: _OWN permissions only count for the
// resource owner, an _ANY permission may be satisfied by its _OWN variant when the
// caller owns the resource, and the owner is exempt from Condition.
//
// Condition names a boolean metadata flag (for example [ConditionNDA]) that must be
// true in addition to holding the permissions.
type Requirement struct {
	Permissions []Permission
	Match       Match
	Ownership   bool
	Condition   string
}

// Binding attaches a [Requirement] to a route. Method is empty for any method.
// Pattern segments starting with ':' match any single path segment.
//
// A Public binding is listed but needs no identity; a non-public binding with no
// permissions only needs an authenticated caller.
type Binding struct {
	Method  string
	Pattern string
	Public  bool
	Requirement
}

type compiledBinding struct {
	index     int
	segments  []string
	wildcards int
}

// RouteTable is the registry of route bindings.
type RouteTable struct {
	mu       sync.RWMutex
	bindings []Binding
	exact    map[string]int
	patterns []compiledBinding
	frozen   bool
}

// NewRouteTable creates an empty [RouteTable].
func NewRouteTable() *RouteTable {
	return &RouteTable{
		exact: make(map[string]int),
	}
}

// Add registers a binding. Duplicate method+pattern pairs are rejected.
func (t *RouteTable) Add(b Binding) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("route table frozen")
	}
	if !strings.HasPrefix(b.Pattern, "/") {
		return fmt.Errorf("route pattern %q must start with /", b.Pattern)
	}

	b.Method = strings.ToUpper(strings.TrimSpace(b.Method))
	b.Pattern = normalizePath(b.Pattern)
	segments := splitPath(b.Pattern)

	wildcards := 0
	for _, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			if len(seg) == 1 {
				return fmt.Errorf("route pattern %q has an unnamed parameter", b.Pattern)
			}
			wildcards++
		}
	}

	key := routeKey(b.Method, b.Pattern)
	if _, exists := t.exact[key]; exists {
		return fmt.Errorf("route %s already registered", key)
	}
	for _, p := range t.patterns {
		if routeKey(t.bindings[p.index].Method, t.bindings[p.index].Pattern) == key {
			return fmt.Errorf("route %s already registered", key)
		}
	}

	index := len(t.bindings)
	t.bindings = append(t.bindings, b)

	if wildcards == 0 {
		t.exact[key] = index
		return nil
	}

	t.patterns = append(t.patterns, compiledBinding{
		index:     index,
		segments:  segments,
		wildcards: wildcards,
	})
	return nil
}

// Lookup finds the binding for a request. Paths are compared case-insensitively after
// cleaning. Exact method+path matches win, then an exact path registered for any
// method, then the pattern with the fewest parameters (registration order breaks ties).
func (t *RouteTable) Lookup(method, requestPath string) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	method = strings.ToUpper(method)
	requestPath = normalizePath(requestPath)

	if idx, ok := t.exact[routeKey(method, requestPath)]; ok {
		return t.bindings[idx], true
	}
	if idx, ok := t.exact[routeKey("", requestPath)]; ok {
		return t.bindings[idx], true
	}

	segments := splitPath(requestPath)
	best := -1
	bestWildcards := 0
	for _, p := range t.patterns {
		b := t.bindings[p.index]
		if b.Method != "" && b.Method != method {
			continue
		}
		if !matchSegments(p.segments, segments) {
			continue
		}
		if best == -1 || p.wildcards < bestWildcards {
			best = p.index
			bestWildcards = p.wildcards
		}
	}
	if best == -1 {
		return Binding{}, false
	}
	return t.bindings[best], true
}

// Bindings returns a copy of every registered binding, in registration order.
func (t *RouteTable) Bindings() []Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Binding, len(t.bindings))
	copy(out, t.bindings)
	return out
}

// Freeze prevents further registrations.
func (t *RouteTable) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

func routeKey(method, p string) string {
	return method + " " + p
}

// normalizePath reduces p to the form routes are registered and matched in: no query
// or fragment, cleaned of empty, "." and ".." segments, lower case.
func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.ToLower(path.Clean(p))
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
