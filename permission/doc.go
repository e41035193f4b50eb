// Package permission holds the static authorization model of the marketplace API:
// the closed [Role] set, the [Permission] catalogue, role capability masks, the
// route → requirement table and the portal namespaces.
//
// # Bitmask capabilities
//
// Every permission in the catalogue is assigned a bit by a [Registry]. Each role is
// compiled into a [Mask64] by a [RoleManager]. Both are frozen once the [Model] is
// built, so a running process never mutates its authorization tables.
//
// # Route table
//
// [RouteTable] is the single registry of guarded routes. Lookups try an exact
// method+path match first, then `:param` patterns (most specific wins). A route that
// is not listed at all is reported as unlisted; whether unlisted routes are open is
// decided by the enforcer, not here.
//
// # Architecture boundaries
//
// This package is pure in-memory data with no I/O. It does NOT resolve identities,
// fetch resources, or make allow/deny decisions; the access package does that on top
// of a [Model].
package permission
