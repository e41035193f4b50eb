// Package access evaluates authorization decisions against a [permission.Model].
//
// # Evaluation order
//
// [Enforcer.Authorize] checks, in order: public bindings, authentication, the portal
// gate, the route binding (or the unlisted-route policy), the required permissions
// with the ownership override, and finally the conditional gate (for example a signed
// NDA). The first failing step decides the [Decision].
//
// # What this package must NOT do
//
//   - Resolve identities or read credentials (that is the engine's job).
//   - Load resources. Owner ids and condition flags are supplied by the caller.
//   - Mention other users in denial messages.
package access
