// Package middleware adapts an edgeauth.Engine to net/http.
//
// # Middleware
//
//   - [Authenticate]: requires a credential, attaches the [edgeauth.Identity].
//   - [Optional]: attaches the identity when present.
//   - [RequireRole]: requires one of a fixed set of roles.
//   - [Authorize]: enforces the engine's route table, with ownership and condition
//     data from a [ResourceLoader].
//   - [CORS]: origin allow-list and preflight handling.
//
// Failures are written as {"success":false,"error":{"code":...,"message":...}} with
// status 401, 403 or 503. A backend outage is always 503 and never lets the request
// through.
//
// The package holds no authentication logic of its own; every decision comes from
// the Engine.
package middleware
