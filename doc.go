// Package edgeauth resolves who is calling an API and decides what they may do,
// before any business handler runs.
//
// # Identity
//
// [Engine.Resolve] authenticates a request from either credential:
//
//   - a bearer access token (HS256, verified by [jwt.Codec]), which takes precedence;
//   - an opaque session cookie, resolved through [session.Store] (Redis read-through
//     cache in front of the durable repository).
//
// Every authentication failure is [ErrUnauthenticated]. A durable store outage is
// [ErrBackendUnavailable] and must be answered with 503, never with access.
//
// # Access
//
// [Engine.Authorize] evaluates the caller against the compiled [permission.Model]:
// portal gate, route binding, permissions with ownership override and conditional
// gates. See package access for the exact order.
//
// # Lifecycle
//
// [Engine.Login], [Engine.Refresh] and [Engine.Logout] issue, rotate and revoke
// credentials. Revoked token ids live in the shared cache until the token would
// have expired.
//
// # Wiring
//
//	engine, err := edgeauth.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithRepository(postgres.NewRepository(pool)).
//		WithUserProvider(postgres.NewUserProvider(pool)).
//		Build()
//
// HTTP adapters live in package middleware.
package edgeauth
