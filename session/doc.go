// Package session resolves opaque session ids to live sessions.
//
// # Resolution path
//
// There is one path: the shared cache (Redis) is read first, snapshots are re-checked
// against the clock, and misses fall through to the durable [Repository]. Live results
// are written back with a TTL no longer than the session's remaining lifetime.
// Concurrent misses for the same id share one repository call.
//
// A cache outage only degrades the path. A repository outage returns
// [ErrBackendUnavailable], which callers must treat as a failure, never as "anonymous".
//
// # Snapshot encoding
//
// Snapshots use a compact, versioned binary format ([Encode], [Decode]). Unknown
// versions are treated as corrupt and evicted.
//
// # What this package must NOT do
//
//   - Import edgeauth, jwt, or permission (no upward imports).
//   - Interpret userType or make authorization decisions.
package session
