// Package postgres implements the durable session repository and the user
// provider on a pgx/v5 connection pool.
//
// The tables it expects are in [Schema]. Sessions are joined to their user on every
// lookup, so a deleted user invalidates the session without a separate sweep.
package postgres
