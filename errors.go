package edgeauth

import "errors"

var (
	// ErrUnauthenticated is returned when no credential on the request authenticates.
	// Missing, malformed, forged, expired and revoked credentials all map to it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned by [Engine.RequireRole] when the caller's role is not
	// in the allowed set.
	ErrForbidden = errors.New("forbidden")
	// ErrBackendUnavailable is returned when the durable store or the rate limit
	// backend cannot answer. Callers must fail closed on it.
	ErrBackendUnavailable = errors.New("identity backend unavailable")
	// ErrInvalidCredentials is returned by [Engine.Login] for an unknown identifier or
	// a wrong password; the two are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a [UserProvider] for an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned once an identifier or address exhausted its
	// login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when a user refreshes too often.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshInvalid is returned for an unusable refresh token.
	ErrRefreshInvalid = errors.New("refresh token invalid")
	// ErrSessionCreationFailed is returned when login could not persist the session.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrUnsupportedTokenType is returned by the purpose token helpers for types they
	// do not issue.
	ErrUnsupportedTokenType = errors.New("unsupported token type")
	// ErrEngineNotReady is returned when an operation needs a dependency the engine
	// was built without.
	ErrEngineNotReady = errors.New("engine not initialized")
)
