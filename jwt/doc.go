// Package jwt issues and verifies the HS256 tokens used for stateless identity.
//
// Tokens are typed (access, refresh, password reset, email verification) and every
// type is signed with its own key derived from one root secret, so a token of one
// class can never be replayed as another. Verification failures are collapsed into
// the single [ErrTokenInvalid] error.
package jwt
